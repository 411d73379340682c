package storage

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
)

// NewImageID mints the canonical identifier for a photo. It is the single
// join key across the object store, the metadata store and the vector
// index; no store generates its own identifier for the same photo.
func NewImageID() string {
	return uuid.NewString()
}

// PhotoObjectKey builds the object-store key for an uploaded photo.
// The filename is reduced to its base name so untrusted input cannot
// traverse outside the namespace.
func PhotoObjectKey(imageID, filename string) string {
	return fmt.Sprintf("%s-%s", imageID, filepath.Base(filename))
}

// AlbumUploadKey builds the object-store key for a reference image uploaded
// as an album query.
func AlbumUploadKey(imageID, filename string) string {
	return fmt.Sprintf("generated-album/%s-%s", imageID, filepath.Base(filename))
}

// VideoObjectKey builds the object-store key for an album's rendered video.
func VideoObjectKey(albumID string) string {
	return fmt.Sprintf("generated-video/album_%s_video.mp4", albumID)
}
