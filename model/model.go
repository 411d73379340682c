package model

import (
	"fmt"
	"strings"
	"time"
)

// PhotoRecord is the metadata document for one uploaded photo. The object
// store and the vector index reference it only by ID; the object key and
// filename live here and nowhere else.
type PhotoRecord struct {
	ID               string         `bson:"_id" json:"id"`
	ObjectKey        string         `bson:"object_key" json:"object_key"`
	OriginalFilename string         `bson:"original_filename" json:"original_filename"`
	ContentType      string         `bson:"content_type,omitempty" json:"content_type,omitempty"`
	Size             int64          `bson:"size,omitempty" json:"size,omitempty"`
	Metadata         map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt        time.Time      `bson:"created_at" json:"createdAt"`
}

// PhotoView is a PhotoRecord resolved for a caller: the stable ID plus a
// freshly signed access URL. Never persisted.
type PhotoView struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Filename  string    `json:"filename,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// AlbumImage is one entry of an album's images list. Only the ID and the
// object key are persisted; the URL is derived at every read and is never
// written to the metadata store (signed URLs expire).
type AlbumImage struct {
	ID        string `bson:"id" json:"id"`
	ObjectKey string `bson:"object_key" json:"-"`
	URL       string `bson:"-" json:"url,omitempty"`
}

// AlbumRecord is the metadata document for an album. Images keep the
// ranking order from retrieval. CoverImage is always Images[0] when Images
// is non-empty and is recomputed whenever Images changes.
type AlbumRecord struct {
	ID          string       `bson:"_id,omitempty" json:"id"`
	AlbumName   string       `bson:"album_name" json:"album_name"`
	Description string       `bson:"description,omitempty" json:"description"`
	Images      []AlbumImage `bson:"images" json:"images"`
	CoverImage  *AlbumImage  `bson:"cover_image" json:"cover_image"`
	VideoKey    string       `bson:"video_key,omitempty" json:"-"`
	VideoURL    string       `bson:"-" json:"video_url,omitempty"`
	CreatedAt   time.Time    `bson:"created_at" json:"createdAt"`
}

// Cover returns the first image, or nil for an empty album.
func (a *AlbumRecord) Cover() *AlbumImage {
	if len(a.Images) == 0 {
		return nil
	}
	return &a.Images[0]
}

// AlbumDraft is the structured album request handed over by the
// orchestration layer. It is an untrusted-input boundary: ValidateStrict
// either accepts it as-is or rejects it, there is no lenient parsing.
type AlbumDraft struct {
	AlbumName   string   `json:"album_name"`
	Description string   `json:"description"`
	ImageIDs    []string `json:"image_ids"`
}

// ValidateStrict checks structural completeness of the draft.
func (d AlbumDraft) ValidateStrict() error {
	var missing []string
	if strings.TrimSpace(d.AlbumName) == "" {
		missing = append(missing, "album_name")
	}
	if strings.TrimSpace(d.Description) == "" {
		missing = append(missing, "description")
	}
	if len(d.ImageIDs) == 0 {
		missing = append(missing, "image_ids")
	}
	if len(missing) > 0 {
		return fmt.Errorf("invalid album data: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// BulkResult reports the per-ID outcome of a bulk operation. It is a normal
// return value, not an error: partial completion is the expected shape.
type BulkResult struct {
	Successful []string `json:"successful"`
	Failed     []string `json:"failed"`
}
