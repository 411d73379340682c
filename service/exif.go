package service

import (
	"bytes"

	"github.com/rwcarlsen/goexif/exif"
)

// photoMetadata extracts the EXIF fields worth keeping on the photo
// document. Photos without EXIF (screenshots, scans) simply get none.
func photoMetadata(data []byte) map[string]any {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	meta := make(map[string]any)
	if t, err := x.DateTime(); err == nil {
		meta["taken_at"] = t.UTC()
	}
	if tag, err := x.Get(exif.Model); err == nil {
		if s, err := tag.StringVal(); err == nil && s != "" {
			meta["camera_model"] = s
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
