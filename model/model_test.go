package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlbumDraftValidateStrict(t *testing.T) {
	valid := AlbumDraft{AlbumName: "summer", Description: "sunny days", ImageIDs: []string{"a"}}
	assert.NoError(t, valid.ValidateStrict())

	tests := []struct {
		name    string
		draft   AlbumDraft
		missing string
	}{
		{"no name", AlbumDraft{Description: "d", ImageIDs: []string{"a"}}, "album_name"},
		{"blank name", AlbumDraft{AlbumName: "   ", Description: "d", ImageIDs: []string{"a"}}, "album_name"},
		{"no description", AlbumDraft{AlbumName: "n", ImageIDs: []string{"a"}}, "description"},
		{"no image ids", AlbumDraft{AlbumName: "n", Description: "d"}, "image_ids"},
		{"all missing", AlbumDraft{}, "album_name, description, image_ids"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draft.ValidateStrict()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.missing)
		})
	}
}

func TestAlbumCover(t *testing.T) {
	empty := AlbumRecord{}
	assert.Nil(t, empty.Cover())

	album := AlbumRecord{Images: []AlbumImage{{ID: "first"}, {ID: "second"}}}
	cover := album.Cover()
	assert.Equal(t, "first", cover.ID)
}
