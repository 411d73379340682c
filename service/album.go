package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"family-album/embedding"
	"family-album/model"
	"family-album/storage"
)

// MaxAlbumImages caps how many candidates an album keeps. Albums stay
// visually coherent instead of exhaustive.
const MaxAlbumImages = 10

// Albums assembles, persists and resolves themed albums.
type Albums struct {
	db             storage.MetadataDB
	objects        storage.ObjectStorage
	vectors        storage.VectorIndex
	embed          embedding.Provider
	signTTL        time.Duration
	scoreThreshold float32
	log            *zap.Logger
}

// NewAlbums wires the album assembly engine.
func NewAlbums(db storage.MetadataDB, objects storage.ObjectStorage, vectors storage.VectorIndex, embed embedding.Provider, signTTL time.Duration, scoreThreshold float32, log *zap.Logger) *Albums {
	if signTTL <= 0 {
		signTTL = storage.DefaultSignTTL
	}
	return &Albums{
		db:             db,
		objects:        objects,
		vectors:        vectors,
		embed:          embed,
		signTTL:        signTTL,
		scoreThreshold: scoreThreshold,
		log:            log,
	}
}

// GenerateFromTheme embeds the theme text, ranks candidate photos and
// assembles an album from them.
func (s *Albums) GenerateFromTheme(ctx context.Context, theme string) (*model.AlbumRecord, error) {
	if theme == "" {
		return nil, storage.NewValidationError("theme must not be empty")
	}
	query, err := s.embed.EmbedText(ctx, theme)
	if err != nil {
		return nil, errors.Wrap(err, "embed theme")
	}
	draft := model.AlbumDraft{
		AlbumName:   theme,
		Description: fmt.Sprintf("Photos matching the theme %q.", theme),
	}
	return s.generate(ctx, query, draft)
}

// GenerateFromImage embeds a reference image and assembles an album of
// visually similar photos. The reference image itself is kept in the
// object store under the generated-album namespace so the query that
// produced an album can be revisited; it never becomes a library photo.
func (s *Albums) GenerateFromImage(ctx context.Context, filename, contentType string, data []byte) (*model.AlbumRecord, error) {
	if len(data) == 0 {
		return nil, storage.NewValidationError("reference image must not be empty")
	}

	key := storage.AlbumUploadKey(storage.NewImageID(), filename)
	if err := s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return nil, err
	}
	s.log.Info("reference image stored", zap.String("object_key", key))

	query, err := s.embed.EmbedImage(ctx, data)
	if err != nil {
		return nil, errors.Wrap(err, "embed reference image")
	}
	draft := model.AlbumDraft{
		AlbumName:   "Similar moments",
		Description: "Photos similar to the uploaded reference image.",
	}
	return s.generate(ctx, query, draft)
}

func (s *Albums) generate(ctx context.Context, query []float32, draft model.AlbumDraft) (*model.AlbumRecord, error) {
	points, err := s.vectors.Search(ctx, query, MaxAlbumImages, s.scoreThreshold)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, storage.NewValidationError("no photos matched the query")
	}
	for _, p := range points {
		draft.ImageIDs = append(draft.ImageIDs, p.ID)
	}
	return s.CreateAlbum(ctx, draft)
}

// CreateAlbum turns a ranked candidate draft into a persisted album with
// resolved access URLs. Candidates whose metadata is gone (dangling vector
// points) or whose URL cannot be signed are dropped with a warning; an
// album that would end up empty is rejected instead of persisted.
func (s *Albums) CreateAlbum(ctx context.Context, draft model.AlbumDraft) (*model.AlbumRecord, error) {
	if err := draft.ValidateStrict(); err != nil {
		return nil, storage.NewValidationError("%v", err)
	}

	candidates := draft.ImageIDs
	if len(candidates) > MaxAlbumImages {
		candidates = candidates[:MaxAlbumImages]
	}

	images := make([]model.AlbumImage, 0, len(candidates))
	for _, id := range candidates {
		photo, err := s.db.GetPhoto(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("album candidate has no metadata record, dropping",
				zap.String("image_id", id))
			continue
		}
		if err != nil {
			return nil, err
		}

		url, err := s.objects.SignedURL(ctx, photo.ObjectKey, s.signTTL, false)
		if err != nil {
			s.log.Warn("failed to sign URL for album candidate, dropping",
				zap.String("image_id", id), zap.Error(err))
			continue
		}
		images = append(images, model.AlbumImage{ID: id, ObjectKey: photo.ObjectKey, URL: url})
	}

	if len(images) == 0 {
		return nil, storage.NewValidationError("no valid images found for the album")
	}

	album := &model.AlbumRecord{
		AlbumName:   draft.AlbumName,
		Description: draft.Description,
		Images:      images,
		CreatedAt:   time.Now().UTC(),
	}
	album.CoverImage = album.Cover()

	if err := s.db.SaveAlbum(ctx, album); err != nil {
		return nil, err
	}

	s.log.Info("album created",
		zap.String("album_id", album.ID),
		zap.String("album_name", album.AlbumName),
		zap.Int("images", len(album.Images)))
	return album, nil
}

// GetAlbum fetches an album and re-derives every access URL from the
// stored object keys. Signed URLs are never persisted, so every read mints
// fresh ones.
func (s *Albums) GetAlbum(ctx context.Context, id string) (*model.AlbumRecord, error) {
	album, err := s.db.GetAlbum(ctx, id)
	if err != nil {
		return nil, err
	}
	s.resolve(ctx, album)
	return album, nil
}

// ListAlbums returns albums newest first with freshly resolved URLs.
func (s *Albums) ListAlbums(ctx context.Context, skip, limit int64) ([]model.AlbumRecord, error) {
	albums, err := s.db.ListAlbums(ctx, skip, limit)
	if err != nil {
		return nil, err
	}
	for i := range albums {
		s.resolve(ctx, &albums[i])
	}
	return albums, nil
}

// resolve mints URLs for an album's images in place. Entries that cannot
// be resolved are dropped with a warning; the cover is recomputed from
// what survived.
func (s *Albums) resolve(ctx context.Context, album *model.AlbumRecord) {
	resolved := album.Images[:0]
	for _, img := range album.Images {
		url, err := s.objects.SignedURL(ctx, img.ObjectKey, s.signTTL, false)
		if err != nil {
			s.log.Warn("failed to sign album image URL, dropping from response",
				zap.String("album_id", album.ID),
				zap.String("image_id", img.ID),
				zap.Error(err))
			continue
		}
		img.URL = url
		resolved = append(resolved, img)
	}
	album.Images = resolved
	album.CoverImage = album.Cover()

	if album.VideoKey != "" {
		url, err := s.objects.SignedURL(ctx, album.VideoKey, s.signTTL, false)
		if err != nil {
			s.log.Warn("failed to sign album video URL",
				zap.String("album_id", album.ID), zap.Error(err))
		} else {
			album.VideoURL = url
		}
	}
}

// VideoDownloadURL signs a download URL for an album's rendered video. The
// attachment disposition makes browsers save the file instead of playing
// it inline.
func (s *Albums) VideoDownloadURL(ctx context.Context, albumID string) (string, error) {
	album, err := s.db.GetAlbum(ctx, albumID)
	if err != nil {
		return "", err
	}
	if album.VideoKey == "" {
		return "", storage.ErrNotFound
	}
	return s.objects.SignedURL(ctx, album.VideoKey, s.signTTL, true)
}

// AttachVideo records the canonical video object key on an album once the
// rendering job has written the asset.
func (s *Albums) AttachVideo(ctx context.Context, albumID string) (string, error) {
	key := storage.VideoObjectKey(albumID)
	if err := s.db.SetAlbumVideoKey(ctx, albumID, key); err != nil {
		return "", err
	}
	return key, nil
}
