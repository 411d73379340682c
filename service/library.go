package service

import (
	"bytes"
	"context"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"family-album/embedding"
	"family-album/model"
	"family-album/storage"
)

// Library handles the photo upload pipeline and photo listings.
type Library struct {
	db      storage.MetadataDB
	objects storage.ObjectStorage
	vectors storage.VectorIndex
	embed   embedding.Provider
	signTTL time.Duration
	log     *zap.Logger
}

// NewLibrary wires the photo pipeline.
func NewLibrary(db storage.MetadataDB, objects storage.ObjectStorage, vectors storage.VectorIndex, embed embedding.Provider, signTTL time.Duration, log *zap.Logger) *Library {
	if signTTL <= 0 {
		signTTL = storage.DefaultSignTTL
	}
	return &Library{db: db, objects: objects, vectors: vectors, embed: embed, signTTL: signTTL, log: log}
}

// UploadPhoto stores the photo bytes, persists its metadata and indexes its
// embedding, all keyed by one freshly minted ID. The blob write comes
// first: a photo document must never point at a missing object. Embedding
// failures do not fail the upload; the photo is retrievable by listing
// either way.
func (l *Library) UploadPhoto(ctx context.Context, filename, contentType string, data []byte) (*model.PhotoRecord, error) {
	if len(data) == 0 {
		return nil, storage.NewValidationError("empty upload")
	}

	id := storage.NewImageID()
	objectKey := storage.PhotoObjectKey(id, filename)

	if err := l.objects.Put(ctx, objectKey, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return nil, err
	}

	photo := model.PhotoRecord{
		ID:               id,
		ObjectKey:        objectKey,
		OriginalFilename: filepath.Base(filename),
		ContentType:      contentType,
		Size:             int64(len(data)),
		Metadata:         photoMetadata(data),
		CreatedAt:        time.Now().UTC(),
	}
	if err := l.db.SavePhoto(ctx, photo); err != nil {
		// Roll the blob back so the failed upload leaves no orphaned
		// storage behind.
		if derr := l.objects.Delete(ctx, objectKey); derr != nil {
			l.log.Warn("failed to clean up blob after metadata failure",
				zap.String("image_id", id), zap.Error(derr))
		}
		return nil, err
	}

	l.indexPhoto(ctx, id, objectKey, data)

	l.log.Info("photo uploaded",
		zap.String("image_id", id),
		zap.String("object_key", objectKey),
		zap.Int("size", len(data)))
	return &photo, nil
}

func (l *Library) indexPhoto(ctx context.Context, id, objectKey string, data []byte) {
	vector, err := l.embed.EmbedImage(ctx, data)
	if err != nil {
		l.log.Warn("failed to embed photo, it will not be searchable",
			zap.String("image_id", id), zap.Error(err))
		return
	}
	payload := storage.PointPayload{ImageID: id, ObjectKey: objectKey}
	if err := l.vectors.Upsert(ctx, id, vector, payload); err != nil {
		l.log.Warn("failed to index photo embedding",
			zap.String("image_id", id), zap.Error(err))
	}
}

// ListPhotos returns photos newest first with fresh signed URLs. A photo
// whose URL cannot be signed is skipped with a warning rather than
// breaking the whole listing.
func (l *Library) ListPhotos(ctx context.Context, skip, limit int64) ([]model.PhotoView, error) {
	photos, err := l.db.ListPhotos(ctx, skip, limit)
	if err != nil {
		return nil, err
	}

	views := make([]model.PhotoView, 0, len(photos))
	for _, p := range photos {
		url, err := l.objects.SignedURL(ctx, p.ObjectKey, l.signTTL, false)
		if err != nil {
			l.log.Warn("failed to sign photo URL",
				zap.String("image_id", p.ID), zap.Error(err))
			continue
		}
		views = append(views, model.PhotoView{
			ID:        p.ID,
			URL:       url,
			Filename:  p.OriginalFilename,
			CreatedAt: p.CreatedAt,
		})
	}
	return views, nil
}
