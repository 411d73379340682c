package service

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"family-album/model"
	"family-album/storage"
)

// DefaultDeleteWorkers bounds how many photos a bulk delete works on at
// once so the object store and vector index are not flooded.
const DefaultDeleteWorkers = 4

// Deleter coordinates deletes across the object store, the metadata store
// and the vector index. Bulk operations process each ID independently and
// report a successful/failed split; completed per-ID deletions are never
// rolled back.
type Deleter struct {
	db      storage.MetadataDB
	objects storage.ObjectStorage
	vectors storage.VectorIndex
	workers int
	log     *zap.Logger
}

// NewDeleter wires the cross-store deletion coordinator.
func NewDeleter(db storage.MetadataDB, objects storage.ObjectStorage, vectors storage.VectorIndex, workers int, log *zap.Logger) *Deleter {
	if workers <= 0 {
		workers = DefaultDeleteWorkers
	}
	return &Deleter{db: db, objects: objects, vectors: vectors, workers: workers, log: log}
}

// DeletePhotos deletes each photo from all three stores. IDs are
// independent keys, so they are processed concurrently under a bounded
// worker pool; the result keeps the caller's ID order.
func (d *Deleter) DeletePhotos(ctx context.Context, ids []string) model.BulkResult {
	outcome := make([]bool, len(ids))

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(d.workers)

	for i, id := range ids {
		g.Go(func() error {
			err := d.deletePhoto(ctx, id)
			if err != nil {
				d.log.Warn("photo delete failed",
					zap.String("image_id", id), zap.Error(err))
			}
			mu.Lock()
			outcome[i] = err == nil
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return splitResult(ids, outcome)
}

// deletePhoto removes one photo as a logical unit. Order matters: the blob
// goes first, because deleting the metadata for a blob that still exists
// would orphan storage silently. A vector-point failure at the end is only
// logged; with metadata and blob gone, a stray point is the lesser leak
// and gets filtered on read.
func (d *Deleter) deletePhoto(ctx context.Context, id string) error {
	photo, err := d.db.GetPhoto(ctx, id)
	if err != nil {
		return err
	}

	if err := d.objects.Delete(ctx, photo.ObjectKey); err != nil {
		return err
	}

	if err := d.db.DeletePhoto(ctx, id); err != nil {
		return err
	}

	if err := d.db.RemoveImageFromAlbums(ctx, id); err != nil {
		// The primary record is gone; a stale album entry is tolerated on
		// read, so this does not fail the ID.
		d.log.Warn("failed to remove deleted photo from albums",
			zap.String("image_id", id), zap.Error(err))
	}

	if err := d.vectors.Delete(ctx, id); err != nil {
		d.log.Warn("failed to delete vector point for photo",
			zap.String("image_id", id), zap.Error(err))
	}

	return nil
}

// DeleteAlbums deletes each album document independently. Photos stay
// untouched; an album is only a curated view over them.
func (d *Deleter) DeleteAlbums(ctx context.Context, ids []string) model.BulkResult {
	outcome := make([]bool, len(ids))
	for i, id := range ids {
		if err := d.db.DeleteAlbum(ctx, id); err != nil {
			d.log.Warn("album delete failed",
				zap.String("album_id", id), zap.Error(err))
			continue
		}
		outcome[i] = true
	}
	return splitResult(ids, outcome)
}

func splitResult(ids []string, outcome []bool) model.BulkResult {
	result := model.BulkResult{Successful: []string{}, Failed: []string{}}
	for i, id := range ids {
		if outcome[i] {
			result.Successful = append(result.Successful, id)
		} else {
			result.Failed = append(result.Failed, id)
		}
	}
	return result
}
