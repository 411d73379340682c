package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"family-album/model"
	"family-album/storage"
)

func testLogger() *zap.Logger { return zap.NewNop() }

func payloadFor(photo model.PhotoRecord) storage.PointPayload {
	return storage.PointPayload{ImageID: photo.ID, ObjectKey: photo.ObjectKey}
}

// fakeDB is an in-memory MetadataDB.
type fakeDB struct {
	mu        sync.Mutex
	photos    map[string]model.PhotoRecord
	albums    map[string]*model.AlbumRecord
	nextAlbum int

	failSavePhoto error
	failGetPhoto  error
	failRemove    error
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		photos: make(map[string]model.PhotoRecord),
		albums: make(map[string]*model.AlbumRecord),
	}
}

func (db *fakeDB) SavePhoto(ctx context.Context, photo model.PhotoRecord) error {
	if db.failSavePhoto != nil {
		return db.failSavePhoto
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	db.photos[photo.ID] = photo
	return nil
}

func (db *fakeDB) GetPhoto(ctx context.Context, id string) (*model.PhotoRecord, error) {
	if db.failGetPhoto != nil {
		return nil, db.failGetPhoto
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	photo, ok := db.photos[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &photo, nil
}

func (db *fakeDB) ListPhotos(ctx context.Context, skip, limit int64) ([]model.PhotoRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	photos := make([]model.PhotoRecord, 0, len(db.photos))
	for _, p := range db.photos {
		photos = append(photos, p)
	}
	sort.Slice(photos, func(i, j int) bool {
		if !photos[i].CreatedAt.Equal(photos[j].CreatedAt) {
			return photos[i].CreatedAt.After(photos[j].CreatedAt)
		}
		return photos[i].ID > photos[j].ID
	})
	return page(photos, skip, limit), nil
}

func (db *fakeDB) DeletePhoto(ctx context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.photos[id]; !ok {
		return storage.ErrNotFound
	}
	delete(db.photos, id)
	return nil
}

func (db *fakeDB) SaveAlbum(ctx context.Context, album *model.AlbumRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if album.ID == "" {
		db.nextAlbum++
		album.ID = fmt.Sprintf("album-%d", db.nextAlbum)
	}
	stored := *album
	db.albums[album.ID] = &stored
	return nil
}

func (db *fakeDB) GetAlbum(ctx context.Context, id string) (*model.AlbumRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	album, ok := db.albums[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *album
	copied.Images = append([]model.AlbumImage(nil), album.Images...)
	return &copied, nil
}

func (db *fakeDB) ListAlbums(ctx context.Context, skip, limit int64) ([]model.AlbumRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	albums := make([]model.AlbumRecord, 0, len(db.albums))
	for _, a := range db.albums {
		copied := *a
		copied.Images = append([]model.AlbumImage(nil), a.Images...)
		albums = append(albums, copied)
	}
	sort.Slice(albums, func(i, j int) bool {
		if !albums[i].CreatedAt.Equal(albums[j].CreatedAt) {
			return albums[i].CreatedAt.After(albums[j].CreatedAt)
		}
		return albums[i].ID > albums[j].ID
	})
	return page(albums, skip, limit), nil
}

func (db *fakeDB) DeleteAlbum(ctx context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.albums[id]; !ok {
		return storage.ErrNotFound
	}
	delete(db.albums, id)
	return nil
}

func (db *fakeDB) RemoveImageFromAlbums(ctx context.Context, imageID string) error {
	if db.failRemove != nil {
		return db.failRemove
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, album := range db.albums {
		kept := album.Images[:0]
		for _, img := range album.Images {
			if img.ID != imageID {
				kept = append(kept, img)
			}
		}
		album.Images = kept
		album.CoverImage = album.Cover()
	}
	return nil
}

func (db *fakeDB) SetAlbumVideoKey(ctx context.Context, albumID, videoKey string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	album, ok := db.albums[albumID]
	if !ok {
		return storage.ErrNotFound
	}
	album.VideoKey = videoKey
	return nil
}

func page[T any](items []T, skip, limit int64) []T {
	if skip >= int64(len(items)) {
		return nil
	}
	items = items[skip:]
	if limit > 0 && limit < int64(len(items)) {
		items = items[:limit]
	}
	return items
}

// fakeObjects is an in-memory ObjectStorage.
type fakeObjects struct {
	mu    sync.Mutex
	blobs map[string][]byte

	failPut    error
	failDelete map[string]error
	failSign   map[string]bool
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{
		blobs:      make(map[string][]byte),
		failDelete: make(map[string]error),
		failSign:   make(map[string]bool),
	}
}

func (s *fakeObjects) Put(ctx context.Context, objectKey string, r io.Reader, size int64, contentType string) error {
	if s.failPut != nil {
		return s.failPut
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[objectKey] = data
	return nil
}

func (s *fakeObjects) PutFile(ctx context.Context, objectKey, path, contentType string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return s.Put(ctx, objectKey, bytes.NewReader(data), int64(len(data)), contentType)
}

func (s *fakeObjects) Delete(ctx context.Context, objectKey string) error {
	if err := s.failDelete[objectKey]; err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, objectKey) // idempotent
	return nil
}

func (s *fakeObjects) SignedURL(ctx context.Context, objectKey string, ttl time.Duration, asAttachment bool) (string, error) {
	if s.failSign[objectKey] {
		return "", fmt.Errorf("signing misconfigured for %s", objectKey)
	}
	url := "https://signed.example/" + objectKey
	if asAttachment {
		url += "?attachment=1"
	}
	return url, nil
}

// fakeIndex is an in-memory VectorIndex with exact cosine scoring.
type fakeIndex struct {
	mu     sync.Mutex
	points map[string]fakePoint

	failUpsert error
	failDelete error
	failSearch error
}

type fakePoint struct {
	vector  []float32
	payload storage.PointPayload
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{points: make(map[string]fakePoint)}
}

func (f *fakeIndex) Upsert(ctx context.Context, id string, vector []float32, payload storage.PointPayload) error {
	if f.failUpsert != nil {
		return f.failUpsert
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points[id] = fakePoint{vector: append([]float32(nil), vector...), payload: payload}
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, query []float32, limit int, scoreThreshold float32) ([]storage.ScoredPoint, error) {
	if f.failSearch != nil {
		return nil, f.failSearch
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var results []storage.ScoredPoint
	for id, p := range f.points {
		score := cosine(query, p.vector)
		if score < scoreThreshold {
			continue
		}
		results = append(results, storage.ScoredPoint{ID: id, Score: score, Payload: p.payload})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (f *fakeIndex) Delete(ctx context.Context, id string) error {
	if f.failDelete != nil {
		return f.failDelete
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.points, id) // idempotent
	return nil
}

func (f *fakeIndex) Close() error { return nil }

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// fakeEmbedder returns canned vectors.
type fakeEmbedder struct {
	textVectors map[string][]float32
	imageVector []float32
	failText    error
	failImage   error
}

func (e *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if e.failText != nil {
		return nil, e.failText
	}
	if v, ok := e.textVectors[text]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("no canned vector for %q", text)
}

func (e *fakeEmbedder) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	if e.failImage != nil {
		return nil, e.failImage
	}
	return e.imageVector, nil
}
