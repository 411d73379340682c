package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hupe1980/vecgo"
	"github.com/hupe1980/vecgo/metric"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// PointPayload is the denormalized metadata stored next to an embedding.
type PointPayload struct {
	ImageID   string `json:"image_id"`
	ObjectKey string `json:"object_key,omitempty"`
}

// ScoredPoint is one similarity-search candidate. Score is cosine
// similarity in [-1, 1].
type ScoredPoint struct {
	ID      string
	Score   float32
	Payload PointPayload
}

// VectorIndex is the gateway to the embedding index.
type VectorIndex interface {
	// Upsert inserts or replaces the point for id. Replacement is keyed on
	// the id being present, never on vector similarity.
	Upsert(ctx context.Context, id string, vector []float32, payload PointPayload) error
	// Search returns up to limit candidates ordered by descending cosine
	// similarity. scoreThreshold prunes after ranking; the result is never
	// padded with sub-threshold points.
	Search(ctx context.Context, query []float32, limit int, scoreThreshold float32) ([]ScoredPoint, error)
	// Delete is idempotent: removing a missing point is not an error.
	Delete(ctx context.Context, id string) error
	Close() error
}

// point is what the index stores per entry. The vector is kept alongside
// the payload so similarity scores can be recomputed exactly at read time.
type point struct {
	Payload PointPayload `json:"payload"`
	Vector  []float32    `json:"vector"`
}

// indexManifest is the sidecar file mapping canonical image IDs to the
// engine's numeric IDs. Dimension is fixed at index creation.
type indexManifest struct {
	Dimension int               `json:"dimension"`
	IDs       map[string]uint64 `json:"ids"`
}

const (
	snapshotFile = "index.vecgo"
	manifestFile = "index.json"
)

// VecgoVectorIndex implements VectorIndex on an embedded vecgo flat index
// with cosine distance, persisted as a snapshot plus manifest under dir.
type VecgoVectorIndex struct {
	mu        sync.RWMutex
	db        *vecgo.Vecgo[point]
	ids       map[string]uint64
	dimension int
	dir       string
	log       *zap.Logger
}

// OpenVecgoVectorIndex loads or creates the index for the given dimension.
// An existing index with a different dimension is rebuilt from scratch:
// all stored points are lost. That is deliberate and loudly logged, not
// silently swallowed.
func OpenVecgoVectorIndex(dir string, dimension int, log *zap.Logger) (*VecgoVectorIndex, error) {
	if dimension <= 0 {
		return nil, NewValidationError("vector dimension must be positive, got %d", dimension)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, storeErr("vector", errors.Wrap(err, "create index dir"))
	}

	idx := &VecgoVectorIndex{
		ids:       make(map[string]uint64),
		dimension: dimension,
		dir:       dir,
		log:       log,
	}

	manifest, err := readManifest(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, err
	}

	if manifest != nil && manifest.Dimension != dimension {
		log.Warn("vector index dimension changed, rebuilding index and discarding all stored points",
			zap.Int("old_dimension", manifest.Dimension),
			zap.Int("new_dimension", dimension))
		if err := idx.removeFiles(); err != nil {
			return nil, err
		}
		manifest = nil
	}

	snapshot := filepath.Join(dir, snapshotFile)
	if manifest != nil {
		db, err := vecgo.NewFromFile[point](snapshot)
		if err != nil {
			return nil, storeErr("vector", errors.Wrap(err, "load snapshot"))
		}
		idx.db = db
		idx.ids = manifest.IDs
		log.Info("vector index loaded",
			zap.Int("dimension", dimension),
			zap.Int("points", len(manifest.IDs)))
		return idx, nil
	}

	db, err := vecgo.Flat[point](dimension).Cosine().Build()
	if err != nil {
		return nil, storeErr("vector", errors.Wrap(err, "build index"))
	}
	idx.db = db
	log.Info("vector index created", zap.Int("dimension", dimension))
	return idx, nil
}

func readManifest(path string) (*indexManifest, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("vector", errors.Wrap(err, "read manifest"))
	}
	var m indexManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, storeErr("vector", errors.Wrap(err, "decode manifest"))
	}
	if m.IDs == nil {
		m.IDs = make(map[string]uint64)
	}
	return &m, nil
}

func (idx *VecgoVectorIndex) removeFiles() error {
	for _, name := range []string{snapshotFile, manifestFile} {
		if err := os.Remove(filepath.Join(idx.dir, name)); err != nil && !os.IsNotExist(err) {
			return storeErr("vector", errors.Wrapf(err, "remove %s", name))
		}
	}
	return nil
}

func (idx *VecgoVectorIndex) Upsert(ctx context.Context, id string, vector []float32, payload PointPayload) error {
	if len(vector) != idx.dimension {
		return NewValidationError("vector for %s has dimension %d, index expects %d", id, len(vector), idx.dimension)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	item := vecgo.VectorWithData[point]{
		Vector: vector,
		Data:   point{Payload: payload, Vector: append([]float32(nil), vector...)},
	}

	if num, ok := idx.ids[id]; ok {
		if err := idx.db.Update(ctx, num, item); err != nil {
			return storeErr("vector", errors.Wrapf(err, "update point %s", id))
		}
		return nil
	}

	num, err := idx.db.Insert(ctx, item)
	if err != nil {
		return storeErr("vector", errors.Wrapf(err, "insert point %s", id))
	}
	idx.ids[id] = num
	return nil
}

func (idx *VecgoVectorIndex) Search(ctx context.Context, query []float32, limit int, scoreThreshold float32) ([]ScoredPoint, error) {
	if len(query) != idx.dimension {
		return nil, NewValidationError("query vector has dimension %d, index expects %d", len(query), idx.dimension)
	}
	if limit <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.ids) == 0 {
		return nil, nil
	}

	hits, err := idx.db.KNNSearch(ctx, query, limit)
	if err != nil {
		return nil, storeErr("vector", errors.Wrap(err, "knn search"))
	}

	results := make([]ScoredPoint, 0, len(hits))
	for _, hit := range hits {
		if hit.Data.Payload.ImageID == "" {
			idx.log.Warn("vector point without image_id payload, skipping")
			continue
		}
		// Recompute the exact cosine similarity so thresholding works on
		// the metric's native scale regardless of the engine's internal
		// distance representation.
		score, err := metric.CosineSimilarity(query, hit.Data.Vector)
		if err != nil {
			idx.log.Warn("failed to score vector point",
				zap.String("image_id", hit.Data.Payload.ImageID),
				zap.Error(err))
			continue
		}
		results = append(results, ScoredPoint{
			ID:      hit.Data.Payload.ImageID,
			Score:   score,
			Payload: hit.Data.Payload,
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	// Threshold prunes after ranking. Fewer qualifying candidates than
	// limit means a shorter result, never padding.
	cut := len(results)
	for i, r := range results {
		if r.Score < scoreThreshold {
			cut = i
			break
		}
	}
	results = results[:cut]
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (idx *VecgoVectorIndex) Delete(ctx context.Context, id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	num, ok := idx.ids[id]
	if !ok {
		return nil // already gone
	}
	if err := idx.db.Delete(ctx, num); err != nil && !errors.Is(err, vecgo.ErrNotFound) {
		return storeErr("vector", errors.Wrapf(err, "delete point %s", id))
	}
	delete(idx.ids, id)
	return nil
}

// Close snapshots the index and manifest to disk and releases the engine.
func (idx *VecgoVectorIndex) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.db.SaveToFile(filepath.Join(idx.dir, snapshotFile)); err != nil {
		return storeErr("vector", errors.Wrap(err, "save snapshot"))
	}

	manifest := indexManifest{Dimension: idx.dimension, IDs: idx.ids}
	data, err := json.Marshal(manifest)
	if err != nil {
		return storeErr("vector", errors.Wrap(err, "encode manifest"))
	}
	if err := os.WriteFile(filepath.Join(idx.dir, manifestFile), data, 0o644); err != nil {
		return storeErr("vector", errors.Wrap(err, "write manifest"))
	}

	return idx.db.Close()
}
