package vectorindex

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"vaultrag/internal/domain"
	"vaultrag/internal/port"
)

// Index is a copy-on-write vector index. Reads load the current generation
// without locking; writes are serialized and publish a whole new generation.
// At most one Rebuild runs at a time; a concurrent call fails with
// domain.ErrRebuildInProgress instead of queueing.
type Index struct {
	current   atomic.Pointer[generation]
	writeMu   sync.Mutex
	rebuildMu sync.Mutex
	persister port.IndexPersister
	meta      port.IndexMeta
}

var _ port.VectorIndex = (*Index)(nil)

// New creates an empty in-memory index. persister may be nil.
func New(meta port.IndexMeta, persister port.IndexPersister) *Index {
	idx := &Index{persister: persister, meta: meta}
	idx.current.Store(newGeneration(0, meta.Dimension, nil))
	return idx
}

// Open loads the persisted generation. A stored index built with a different
// dimension than meta.Dimension is rejected with a DimensionMismatchError.
func Open(meta port.IndexMeta, persister port.IndexPersister) (*Index, error) {
	stored, entries, err := persister.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load index: %w", err)
	}
	if stored.Generation > 0 && stored.Dimension != meta.Dimension {
		return nil, fmt.Errorf("stored index is %d-d, embedding model is %d-d; rebuild required: %w",
			stored.Dimension, meta.Dimension,
			&domain.DimensionMismatchError{Expected: stored.Dimension, Got: meta.Dimension})
	}
	for _, e := range entries {
		if len(e.Vector) != meta.Dimension {
			return nil, fmt.Errorf("stored chunk %s: %w", e.Chunk.ID,
				&domain.DimensionMismatchError{Expected: meta.Dimension, Got: len(e.Vector)})
		}
	}

	idx := &Index{persister: persister, meta: meta}
	idx.current.Store(newGeneration(stored.Generation, meta.Dimension, entries))
	return idx, nil
}

// Snapshot returns the current generation. It stays valid and unchanged
// regardless of later writes.
func (x *Index) Snapshot() port.IndexSnapshot {
	return x.current.Load()
}

func (x *Index) Generation() uint64 {
	return x.current.Load().id
}

func (x *Index) Dimension() int {
	return x.meta.Dimension
}

func (x *Index) QueryNearest(vector []float32, k int) ([]domain.Neighbor, error) {
	return x.current.Load().QueryNearest(vector, k)
}

// Upsert replaces entries that share a chunk id in place and appends the rest.
func (x *Index) Upsert(ctx context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := x.checkDimensions(entries); err != nil {
		return err
	}

	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	cur := x.current.Load()
	id := cur.id + 1
	next := make([]domain.IndexEntry, len(cur.entries), len(cur.entries)+len(entries))
	copy(next, cur.entries)
	positions := make(map[string]int, len(cur.byID))
	for k, v := range cur.byID {
		positions[k] = v
	}

	written := make([]domain.IndexEntry, 0, len(entries))
	for _, e := range entries {
		e.Generation = id
		if i, ok := positions[e.Chunk.ID]; ok {
			next[i] = e
		} else {
			positions[e.Chunk.ID] = len(next)
			next = append(next, e)
		}
		written = append(written, e)
	}

	if x.persister != nil {
		if err := x.persister.ApplyChanges(x.metaFor(id), written, nil); err != nil {
			return fmt.Errorf("failed to persist upsert: %w", err)
		}
	}
	x.current.Store(newGeneration(id, x.meta.Dimension, next))
	return nil
}

// Delete removes chunks by id. Unknown ids are ignored.
func (x *Index) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	cur := x.current.Load()
	drop := make(map[string]struct{}, len(chunkIDs))
	for _, id := range chunkIDs {
		if _, ok := cur.byID[id]; ok {
			drop[id] = struct{}{}
		}
	}
	if len(drop) == 0 {
		return nil
	}

	next := make([]domain.IndexEntry, 0, len(cur.entries)-len(drop))
	for _, e := range cur.entries {
		if _, gone := drop[e.Chunk.ID]; !gone {
			next = append(next, e)
		}
	}

	id := cur.id + 1
	if x.persister != nil {
		if err := x.persister.ApplyChanges(x.metaFor(id), nil, chunkIDs); err != nil {
			return fmt.Errorf("failed to persist delete: %w", err)
		}
	}
	x.current.Store(newGeneration(id, x.meta.Dimension, next))
	return nil
}

// Rebuild replaces the whole index with entries as one new generation.
// If ctx is cancelled before the swap the previous generation stays current.
func (x *Index) Rebuild(ctx context.Context, entries []domain.IndexEntry) error {
	if !x.rebuildMu.TryLock() {
		return domain.ErrRebuildInProgress
	}
	defer x.rebuildMu.Unlock()

	if err := x.checkDimensions(entries); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	id := x.current.Load().id + 1
	next := make([]domain.IndexEntry, 0, len(entries))
	positions := make(map[string]int, len(entries))
	for _, e := range entries {
		e.Generation = id
		if i, ok := positions[e.Chunk.ID]; ok {
			next[i] = e
			continue
		}
		positions[e.Chunk.ID] = len(next)
		next = append(next, e)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if x.persister != nil {
		if err := x.persister.SaveGeneration(x.metaFor(id), next); err != nil {
			return fmt.Errorf("failed to persist generation %d: %w", id, err)
		}
	}
	x.current.Store(newGeneration(id, x.meta.Dimension, next))
	return nil
}

func (x *Index) checkDimensions(entries []domain.IndexEntry) error {
	for _, e := range entries {
		if len(e.Vector) != x.meta.Dimension {
			return fmt.Errorf("chunk %s: %w", e.Chunk.ID,
				&domain.DimensionMismatchError{Expected: x.meta.Dimension, Got: len(e.Vector)})
		}
	}
	return nil
}

func (x *Index) metaFor(id uint64) port.IndexMeta {
	m := x.meta
	m.Generation = id
	return m
}
