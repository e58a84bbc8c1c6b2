package port

import (
	"context"

	"vaultrag/internal/domain"
)

// IndexSnapshot is an immutable view of one index generation.
type IndexSnapshot interface {
	ID() uint64
	Dimension() int
	Len() int
	QueryNearest(vector []float32, k int) ([]domain.Neighbor, error)
	Document(id string) (domain.SourceInfo, bool)
	Documents() []domain.SourceInfo
	Entries() []domain.IndexEntry
}

// VectorIndex stores chunk embeddings and answers nearest-neighbor queries.
type VectorIndex interface {
	Snapshot() IndexSnapshot
	Upsert(ctx context.Context, entries []domain.IndexEntry) error
	Delete(ctx context.Context, chunkIDs []string) error
	Rebuild(ctx context.Context, entries []domain.IndexEntry) error
	QueryNearest(vector []float32, k int) ([]domain.Neighbor, error)
}

// IndexMeta is the persisted header of a generation.
type IndexMeta struct {
	SchemaVersion int    `json:"schema_version"`
	ConfigHash    string `json:"config_hash"`
	Generation    uint64 `json:"generation"`
	Dimension     int    `json:"dimension"`
	Model         string `json:"model"`
}

// IndexPersister durably stores index generations.
type IndexPersister interface {
	// Load returns the saved meta and entries in insertion order.
	// A store that has never been written returns a zero meta and no entries.
	Load() (IndexMeta, []domain.IndexEntry, error)

	// SaveGeneration replaces the stored contents with a complete generation.
	SaveGeneration(meta IndexMeta, entries []domain.IndexEntry) error

	// ApplyChanges upserts and deletes entries atomically and updates the meta.
	ApplyChanges(meta IndexMeta, upserts []domain.IndexEntry, deletes []string) error
}
