package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"vaultrag/config"
	"vaultrag/internal/domain"
	"vaultrag/internal/port"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

// ComputeConfigHash computes a hash of index-relevant configuration.
// Changes to this hash indicate the index should be rebuilt.
func ComputeConfigHash(cfg *config.Config) string {
	relevant := struct {
		WindowSize int    `json:"window_size"`
		Overlap    int    `json:"overlap"`
		Provider   string `json:"provider"`
		Model      string `json:"model"`
		Dimension  int    `json:"dimension"`
	}{
		WindowSize: cfg.Index.WindowSize,
		Overlap:    cfg.Index.Overlap,
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		Dimension:  cfg.Embedding.Dimension,
	}

	data, _ := json.Marshal(relevant)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// MigrationResult describes the result of a migration check.
type MigrationResult struct {
	NeedsRebuild bool
	OldVersion   int
	NewVersion   int
	Reason       string

	// KeepData is set when the stored generation is still readable and stays
	// authoritative until a rebuild under the new settings replaces it.
	KeepData bool

	// Dimension is set when the stored vectors no longer match the
	// configured embedding dimension.
	Dimension *domain.DimensionMismatchError
}

// CheckMigration reports whether the stored index must be rebuilt before use.
// An empty store never needs a rebuild.
func (s *BoltStore) CheckMigration(cfg *config.Config) (*MigrationResult, error) {
	meta, err := s.Meta()
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
	}

	result := &MigrationResult{
		OldVersion: meta.SchemaVersion,
		NewVersion: CurrentSchemaVersion,
	}

	switch {
	case meta.Generation == 0:
		return result, nil
	case meta.SchemaVersion > CurrentSchemaVersion:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("database created by newer version (v%d > v%d)", meta.SchemaVersion, CurrentSchemaVersion)
	case meta.SchemaVersion < CurrentSchemaVersion:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("schema upgrade from v%d to v%d", meta.SchemaVersion, CurrentSchemaVersion)
	case meta.Dimension != cfg.Embedding.Dimension:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("embedding dimension changed (%d -> %d)", meta.Dimension, cfg.Embedding.Dimension)
		result.Dimension = &domain.DimensionMismatchError{Expected: meta.Dimension, Got: cfg.Embedding.Dimension}
	case meta.ConfigHash != "" && meta.ConfigHash != ComputeConfigHash(cfg):
		result.NeedsRebuild = true
		result.Reason = "index configuration changed"
		result.KeepData = true
	}
	return result, nil
}

// NeedsRebuild checks if the index needs a full rebuild due to config changes.
func (s *BoltStore) NeedsRebuild(cfg *config.Config) (bool, string, error) {
	result, err := s.CheckMigration(cfg)
	if err != nil {
		return false, "", err
	}
	return result.NeedsRebuild, result.Reason, nil
}

// Clear removes all stored entries and resets the header.
func (s *BoltStore) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketEntries, bucketChunkIDs} {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketMeta).Delete(keyIndexMeta)
	})
}

// NewMeta builds the header for a generation written under cfg.
func NewMeta(cfg *config.Config, generation uint64) port.IndexMeta {
	return port.IndexMeta{
		SchemaVersion: CurrentSchemaVersion,
		ConfigHash:    ComputeConfigHash(cfg),
		Generation:    generation,
		Dimension:     cfg.Embedding.Dimension,
		Model:         cfg.Embedding.Model,
	}
}
