package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"vaultrag/internal/domain"
	"vaultrag/internal/port"
)

var (
	bucketMeta     = []byte("meta")
	bucketEntries  = []byte("entries")
	bucketChunkIDs = []byte("chunk_ids")
	keyIndexMeta   = []byte("index_meta")
)

// BoltStore persists index generations in a single bbolt file. Entries are
// keyed by an insertion sequence so a reload preserves insertion order.
type BoltStore struct {
	db *bbolt.DB
}

var _ port.IndexPersister = (*BoltStore)(nil)

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketEntries, bucketChunkIDs} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Meta returns the stored generation header.
func (s *BoltStore) Meta() (port.IndexMeta, error) {
	var meta port.IndexMeta
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		meta, err = readMeta(tx)
		return err
	})
	return meta, err
}

func (s *BoltStore) Load() (port.IndexMeta, []domain.IndexEntry, error) {
	var (
		meta    port.IndexMeta
		entries []domain.IndexEntry
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		if meta, err = readMeta(tx); err != nil {
			return err
		}
		return tx.Bucket(bucketEntries).ForEach(func(k, v []byte) error {
			var entry domain.IndexEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("corrupt entry %x: %w", k, err)
			}
			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return port.IndexMeta{}, nil, err
	}
	return meta, entries, nil
}

func (s *BoltStore) SaveGeneration(meta port.IndexMeta, entries []domain.IndexEntry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketEntries, bucketChunkIDs} {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		for _, entry := range entries {
			if err := putEntry(tx, entry); err != nil {
				return err
			}
		}
		return writeMeta(tx, meta)
	})
}

func (s *BoltStore) ApplyChanges(meta port.IndexMeta, upserts []domain.IndexEntry, deletes []string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		entries := tx.Bucket(bucketEntries)
		ids := tx.Bucket(bucketChunkIDs)
		for _, id := range deletes {
			seq := ids.Get([]byte(id))
			if seq == nil {
				continue
			}
			if err := entries.Delete(seq); err != nil {
				return err
			}
			if err := ids.Delete([]byte(id)); err != nil {
				return err
			}
		}
		for _, entry := range upserts {
			if err := putEntry(tx, entry); err != nil {
				return err
			}
		}
		return writeMeta(tx, meta)
	})
}

// putEntry overwrites an existing chunk in place or appends it with the
// next insertion sequence.
func putEntry(tx *bbolt.Tx, entry domain.IndexEntry) error {
	entries := tx.Bucket(bucketEntries)
	ids := tx.Bucket(bucketChunkIDs)

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry %s: %w", entry.Chunk.ID, err)
	}

	key := ids.Get([]byte(entry.Chunk.ID))
	if key == nil {
		seq, err := entries.NextSequence()
		if err != nil {
			return err
		}
		key = make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		if err := ids.Put([]byte(entry.Chunk.ID), key); err != nil {
			return err
		}
	} else {
		key = append([]byte(nil), key...)
	}
	return entries.Put(key, data)
}

func readMeta(tx *bbolt.Tx) (port.IndexMeta, error) {
	var meta port.IndexMeta
	data := tx.Bucket(bucketMeta).Get(keyIndexMeta)
	if data == nil {
		return meta, nil
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("corrupt index meta: %w", err)
	}
	return meta, nil
}

func writeMeta(tx *bbolt.Tx, meta port.IndexMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketMeta).Put(keyIndexMeta, data)
}
