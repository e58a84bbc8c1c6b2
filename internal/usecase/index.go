package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	vfs "vaultrag/internal/adapter/fs"
	"vaultrag/internal/domain"
	"vaultrag/internal/logger"
	"vaultrag/internal/port"
)

// Progress is called as chunks finish embedding. Calls are serialized.
type Progress func(done, total int)

// IndexUseCase handles vault indexing: full rebuilds, incremental updates
// and single-file refreshes. Only one of these runs at a time.
type IndexUseCase struct {
	walker    port.FileWalker
	chunker   port.Chunker
	embedder  port.Embedder
	index     port.VectorIndex
	workers   int
	batchSize int
	busy      atomic.Bool
}

// NewIndexUseCase creates a new index use case.
func NewIndexUseCase(
	walker port.FileWalker,
	chunker port.Chunker,
	embedder port.Embedder,
	index port.VectorIndex,
	workers, batchSize int,
) *IndexUseCase {
	if workers < 1 {
		workers = 1
	}
	if batchSize < 1 {
		batchSize = 1
	}
	return &IndexUseCase{
		walker:    walker,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		workers:   workers,
		batchSize: batchSize,
	}
}

// IndexResult contains the results of an indexing operation.
type IndexResult struct {
	FilesIndexed  int      `json:"files_indexed"`
	FilesSkipped  int      `json:"files_skipped"`
	FilesDeleted  int      `json:"files_deleted"`
	ChunksWritten int      `json:"chunks_written"`
	ChunksDeleted int      `json:"chunks_deleted"`
	Generation    uint64   `json:"generation"`
	Errors        []string `json:"errors,omitempty"`
}

func (u *IndexUseCase) acquire() error {
	if !u.busy.CompareAndSwap(false, true) {
		return domain.ErrRebuildInProgress
	}
	return nil
}

// Rebuild re-reads every document under root and replaces the whole index
// generation. On error or cancellation the previous generation stays live.
func (u *IndexUseCase) Rebuild(ctx context.Context, root string, progress Progress) (*IndexResult, error) {
	if err := u.acquire(); err != nil {
		return nil, err
	}
	defer u.busy.Store(false)

	result := &IndexResult{}

	files, err := u.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	var chunks []domain.Chunk
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		docChunks, err := u.chunkFile(f)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to index %s: %v", f.RelPath, err))
			continue
		}
		chunks = append(chunks, docChunks...)
		result.FilesIndexed++
	}

	entries, err := u.embed(ctx, chunks, progress)
	if err != nil {
		return nil, err
	}
	if err := u.index.Rebuild(ctx, entries); err != nil {
		return nil, err
	}

	result.ChunksWritten = len(entries)
	result.Generation = u.index.Snapshot().ID()
	logger.Info("rebuilt index: %d documents, %d chunks (generation %d)",
		result.FilesIndexed, result.ChunksWritten, result.Generation)
	return result, nil
}

// Update re-indexes documents whose modification time differs from the
// indexed copy, and drops documents that no longer exist.
func (u *IndexUseCase) Update(ctx context.Context, root string) (*IndexResult, error) {
	if err := u.acquire(); err != nil {
		return nil, err
	}
	defer u.busy.Store(false)

	result := &IndexResult{}

	files, err := u.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	snap := u.index.Snapshot()
	existing := chunkIDsByDoc(snap)
	seen := make(map[string]bool, len(files))

	var changed []port.FileInfo
	for _, f := range files {
		seen[f.RelPath] = true
		if info, ok := snap.Document(f.RelPath); ok && info.ModTime.UnixNano() == f.ModTime {
			result.FilesSkipped++
			continue
		}
		changed = append(changed, f)
	}

	var deletes []string
	for docID, ids := range existing {
		if !seen[docID] {
			deletes = append(deletes, ids...)
			result.FilesDeleted++
		}
	}

	if err := u.refresh(ctx, changed, existing, deletes, result); err != nil {
		return nil, err
	}
	return result, nil
}

// IndexFiles refreshes only the given paths (absolute or relative to root).
// Paths that no longer exist are removed from the index; paths outside the
// configured include/exclude patterns are skipped.
func (u *IndexUseCase) IndexFiles(ctx context.Context, root string, paths []string) (*IndexResult, error) {
	if err := u.acquire(); err != nil {
		return nil, err
	}
	defer u.busy.Store(false)

	result := &IndexResult{}
	existing := chunkIDsByDoc(u.index.Snapshot())

	var changed []port.FileInfo
	var deletes []string
	for _, p := range paths {
		_, rel, err := vfs.Rel(root, p)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		if !u.walker.Matches(rel) {
			result.FilesSkipped++
			continue
		}
		f, err := vfs.Stat(root, p)
		if errors.Is(err, fs.ErrNotExist) {
			if ids, ok := existing[rel]; ok {
				deletes = append(deletes, ids...)
				result.FilesDeleted++
			}
			continue
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to stat %s: %v", rel, err))
			continue
		}
		changed = append(changed, f)
	}

	if err := u.refresh(ctx, changed, existing, deletes, result); err != nil {
		return nil, err
	}
	return result, nil
}

// refresh chunks and embeds the changed files, upserts their entries and
// deletes chunk ids that are no longer produced.
func (u *IndexUseCase) refresh(ctx context.Context, changed []port.FileInfo, existing map[string][]string, deletes []string, result *IndexResult) error {
	var chunks []domain.Chunk
	for _, f := range changed {
		if err := ctx.Err(); err != nil {
			return err
		}
		docChunks, err := u.chunkFile(f)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to index %s: %v", f.RelPath, err))
			continue
		}
		keep := make(map[string]struct{}, len(docChunks))
		for _, c := range docChunks {
			keep[c.ID] = struct{}{}
		}
		for _, id := range existing[f.RelPath] {
			if _, ok := keep[id]; !ok {
				deletes = append(deletes, id)
			}
		}
		chunks = append(chunks, docChunks...)
		result.FilesIndexed++
	}

	entries, err := u.embed(ctx, chunks, nil)
	if err != nil {
		return err
	}
	if err := u.index.Upsert(ctx, entries); err != nil {
		return err
	}
	if err := u.index.Delete(ctx, deletes); err != nil {
		return err
	}

	result.ChunksWritten = len(entries)
	result.ChunksDeleted = len(deletes)
	result.Generation = u.index.Snapshot().ID()
	if result.FilesIndexed > 0 || result.FilesDeleted > 0 {
		logger.Info("updated index: %d indexed, %d removed, %d unchanged (generation %d)",
			result.FilesIndexed, result.FilesDeleted, result.FilesSkipped, result.Generation)
	}
	return nil
}

func (u *IndexUseCase) chunkFile(f port.FileInfo) ([]domain.Chunk, error) {
	doc, err := vfs.LoadDocument(f)
	if err != nil {
		return nil, err
	}
	chunks, err := u.chunker.Chunk(doc)
	if err != nil {
		return nil, err
	}
	logger.Debug("chunked %s (%s): %d chunks", doc.ID, doc.DocType, len(chunks))
	return chunks, nil
}

// embed computes vectors in batches on a bounded worker pool. The returned
// entries keep the order of chunks.
func (u *IndexUseCase) embed(ctx context.Context, chunks []domain.Chunk, progress Progress) ([]domain.IndexEntry, error) {
	entries := make([]domain.IndexEntry, len(chunks))
	if len(chunks) == 0 {
		return entries, nil
	}

	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.workers)

	for start := 0; start < len(chunks); start += u.batchSize {
		if gctx.Err() != nil {
			break
		}
		end := min(start+u.batchSize, len(chunks))
		g.Go(func() error {
			batch := chunks[start:end]
			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Text
			}
			vectors, err := u.embedder.Embed(gctx, texts)
			if err != nil {
				return fmt.Errorf("failed to embed %s: %w", batch[0].ID, err)
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
			}
			for i, v := range vectors {
				entries[start+i] = domain.IndexEntry{Chunk: batch[i], Vector: v}
			}
			if progress != nil {
				mu.Lock()
				done += len(batch)
				progress(done, len(chunks))
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// chunkIDsByDoc groups the snapshot's chunk ids by document, in sequence order.
func chunkIDsByDoc(snap port.IndexSnapshot) map[string][]string {
	out := make(map[string][]string)
	for _, e := range snap.Entries() {
		out[e.Chunk.DocID] = append(out[e.Chunk.DocID], e.Chunk.ID)
	}
	for _, ids := range out {
		sort.Strings(ids)
	}
	return out
}
