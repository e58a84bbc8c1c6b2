package vectorindex

import (
	"math"
	"sort"
	"time"

	"vaultrag/internal/domain"
	"vaultrag/internal/port"
)

// generation is an immutable snapshot of the index. Writers build a new
// generation and swap it in; readers never see a partial one.
type generation struct {
	id        uint64
	dimension int
	entries   []domain.IndexEntry // insertion order
	byID      map[string]int
	docs      map[string]domain.SourceInfo
	docIDs    []string // sorted
}

var _ port.IndexSnapshot = (*generation)(nil)

func newGeneration(id uint64, dimension int, entries []domain.IndexEntry) *generation {
	g := &generation{
		id:        id,
		dimension: dimension,
		entries:   entries,
		byID:      make(map[string]int, len(entries)),
		docs:      make(map[string]domain.SourceInfo),
	}
	for i, e := range entries {
		g.byID[e.Chunk.ID] = i

		info, ok := g.docs[e.Chunk.DocID]
		if !ok {
			info = domain.SourceInfo{
				ID:      e.Chunk.DocID,
				Path:    e.Chunk.DocPath,
				Name:    e.Chunk.DocName,
				DocType: e.Chunk.DocType,
			}
			if e.Chunk.ModTime != 0 {
				info.ModTime = time.Unix(0, e.Chunk.ModTime)
			}
			g.docIDs = append(g.docIDs, e.Chunk.DocID)
		}
		info.Chunks++
		g.docs[e.Chunk.DocID] = info
	}
	sort.Strings(g.docIDs)
	return g
}

func (g *generation) ID() uint64     { return g.id }
func (g *generation) Dimension() int { return g.dimension }
func (g *generation) Len() int       { return len(g.entries) }

// Entries returns the entries in insertion order. The slice is a copy;
// the entries themselves must not be modified.
func (g *generation) Entries() []domain.IndexEntry {
	return append([]domain.IndexEntry(nil), g.entries...)
}

func (g *generation) Document(id string) (domain.SourceInfo, bool) {
	info, ok := g.docs[id]
	return info, ok
}

func (g *generation) Documents() []domain.SourceInfo {
	out := make([]domain.SourceInfo, 0, len(g.docIDs))
	for _, id := range g.docIDs {
		out = append(out, g.docs[id])
	}
	return out
}

// QueryNearest returns up to k entries with the smallest cosine distance.
// Equal distances keep insertion order.
func (g *generation) QueryNearest(vector []float32, k int) ([]domain.Neighbor, error) {
	if len(vector) != g.dimension {
		return nil, &domain.DimensionMismatchError{Expected: g.dimension, Got: len(vector)}
	}
	if k <= 0 || len(g.entries) == 0 {
		return nil, nil
	}

	type scored struct {
		idx      int
		distance float64
	}
	scores := make([]scored, len(g.entries))
	for i, e := range g.entries {
		scores[i] = scored{idx: i, distance: 1 - cosineSimilarity(vector, e.Vector)}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].distance < scores[j].distance
	})

	if k > len(scores) {
		k = len(scores)
	}
	results := make([]domain.Neighbor, k)
	for i := 0; i < k; i++ {
		e := g.entries[scores[i].idx]
		results[i] = domain.Neighbor{ChunkID: e.Chunk.ID, Distance: scores[i].distance, Entry: e}
	}
	return results, nil
}

// cosineSimilarity calculates the cosine similarity between two vectors.
// A zero vector has similarity 0 with everything.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
