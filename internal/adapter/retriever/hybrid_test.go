package retriever

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultrag/internal/adapter/vectorindex"
	"vaultrag/internal/domain"
	"vaultrag/internal/port"
)

// stubEmbedder returns a fixed vector per query text.
type stubEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := s.vectors[t]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", t)
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) Dimension() int    { return 3 }
func (s *stubEmbedder) ModelName() string { return "stub" }

func indexed(t *testing.T, entries ...domain.IndexEntry) port.VectorIndex {
	t.Helper()
	idx := vectorindex.New(port.IndexMeta{Dimension: 3}, nil)
	require.NoError(t, idx.Rebuild(context.Background(), entries))
	return idx
}

func doc(name string, docType domain.DocType, body string, seq, start int, v ...float32) domain.IndexEntry {
	id := name + ".md"
	return domain.IndexEntry{
		Chunk: domain.Chunk{
			ID:      domain.ChunkID(id, seq),
			DocID:   id,
			DocPath: "/vault/" + id,
			DocName: name,
			Seq:     seq,
			Start:   start,
			End:     start + len([]rune(body)),
			DocType: docType,
			Text:    domain.DisplayPrefix(name) + body,
		},
		Vector: v,
	}
}

func ids(results []domain.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ChunkID
	}
	return out
}

func TestHybridRanker_FilenameBonusWins(t *testing.T) {
	idx := indexed(t,
		doc("Routing", domain.DocTypeOther, "routing configuration notes", 0, 0, 1, 0.05, 0),
		doc("Mini PC", domain.DocTypeHardware, "Mini PC hardware specs", 0, 0, 1, 0.2, 0),
		doc("Recipe", domain.DocTypeOther, "unrelated recipe text", 0, 0, 0, 0, 1),
	)
	emb := &stubEmbedder{vectors: map[string][]float32{"Mini PC": {1, 0, 0}}}
	r, err := NewHybridRanker(idx, emb, nil, DefaultWeights())
	require.NoError(t, err)

	results, err := r.Search(context.Background(), "Mini PC", 3, domain.BoostConfig{})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "Mini PC.md#00000", results[0].ChunkID)
	assert.Greater(t, results[1].Similarity, results[0].Similarity, "Routing is semantically closer")
	assert.InDelta(t, 0.6, results[0].KeywordScore, 1e-9, "filename bonus + one body term")
	assert.Equal(t, "Routing.md#00000", results[1].ChunkID)
	assert.Equal(t, "Recipe.md#00000", results[2].ChunkID)
	assert.InDelta(t, 0.5, results[2].Similarity, 1e-9, "orthogonal vector maps to 0.5")
}

func TestHybridRanker_FilenameBeatsBodyAtEqualSimilarity(t *testing.T) {
	idx := indexed(t,
		doc("Notes", domain.DocTypeHardware, "backup backup router switch storage", 0, 0, 1, 0, 0),
		doc("Backup", domain.DocTypeOther, "nothing relevant", 0, 0, 1, 0, 0),
	)
	emb := &stubEmbedder{vectors: map[string][]float32{"backup router switch storage": {1, 0, 0}}}
	r, err := NewHybridRanker(idx, emb, nil, DefaultWeights())
	require.NoError(t, err)

	boost := domain.BoostConfig{PreferTypes: []domain.DocType{domain.DocTypeHardware}, TypeBoost: 0.15}
	results, err := r.Search(context.Background(), "backup router switch storage", 2, boost)
	require.NoError(t, err)

	// Notes: 3 capped body terms (0.3) + type boost 0.15 = 0.45 < 0.5 filename bonus.
	assert.Equal(t, []string{"Backup.md#00000", "Notes.md#00000"}, ids(results))
	assert.InDelta(t, 0.3, results[1].KeywordScore, 1e-9)
	assert.InDelta(t, 0.15, results[1].TypeBoost, 1e-9)
	assert.Greater(t, results[0].FinalScore, results[1].FinalScore)
}

func TestHybridRanker_TieBreaksOnChunkID(t *testing.T) {
	idx := indexed(t,
		doc("b", domain.DocTypeOther, "same", 0, 0, 1, 0, 0),
		doc("a", domain.DocTypeOther, "same", 0, 0, 1, 0, 0),
	)
	emb := &stubEmbedder{vectors: map[string][]float32{"zzz": {1, 0, 0}}}
	r, err := NewHybridRanker(idx, emb, nil, DefaultWeights())
	require.NoError(t, err)

	results, err := r.Search(context.Background(), "zzz", 5, domain.BoostConfig{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md#00000", "b.md#00000"}, ids(results))
}

func TestHybridRanker_WidensBeforeTruncating(t *testing.T) {
	// The filename match is only the 4th nearest neighbor; with k=1 and a
	// widened candidate pool it still wins.
	idx := indexed(t,
		doc("x1", domain.DocTypeOther, "a", 0, 0, 1, 0, 0),
		doc("x2", domain.DocTypeOther, "b", 0, 0, 1, 0.01, 0),
		doc("x3", domain.DocTypeOther, "c", 0, 0, 1, 0.02, 0),
		doc("proxmox", domain.DocTypeOther, "d", 0, 0, 1, 0.3, 0),
	)
	emb := &stubEmbedder{vectors: map[string][]float32{"proxmox": {1, 0, 0}}}
	r, err := NewHybridRanker(idx, emb, nil, DefaultWeights())
	require.NoError(t, err)

	results, err := r.Search(context.Background(), "proxmox", 1, domain.BoostConfig{})
	require.NoError(t, err)
	assert.Equal(t, []string{"proxmox.md#00000"}, ids(results))
}

func TestHybridRanker_DedupOverlapping(t *testing.T) {
	idx := indexed(t,
		doc("nas", domain.DocTypeOther, "disk one", 0, 0, 1, 0, 0),
		doc("nas", domain.DocTypeOther, "disk two", 1, 800, 1, 0.1, 0),
		doc("nas", domain.DocTypeOther, "disk three", 2, 1600, 1, 0.2, 0),
	)
	emb := &stubEmbedder{vectors: map[string][]float32{"disk": {1, 0, 0}}}
	w := DefaultWeights()
	w.DedupOverlapping = true
	r, err := NewHybridRanker(idx, emb, nil, w)
	require.NoError(t, err)

	results, err := r.Search(context.Background(), "disk", 3, domain.BoostConfig{})
	require.NoError(t, err)
	// seq 0 and 1 share bucket 0 (start/1000); seq 2 is bucket 1.
	assert.Equal(t, []string{"nas.md#00000", "nas.md#00002"}, ids(results))
}

func TestHybridRanker_Errors(t *testing.T) {
	idx := indexed(t, doc("a", domain.DocTypeOther, "x", 0, 0, 1, 0, 0))

	r, err := NewHybridRanker(idx, &stubEmbedder{err: errors.New("connection refused")}, nil, DefaultWeights())
	require.NoError(t, err)
	_, err = r.Search(context.Background(), "q", 3, domain.BoostConfig{})
	assert.True(t, errors.Is(err, domain.ErrEmbeddingUnavailable))

	wrongDim := &stubEmbedder{vectors: map[string][]float32{"q": make([]float32, 768)}}
	r, err = NewHybridRanker(idx, wrongDim, nil, DefaultWeights())
	require.NoError(t, err)
	_, err = r.Search(context.Background(), "q", 3, domain.BoostConfig{})
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))

	_, err = r.Search(context.Background(), "q", 3, domain.BoostConfig{TypeBoost: 0.4})
	assert.True(t, errors.Is(err, domain.ErrInvalidConfig), "boost that could override a filename match")

	bad := DefaultWeights()
	bad.MaxBodyTerms = 10
	_, err = NewHybridRanker(idx, wrongDim, nil, bad)
	assert.True(t, errors.Is(err, domain.ErrInvalidConfig))
}

func TestHybridRanker_EmptyIndex(t *testing.T) {
	idx := vectorindex.New(port.IndexMeta{Dimension: 3}, nil)
	emb := &stubEmbedder{vectors: map[string][]float32{"q": {1, 0, 0}}}
	r, err := NewHybridRanker(idx, emb, nil, DefaultWeights())
	require.NoError(t, err)

	results, err := r.Search(context.Background(), "q", 3, domain.BoostConfig{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHybridRanker_HugeKReturnsEverything(t *testing.T) {
	idx := indexed(t, doc("NAS", domain.DocTypeHardware, "disks", 0, 0, 1, 0, 0))
	emb := &stubEmbedder{vectors: map[string][]float32{"nas": {1, 0, 0}}}
	r, err := NewHybridRanker(idx, emb, nil, DefaultWeights())
	require.NoError(t, err)

	for _, k := range []int{5, math.MaxInt / 5, math.MaxInt} {
		results, err := r.Search(context.Background(), "nas", k, domain.BoostConfig{})
		require.NoError(t, err)
		assert.Len(t, results, 1, "k=%d", k)
	}
}

func TestCandidates(t *testing.T) {
	tests := []struct {
		k, widen, size, want int
	}{
		{3, 10, 100, 30},
		{3, 10, 25, 25},
		{10, 10, 100, 100},
		{math.MaxInt / 5, 10, 7, 7},
		{math.MaxInt, 1, 7, 7},
		{1, 10, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, candidates(tt.k, tt.widen, tt.size), "k=%d widen=%d size=%d", tt.k, tt.widen, tt.size)
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		distance float64
		want     float64
	}{
		{0, 1},
		{1, 0.5},
		{2, 0},
		{2.5, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Similarity(tt.distance), 1e-9, "distance %v", tt.distance)
	}
}
