package retriever

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"vaultrag/internal/adapter/analyzer"
	"vaultrag/internal/domain"
	"vaultrag/internal/port"
)

// Weights configures hybrid scoring.
type Weights struct {
	WidenFactor   int     // candidates fetched per requested result
	FilenameBonus float64 // added once when a query term occurs in the source name
	BodyTermBonus float64 // added per distinct query term found in the chunk body
	MaxBodyTerms  int     // cap on rewarded body terms

	DedupOverlapping bool // keep only the best chunk per (document, offset bucket)
	DedupBucket      int  // bucket width in runes
}

// DefaultWeights matches the defaults in config.
func DefaultWeights() Weights {
	return Weights{WidenFactor: 10, FilenameBonus: 0.5, BodyTermBonus: 0.1, MaxBodyTerms: 3, DedupBucket: 1000}
}

// Validate checks the weights together with a type boost. The body and type
// contributions combined must stay strictly below the filename bonus, so a
// filename match always outranks body-only matches of equal similarity.
func (w Weights) Validate(typeBoost float64) error {
	if w.WidenFactor < 1 {
		return fmt.Errorf("%w: widen factor must be at least 1", domain.ErrInvalidConfig)
	}
	if w.FilenameBonus < 0 || w.BodyTermBonus < 0 || w.MaxBodyTerms < 0 || typeBoost < 0 {
		return fmt.Errorf("%w: ranking bonuses must be non-negative", domain.ErrInvalidConfig)
	}
	if w.BodyTermBonus*float64(w.MaxBodyTerms)+typeBoost >= w.FilenameBonus {
		return fmt.Errorf("%w: body (%.2f x %d) plus type boost %.2f must stay below filename bonus %.2f",
			domain.ErrInvalidConfig, w.BodyTermBonus, w.MaxBodyTerms, typeBoost, w.FilenameBonus)
	}
	if w.DedupOverlapping && w.DedupBucket < 1 {
		return fmt.Errorf("%w: dedup bucket must be at least 1", domain.ErrInvalidConfig)
	}
	return nil
}

// HybridRanker combines vector similarity with keyword evidence and
// doc-type boosting.
type HybridRanker struct {
	index     port.VectorIndex
	embedder  port.Embedder
	tokenizer port.Tokenizer
	weights   Weights
}

var _ port.Retriever = (*HybridRanker)(nil)

func NewHybridRanker(index port.VectorIndex, embedder port.Embedder, tokenizer port.Tokenizer, weights Weights) (*HybridRanker, error) {
	if err := weights.Validate(0); err != nil {
		return nil, err
	}
	if tokenizer == nil {
		tokenizer = analyzer.NewTokenizer()
	}
	return &HybridRanker{
		index:     index,
		embedder:  embedder,
		tokenizer: tokenizer,
		weights:   weights,
	}, nil
}

// Search returns at most k results ordered by final score, then semantic
// similarity, then chunk id.
func (r *HybridRanker) Search(ctx context.Context, query string, k int, boost domain.BoostConfig) ([]domain.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	if err := r.weights.Validate(boost.TypeBoost); err != nil {
		return nil, err
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, embeddingError(ctx, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: no vector for query", domain.ErrEmbeddingUnavailable)
	}

	// One snapshot for the whole ranking pass.
	snap := r.index.Snapshot()
	neighbors, err := snap.QueryNearest(vectors[0], candidates(k, r.weights.WidenFactor, snap.Len()))
	if err != nil {
		return nil, err
	}

	terms := r.tokenizer.Terms(query)
	results := make([]domain.SearchResult, 0, len(neighbors))
	for _, n := range neighbors {
		results = append(results, r.score(n, terms, boost))
	}

	SortResults(results)
	if r.weights.DedupOverlapping {
		results = dedupOverlapping(results, r.weights.DedupBucket)
	}
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// candidates returns k*widen capped at the index size, without overflowing
// for large k.
func candidates(k, widen, size int) int {
	if k > size/widen {
		return size
	}
	return k * widen
}

func (r *HybridRanker) score(n domain.Neighbor, terms []string, boost domain.BoostConfig) domain.SearchResult {
	c := n.Entry.Chunk
	similarity := Similarity(n.Distance)

	keyword := 0.0
	name := strings.ToLower(c.DocName)
	for _, term := range terms {
		if strings.Contains(name, term) {
			keyword += r.weights.FilenameBonus
			break
		}
	}

	body := strings.ToLower(c.Body())
	matched := 0
	for _, term := range terms {
		if matched == r.weights.MaxBodyTerms {
			break
		}
		if strings.Contains(body, term) {
			matched++
		}
	}
	keyword += float64(matched) * r.weights.BodyTermBonus

	typeBoost := 0.0
	if boost.Prefers(c.DocType) {
		typeBoost = boost.TypeBoost
	}

	return domain.SearchResult{
		ChunkID:          c.ID,
		SourceDocumentID: c.DocID,
		SourcePath:       c.DocPath,
		DocName:          c.DocName,
		DocType:          c.DocType,
		Section:          c.Section,
		Text:             c.Text,
		Start:            c.Start,
		End:              c.End,
		Similarity:       similarity,
		KeywordScore:     keyword,
		TypeBoost:        typeBoost,
		FinalScore:       similarity + keyword + typeBoost,
	}
}

// Similarity maps a cosine distance in [0, 2] to a score in [0, 1].
func Similarity(distance float64) float64 {
	return math.Max(0, 1-distance/2)
}

// SortResults orders by final score desc, similarity desc, chunk id asc.
func SortResults(results []domain.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.FinalScore != b.FinalScore {
			return a.FinalScore > b.FinalScore
		}
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		return a.ChunkID < b.ChunkID
	})
}

// dedupOverlapping keeps the first (best) result per document offset bucket.
// Applied before truncation so up to k distinct results survive.
func dedupOverlapping(results []domain.SearchResult, bucket int) []domain.SearchResult {
	type key struct {
		doc    string
		bucket int
	}
	seen := make(map[key]struct{}, len(results))
	out := results[:0]
	for _, res := range results {
		k := key{doc: res.SourceDocumentID, bucket: res.Start / bucket}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, res)
	}
	return out
}

func embeddingError(ctx context.Context, err error) error {
	if ctx.Err() != nil ||
		errors.Is(err, domain.ErrEmbeddingUnavailable) ||
		errors.Is(err, domain.ErrDimensionMismatch) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
}
