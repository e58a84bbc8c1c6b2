package usecase

import (
	"sort"

	"vaultrag/internal/domain"
	"vaultrag/internal/logger"
)

// SourceResolver resolves a source document id against the index.
// port.IndexSnapshot satisfies it.
type SourceResolver interface {
	Document(id string) (domain.SourceInfo, bool)
}

// ExcerptLimits controls excerpt length by relevance.
type ExcerptLimits struct {
	High          int     // runes kept for results above HighRelevance
	Low           int     // runes kept otherwise
	HighRelevance float64 // final score threshold
}

// Evidence is the output of the evidence pass.
type Evidence struct {
	Citations []domain.Citation
	Resolved  []domain.SearchResult // results behind Citations, in rank order
	Dropped   []string              // chunk ids without a resolvable source
}

// CollectEvidence keeps only results whose source resolves to a known
// document, most relevant first.
func CollectEvidence(results []domain.SearchResult, resolver SourceResolver, limits ExcerptLimits) Evidence {
	var ev Evidence
	for _, r := range results {
		if r.SourceDocumentID == "" {
			logger.Warn("dropping %s: result carries no source", r.ChunkID)
			ev.Dropped = append(ev.Dropped, r.ChunkID)
			continue
		}
		info, ok := resolver.Document(r.SourceDocumentID)
		if !ok {
			logger.Warn("dropping %s: source %q is not in the index", r.ChunkID, r.SourceDocumentID)
			ev.Dropped = append(ev.Dropped, r.ChunkID)
			continue
		}

		ev.Resolved = append(ev.Resolved, r)

		limit := limits.Low
		if r.FinalScore > limits.HighRelevance {
			limit = limits.High
		}
		ev.Citations = append(ev.Citations, domain.Citation{
			ChunkID:    r.ChunkID,
			Source:     info.Name,
			SourceID:   info.ID,
			Path:       info.Path,
			DocType:    info.DocType,
			Section:    r.Section,
			Excerpt:    excerpt(r.Body(), limit),
			Relevance:  r.FinalScore,
			Similarity: r.Similarity,
		})
	}

	sort.SliceStable(ev.Citations, func(i, j int) bool {
		return ev.Citations[i].Relevance > ev.Citations[j].Relevance
	})
	return ev
}

// excerpt truncates text to limit runes, marking the cut with "...".
func excerpt(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
