package port

import (
	"context"

	"vaultrag/internal/domain"
)

// Retriever defines the interface for searching indexed content.
type Retriever interface {
	// Search returns at most k ranked results for the query.
	Search(ctx context.Context, query string, k int, boost domain.BoostConfig) ([]domain.SearchResult, error)
}
