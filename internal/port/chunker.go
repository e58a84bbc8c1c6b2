package port

import "vaultrag/internal/domain"

// Chunker splits a document into overlapping windows.
type Chunker interface {
	Chunk(doc domain.Document) ([]domain.Chunk, error)
}
