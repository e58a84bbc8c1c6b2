package usecase

import (
	"context"
	"fmt"
	"path"
	"strings"

	"vaultrag/internal/domain"
	"vaultrag/internal/port"
)

// VerifyTopK is the number of results searched when verifying a claim.
const VerifyTopK = 10

// VerifyUseCase checks whether a claim is backed by a specific document.
type VerifyUseCase struct {
	retriever port.Retriever
}

func NewVerifyUseCase(retriever port.Retriever) *VerifyUseCase {
	return &VerifyUseCase{retriever: retriever}
}

// Verification reports the best chunk of the named file for a claim.
type Verification struct {
	Found      bool    `json:"found"`
	Source     string  `json:"source"`
	ChunkID    string  `json:"chunk_id,omitempty"`
	Excerpt    string  `json:"excerpt,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Verify searches for the claim biased towards filename and keeps only
// results from that file. Confidence is the semantic similarity of the best
// match.
func (u *VerifyUseCase) Verify(ctx context.Context, filename, claim string) (Verification, error) {
	if strings.TrimSpace(filename) == "" || strings.TrimSpace(claim) == "" {
		return Verification{}, fmt.Errorf("filename and claim: %w", domain.ErrEmptyInput)
	}

	results, err := u.retriever.Search(ctx, claim+" "+filename, VerifyTopK, domain.BoostConfig{})
	if err != nil {
		return Verification{}, fmt.Errorf("search failed: %w", err)
	}

	v := Verification{Source: filename}
	for _, r := range results {
		if !matchesFile(r, filename) {
			continue
		}
		v.Found = true
		v.ChunkID = r.ChunkID
		v.Excerpt = r.Body()
		v.Confidence = r.Similarity
		break
	}
	return v, nil
}

// matchesFile compares case-insensitively against the display name, the
// file name and the vault-relative path.
func matchesFile(r domain.SearchResult, filename string) bool {
	return strings.EqualFold(r.DocName, filename) ||
		strings.EqualFold(path.Base(r.SourceDocumentID), filename) ||
		strings.EqualFold(r.SourceDocumentID, filename)
}
