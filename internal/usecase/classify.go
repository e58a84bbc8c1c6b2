package usecase

import (
	"fmt"
	"strings"
	"unicode"

	"vaultrag/internal/domain"
)

// gapLexicon triggers gap analysis. Single words match whole query words;
// phrases match anywhere in the whitespace-normalized query.
var gapLexicon = []string{"gap", "gaps", "missing", "need", "needs", "should have", "lacking"}

// Analysis is the output of the classification pass.
type Analysis struct {
	// ByType lists distinct source document ids per doc type, in rank order.
	ByType      map[domain.DocType][]string
	Sources     int
	Notes       []domain.Note
	GapAnalysis bool
}

// Count returns the number of distinct sources of the given type.
func (a Analysis) Count(t domain.DocType) int {
	return len(a.ByType[t])
}

// Classify groups results by doc type and derives relationship notes.
func Classify(results []domain.SearchResult, query string) Analysis {
	a := Analysis{ByType: make(map[domain.DocType][]string)}

	seen := make(map[string]bool)
	for _, r := range results {
		if seen[r.SourceDocumentID] {
			continue
		}
		seen[r.SourceDocumentID] = true
		a.ByType[r.DocType] = append(a.ByType[r.DocType], r.SourceDocumentID)
	}
	a.Sources = len(seen)

	if a.Sources > 1 {
		a.Notes = append(a.Notes, domain.Note{
			Kind: domain.NoteCrossReference,
			Text: fmt.Sprintf("Cross-referenced %d sources: %d hardware, %d project, %d service, %d inventory, %d other",
				a.Sources,
				a.Count(domain.DocTypeHardware),
				a.Count(domain.DocTypeProject),
				a.Count(domain.DocTypeService),
				a.Count(domain.DocTypeInventory),
				a.Count(domain.DocTypeOther)),
		})
		if a.Count(domain.DocTypeProject) > 0 && a.Count(domain.DocTypeHardware) > 0 {
			a.Notes = append(a.Notes, domain.Note{
				Kind: domain.NoteInfrastructureRelationship,
				Text: "Projects and hardware appear together; deployment relationships can be analysed",
			})
		}
		if a.Count(domain.DocTypeHardware) > 0 && a.Count(domain.DocTypeService) == 0 {
			a.Notes = append(a.Notes, domain.Note{
				Kind: domain.NoteUndocumentedServices,
				Text: "Hardware is documented but the services running on it may need documentation",
			})
		}
	}

	if IsGapQuery(query) {
		a.GapAnalysis = true
		a.Notes = append(a.Notes, domain.Note{
			Kind: domain.NoteGapAnalysis,
			Text: "Gap analysis requested; compare against common infrastructure patterns",
		})
	}
	return a
}

// IsGapQuery reports whether the query asks about missing information.
func IsGapQuery(query string) bool {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return r != '\'' && !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	normalized := " " + strings.Join(words, " ") + " "
	for _, term := range gapLexicon {
		if strings.Contains(normalized, " "+term+" ") {
			return true
		}
	}
	return false
}
