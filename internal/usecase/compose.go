package usecase

import (
	"unicode/utf8"

	"vaultrag/internal/domain"
)

// NotDocumented is the marker the model must use when the vault has no
// evidence for a question.
const NotDocumented = "I don't see that documented in your vault"

const directive = `RESPONSE GUIDELINES:
- Answer naturally and conversationally.
- Use general knowledge freely for universal facts and concepts.
- For claims about the user's hardware, projects, services or inventory, use only the vault evidence above and cite it as [Source: name].
- If user-specific information is not in the evidence, say "` + NotDocumented + `".
- For complex infrastructure questions, answer under "## From Your Vault" (documented facts with sources) and "## Analysis & Recommendations".`

const noEvidenceDirective = `NOT DOCUMENTED: no document in the vault supports an answer to this question.
Do not state facts about the user's setup. Reply "` + NotDocumented + `" and offer general guidance only if it is clearly marked as such.`

// HistoryLimits bounds the conversation history carried in a bundle.
type HistoryLimits struct {
	Turns       int // most recent turns kept; <= 0 keeps none
	BudgetChars int // total characters kept; <= 0 disables the budget
}

// Compose builds the final bundle from the outputs of the earlier passes.
func Compose(a Analysis, ev Evidence, history []domain.Turn, query string, limits HistoryLimits) domain.ContextBundle {
	b := domain.ContextBundle{
		Query:       query,
		Notes:       a.Notes,
		GapAnalysis: a.GapAnalysis,
		Evidence:    ev.Citations,
		Dropped:     len(ev.Dropped),
		History:     TrimHistory(history, limits),
		Directive:   directive,
	}
	if len(b.Evidence) == 0 {
		b.NoCitableEvidence = true
		b.Notes = uncitedNotes(a.Notes)
		b.Directive = noEvidenceDirective + "\n\n" + directive
	}
	return b
}

// uncitedNotes keeps the notes that do not describe sources. Without
// evidence only the gap analysis note survives.
func uncitedNotes(notes []domain.Note) []domain.Note {
	var kept []domain.Note
	for _, n := range notes {
		if n.Kind == domain.NoteGapAnalysis {
			kept = append(kept, n)
		}
	}
	return kept
}

// TrimHistory keeps the newest turns that fit both the turn count and the
// character budget. Once a turn does not fit, it and every older turn are
// dropped.
func TrimHistory(turns []domain.Turn, limits HistoryLimits) []domain.Turn {
	if limits.Turns <= 0 || len(turns) == 0 {
		return nil
	}
	if len(turns) > limits.Turns {
		turns = turns[len(turns)-limits.Turns:]
	}
	if limits.BudgetChars <= 0 {
		return append([]domain.Turn(nil), turns...)
	}

	used := 0
	first := len(turns)
	for i := len(turns) - 1; i >= 0; i-- {
		n := utf8.RuneCountInString(turns[i].Text)
		if used+n > limits.BudgetChars {
			break
		}
		used += n
		first = i
	}
	if first == len(turns) {
		return nil
	}
	return append([]domain.Turn(nil), turns[first:]...)
}
