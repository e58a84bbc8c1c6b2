package usecase

import (
	"vaultrag/config"
	"vaultrag/internal/domain"
	"vaultrag/internal/port"
)

// Assembler turns ranked results and session history into a ContextBundle.
// Sources are resolved against the index snapshot current at call time.
type Assembler struct {
	index   port.VectorIndex
	excerpt ExcerptLimits
	history HistoryLimits
}

// NewAssembler creates an assembler from the assemble config section.
func NewAssembler(index port.VectorIndex, cfg config.AssembleConfig) *Assembler {
	return &Assembler{
		index: index,
		excerpt: ExcerptLimits{
			High:          cfg.ExcerptHigh,
			Low:           cfg.ExcerptLow,
			HighRelevance: cfg.HighRelevance,
		},
		history: HistoryLimits{
			Turns:       cfg.HistoryTurns,
			BudgetChars: cfg.HistoryBudgetChars,
		},
	}
}

// Assemble runs the evidence, classification and composition passes.
// Only results with a resolvable source are classified.
func (a *Assembler) Assemble(results []domain.SearchResult, history []domain.Turn, query string) domain.ContextBundle {
	evidence := CollectEvidence(results, a.index.Snapshot(), a.excerpt)
	analysis := Classify(evidence.Resolved, query)
	return Compose(analysis, evidence, history, query, a.history)
}
