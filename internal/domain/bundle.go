package domain

// NoteKind is the closed set of analysis notes.
type NoteKind string

const (
	NoteCrossReference             NoteKind = "cross_reference"
	NoteInfrastructureRelationship NoteKind = "infrastructure_relationship"
	NoteUndocumentedServices       NoteKind = "undocumented_services"
	NoteGapAnalysis                NoteKind = "gap_analysis"
)

// Note is a structured observation derived from the retrieved results.
type Note struct {
	Kind NoteKind `json:"kind"`
	Text string   `json:"text"`
}

// Citation is a piece of evidence whose source resolves to a known document.
type Citation struct {
	ChunkID    string  `json:"chunk_id"`
	Source     string  `json:"source"` // document display name
	SourceID   string  `json:"source_id"`
	Path       string  `json:"path"`
	DocType    DocType `json:"doc_type"`
	Section    string  `json:"section,omitempty"`
	Excerpt    string  `json:"excerpt"`
	Relevance  float64 `json:"relevance"`
	Similarity float64 `json:"similarity"`
}

// ContextBundle is the grounded context handed to the generation model.
type ContextBundle struct {
	Query             string     `json:"query"`
	Notes             []Note     `json:"notes,omitempty"`
	GapAnalysis       bool       `json:"gap_analysis"`
	Evidence          []Citation `json:"evidence"`
	Dropped           int        `json:"dropped"`
	History           []Turn     `json:"history,omitempty"`
	Directive         string     `json:"directive"`
	NoCitableEvidence bool       `json:"no_citable_evidence"`
}

// Err returns ErrNoCitableEvidence when the bundle carries no evidence.
func (b ContextBundle) Err() error {
	if b.NoCitableEvidence {
		return ErrNoCitableEvidence
	}
	return nil
}
