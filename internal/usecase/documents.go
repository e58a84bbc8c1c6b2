package usecase

import (
	"sort"

	"vaultrag/internal/domain"
	"vaultrag/internal/port"
)

// IndexStatus summarizes the current index generation.
type IndexStatus struct {
	Generation uint64         `json:"generation"`
	Dimension  int            `json:"dimension"`
	Documents  int            `json:"documents"`
	Chunks     int            `json:"chunks"`
	ByType     map[string]int `json:"by_type"`
}

// Documents lists every source document in the current generation, sorted
// by id.
func Documents(index port.VectorIndex) []domain.SourceInfo {
	docs := index.Snapshot().Documents()
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}

// Status reports counts for the current generation.
func Status(index port.VectorIndex) IndexStatus {
	snap := index.Snapshot()
	docs := snap.Documents()
	st := IndexStatus{
		Generation: snap.ID(),
		Dimension:  snap.Dimension(),
		Documents:  len(docs),
		Chunks:     snap.Len(),
		ByType:     make(map[string]int),
	}
	for _, d := range docs {
		st.ByType[string(d.DocType)]++
	}
	return st
}
