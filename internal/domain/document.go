package domain

import (
	"fmt"
	"strings"
	"time"
)

// Document is a source file in the vault.
type Document struct {
	ID      string // slash-separated path relative to the vault root
	Path    string // absolute path on disk
	Name    string // file stem, used as display name
	Text    string
	ModTime time.Time
	DocType DocType
}

// Chunk is a contiguous window of a document's text. Start and End are
// rune offsets into the document text (half-open).
type Chunk struct {
	ID      string  `json:"id"`
	DocID   string  `json:"doc_id"`
	DocPath string  `json:"doc_path"`
	DocName string  `json:"doc_name"`
	Seq     int     `json:"seq"`
	Start   int     `json:"start"`
	End     int     `json:"end"`
	DocType DocType `json:"doc_type"`
	Section string  `json:"section,omitempty"`
	Text    string  `json:"text"`
	ModTime int64   `json:"mod_time"` // unix nanoseconds of the source document
}

// ChunkID derives the chunk identity from the document id and window sequence.
func ChunkID(docID string, seq int) string {
	return fmt.Sprintf("%s#%05d", docID, seq)
}

// DisplayPrefix is prepended to every chunk's text so the source name is
// visible to the embedding model.
func DisplayPrefix(name string) string {
	return "[" + name + "] "
}

// Body returns the chunk text without its display prefix.
func (c Chunk) Body() string {
	return strings.TrimPrefix(c.Text, DisplayPrefix(c.DocName))
}

// IndexEntry pairs a chunk with its embedding. Entries are owned by the
// index and never mutated once published.
type IndexEntry struct {
	Chunk      Chunk     `json:"chunk"`
	Vector     []float32 `json:"vector"`
	Generation uint64    `json:"generation"`
}

// Neighbor is one nearest-neighbor hit. Distance is cosine distance (0..2).
type Neighbor struct {
	ChunkID  string
	Distance float64
	Entry    IndexEntry
}

// SourceInfo describes a document known to the current index generation.
type SourceInfo struct {
	ID      string    `json:"id"`
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	DocType DocType   `json:"doc_type"`
	Chunks  int       `json:"chunks"`
	ModTime time.Time `json:"mod_time"`
}

// SearchResult is a ranked chunk.
type SearchResult struct {
	ChunkID          string  `json:"chunk_id"`
	SourceDocumentID string  `json:"source_document_id"`
	SourcePath       string  `json:"source_path"`
	DocName          string  `json:"doc_name"`
	DocType          DocType `json:"doc_type"`
	Section          string  `json:"section,omitempty"`
	Text             string  `json:"text"`
	Start            int     `json:"start"`
	End              int     `json:"end"`
	Similarity       float64 `json:"similarity"`
	KeywordScore     float64 `json:"keyword_score"`
	TypeBoost        float64 `json:"type_boost"`
	FinalScore       float64 `json:"final_score"`
}

// Body returns the result text without the display prefix.
func (r SearchResult) Body() string {
	return strings.TrimPrefix(r.Text, DisplayPrefix(r.DocName))
}

// BoostConfig selects doc types that receive an additive score boost.
type BoostConfig struct {
	PreferTypes []DocType `json:"prefer_types,omitempty"`
	TypeBoost   float64   `json:"type_boost,omitempty"`
}

// Prefers reports whether t is one of the boosted types.
func (b BoostConfig) Prefers(t DocType) bool {
	for _, p := range b.PreferTypes {
		if p == t {
			return true
		}
	}
	return false
}
