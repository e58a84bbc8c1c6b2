package chunker

import (
	"fmt"
	"path/filepath"
	"strings"

	"vaultrag/internal/domain"
)

// WindowChunker splits documents into fixed-size rune windows where each
// window shares exactly `overlap` runes with the next one.
type WindowChunker struct {
	size    int
	overlap int
}

// NewWindowChunker validates the window configuration.
func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if _, err := Windows(0, size, overlap); err != nil {
		return nil, err
	}
	return &WindowChunker{size: size, overlap: overlap}, nil
}

// Chunk splits doc into windows. Chunk text carries the document's display
// prefix; offsets refer to the unprefixed document text. Markdown documents
// also get the nearest heading as Section.
func (c *WindowChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	return Split(doc, c.size, c.overlap)
}

// Split is the stateless form of WindowChunker.Chunk.
func Split(doc domain.Document, size, overlap int) ([]domain.Chunk, error) {
	runes := []rune(doc.Text)
	windows, err := Windows(len(runes), size, overlap)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, nil
	}

	var outline Outline
	if isMarkdown(doc.Path) || isMarkdown(doc.ID) {
		outline = ParseOutline(doc.Text)
	}

	prefix := domain.DisplayPrefix(doc.Name)
	modTime := int64(0)
	if !doc.ModTime.IsZero() {
		modTime = doc.ModTime.UnixNano()
	}

	chunks := make([]domain.Chunk, 0, len(windows))
	for seq, w := range windows {
		chunks = append(chunks, domain.Chunk{
			ID:      domain.ChunkID(doc.ID, seq),
			DocID:   doc.ID,
			DocPath: doc.Path,
			DocName: doc.Name,
			Seq:     seq,
			Start:   w[0],
			End:     w[1],
			DocType: doc.DocType,
			Section: outline.SectionAt(w[0], w[1]),
			Text:    prefix + string(runes[w[0]:w[1]]),
			ModTime: modTime,
		})
	}
	return chunks, nil
}

// Windows returns the [start, end) offsets of every window over a text of
// n runes. The last window is shortened rather than padded.
func Windows(n, size, overlap int) ([][2]int, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: window size %d must be positive", domain.ErrInvalidConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", domain.ErrInvalidConfig, overlap, size)
	}
	if n == 0 {
		return nil, nil
	}

	step := size - overlap
	windows := make([][2]int, 0, n/step+1)
	for start := 0; ; start += step {
		end := min(start+size, n)
		windows = append(windows, [2]int{start, end})
		if end == n {
			break
		}
	}
	return windows, nil
}

func isMarkdown(p string) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".md", ".markdown":
		return true
	}
	return false
}
