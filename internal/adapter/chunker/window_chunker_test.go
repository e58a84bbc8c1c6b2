package chunker

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultrag/internal/domain"
)

func testDoc(text string) domain.Document {
	return domain.Document{ID: "Hardware/Mini PC.md", Path: "/vault/Hardware/Mini PC.md", Name: "Mini PC", Text: text, DocType: domain.DocTypeHardware}
}

func TestWindowChunker_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		size, overlap int
	}{
		{100, 100},
		{100, 150},
		{0, 0},
		{10, -1},
	}
	for _, tt := range tests {
		_, err := NewWindowChunker(tt.size, tt.overlap)
		assert.True(t, errors.Is(err, domain.ErrInvalidConfig), "size=%d overlap=%d", tt.size, tt.overlap)
	}
}

func TestSplit_OverlapAndCoverage(t *testing.T) {
	text := strings.Repeat("abcdefghij", 25) // 250 runes
	chunks, err := Split(testDoc(text), 100, 20)
	require.NoError(t, err)

	// starts at 0, 80, 160; the last window [160,250) is shortened.
	require.Len(t, chunks, 3)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 250, chunks[len(chunks)-1].End)
	assert.Equal(t, 90, chunks[2].End-chunks[2].Start)

	for i := 0; i+1 < len(chunks); i++ {
		assert.Equal(t, 20, chunks[i].End-chunks[i+1].Start, "overlap between %d and %d", i, i+1)
	}

	runes := []rune(text)
	for _, c := range chunks {
		assert.Equal(t, "[Mini PC] "+string(runes[c.Start:c.End]), c.Text)
		assert.Equal(t, string(runes[c.Start:c.End]), c.Body())
		assert.Equal(t, domain.DocTypeHardware, c.DocType)
	}
}

func TestSplit_ShortDocumentSingleChunk(t *testing.T) {
	chunks, err := Split(testDoc("tiny"), 1000, 200)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 4, chunks[0].End)
	assert.Equal(t, "Hardware/Mini PC.md#00000", chunks[0].ID)
}

func TestSplit_EmptyDocument(t *testing.T) {
	chunks, err := Split(testDoc(""), 1000, 200)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplit_RuneOffsets(t *testing.T) {
	text := strings.Repeat("ä", 30)
	chunks, err := Split(testDoc(text), 10, 5)
	require.NoError(t, err)
	for _, c := range chunks {
		assert.Equal(t, c.End-c.Start, len([]rune(c.Body())))
	}
	assert.Equal(t, 30, chunks[len(chunks)-1].End)
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet ", 100)
	a, err := Split(testDoc(text), 120, 30)
	require.NoError(t, err)
	b, err := Split(testDoc(text), 120, 30)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSplit_Sections(t *testing.T) {
	text := "intro line\n\n# Specs\n\nCPU and RAM details here.\n\n## Storage\n\nTwo NVMe drives.\n"
	chunks, err := Split(testDoc(text), 20, 5)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	assert.Equal(t, "Specs", chunks[0].Section, "first heading inside the first window")
	assert.Equal(t, "Storage", chunks[len(chunks)-1].Section)
}

func TestWindows_StepCount(t *testing.T) {
	w, err := Windows(1000, 1000, 200)
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{0, 1000}}, w)

	w, err = Windows(1001, 1000, 200)
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{0, 1000}, {800, 1001}}, w)
}
