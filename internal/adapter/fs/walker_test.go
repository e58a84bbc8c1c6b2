package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultrag/internal/domain"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func TestWalker_IncludesAndExcludes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "README.md", "root")
	writeFile(t, root, "Hardware/Mini PC.md", "specs")
	writeFile(t, root, "Services/dns.txt", "dns")
	writeFile(t, root, "data/export.json", "{}")
	writeFile(t, root, "image.png", "binary")
	writeFile(t, root, ".obsidian/workspace.json", "{}")
	writeFile(t, root, ".vaultrag/config.yaml", "x: 1")

	w := NewWalker([]string{"**/*.md", "**/*.txt", "**/*.json"}, []string{"**/.obsidian/**", "**/.vaultrag/**"})
	files, err := w.Walk(root)
	require.NoError(t, err)

	var rel []string
	for _, f := range files {
		rel = append(rel, f.RelPath)
		assert.True(t, filepath.IsAbs(f.Path))
	}
	assert.Equal(t, []string{"Hardware/Mini PC.md", "README.md", "Services/dns.txt", "data/export.json"}, rel)
}

func TestLoadDocument(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Hardware/Mini PC.md", "# Mini PC\n32 GB RAM")

	f, err := Stat(root, "Hardware/Mini PC.md")
	require.NoError(t, err)
	doc, err := LoadDocument(f)
	require.NoError(t, err)

	assert.Equal(t, "Hardware/Mini PC.md", doc.ID)
	assert.Equal(t, "Mini PC", doc.Name)
	assert.Equal(t, domain.DocTypeHardware, doc.DocType)
	assert.Equal(t, "# Mini PC\n32 GB RAM", doc.Text)
	assert.False(t, doc.ModTime.IsZero())
}

func TestLoadDocument_RejectsBinary(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "bad.txt", string([]byte{0xff, 0xfe, 0x00}))
	f, err := Stat(root, "bad.txt")
	require.NoError(t, err)
	_, err = LoadDocument(f)
	assert.Error(t, err)
}

func TestStat_OutsideRoot(t *testing.T) {
	root := t.TempDir()
	_, err := Stat(root, filepath.Join(root, "..", "elsewhere.md"))
	assert.Error(t, err)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Mini PC", DisplayName("Hardware/Mini PC.md"))
	assert.Equal(t, "notes.v2", DisplayName("notes.v2.txt"))
	assert.Equal(t, "plain", DisplayName("plain"))
}
