package fs

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"vaultrag/internal/adapter/analyzer"
	"vaultrag/internal/domain"
	"vaultrag/internal/port"
)

// LoadDocument reads a walked file into a classified Document.
func LoadDocument(f port.FileInfo) (domain.Document, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return domain.Document{}, err
	}
	if !utf8.Valid(data) {
		return domain.Document{}, fmt.Errorf("%s: not valid UTF-8 text", f.RelPath)
	}
	text := string(data)

	return domain.Document{
		ID:      f.RelPath,
		Path:    f.Path,
		Name:    DisplayName(f.RelPath),
		Text:    text,
		ModTime: time.Unix(0, f.ModTime),
		DocType: analyzer.ClassifyDocument(f.RelPath, text),
	}, nil
}

// Rel resolves p against root and returns its absolute path and its
// slash-separated path relative to root. Paths outside root are rejected.
func Rel(root, p string) (string, string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return "", "", err
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%s is outside %s", p, root)
	}
	return p, filepath.ToSlash(rel), nil
}

// Stat builds the FileInfo for a single path below root.
func Stat(root, p string) (port.FileInfo, error) {
	p, rel, err := Rel(root, p)
	if err != nil {
		return port.FileInfo{}, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return port.FileInfo{}, err
	}
	return port.FileInfo{
		Path:    p,
		RelPath: rel,
		ModTime: info.ModTime().UnixNano(),
		Size:    info.Size(),
	}, nil
}

// DisplayName is the file name without its extension.
func DisplayName(relPath string) string {
	base := path.Base(relPath)
	return strings.TrimSuffix(base, path.Ext(base))
}
