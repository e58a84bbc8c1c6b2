package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Heading is a markdown heading located by rune offset.
type Heading struct {
	Level  int
	Title  string
	Offset int
}

// Outline is the ordered list of headings in a document.
type Outline []Heading

var markdown = goldmark.New()

// ParseOutline extracts headings from markdown source. A leading YAML
// front matter block is skipped.
func ParseOutline(source string) Outline {
	src := []byte(source)
	skip := frontMatterEnd(source)
	body := src[skip:]
	doc := markdown.Parser().Parse(text.NewReader(body))

	var outline Outline
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		lines := h.Lines()
		if lines.Len() == 0 {
			return ast.WalkSkipChildren, nil
		}
		start := skip + lines.At(0).Start
		outline = append(outline, Heading{
			Level:  h.Level,
			Title:  strings.TrimSpace(string(lines.Value(body))),
			Offset: utf8.RuneCount(src[:start]),
		})
		return ast.WalkSkipChildren, nil
	})
	return outline
}

// frontMatterEnd returns the byte offset just past a leading `---` block,
// or 0 when there is none.
func frontMatterEnd(source string) int {
	if !strings.HasPrefix(source, "---\n") && !strings.HasPrefix(source, "---\r\n") {
		return 0
	}
	pos := strings.Index(source, "\n") + 1
	for pos < len(source) {
		next := strings.IndexByte(source[pos:], '\n')
		line := source[pos:]
		if next >= 0 {
			line = source[pos : pos+next]
		}
		if strings.TrimRight(line, "\r") == "---" {
			if next < 0 {
				return len(source)
			}
			return pos + next + 1
		}
		if next < 0 {
			break
		}
		pos += next + 1
	}
	return 0
}

// SectionAt returns the title of the last heading at or before start, or
// the first heading inside [start, end) when none precedes the window.
func (o Outline) SectionAt(start, end int) string {
	section := ""
	for _, h := range o {
		if h.Offset <= start {
			section = h.Title
			continue
		}
		if section == "" && h.Offset < end {
			return h.Title
		}
		break
	}
	return section
}
