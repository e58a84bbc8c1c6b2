package analyzer

import (
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"vaultrag/internal/domain"
)

// frontMatter is the subset of YAML front matter used for classification.
type frontMatter struct {
	Type string `yaml:"type"`
}

// ClassifyDocument determines a document's type from its front matter
// `type:` field, then from a `type:` line near the top, then from the
// folder names in its vault-relative path.
func ClassifyDocument(relPath, text string) domain.DocType {
	if fm, ok := parseFrontMatter(text); ok {
		if t, known := domain.ParseDocType(fm.Type); known {
			return t
		}
	}

	for i, line := range strings.SplitN(text, "\n", 11) {
		if i == 10 {
			break
		}
		key, value, found := strings.Cut(strings.TrimSpace(line), ":")
		if found && strings.EqualFold(strings.TrimSpace(key), "type") {
			if t, known := domain.ParseDocType(value); known {
				return t
			}
		}
	}

	dir := path.Dir(relPath)
	if dir == "." {
		return domain.DocTypeOther
	}
	for _, segment := range strings.Split(dir, "/") {
		if t, known := domain.ParseDocType(segment); known && t != domain.DocTypeOther {
			return t
		}
	}
	return domain.DocTypeOther
}

// parseFrontMatter decodes a leading `---` delimited YAML block.
func parseFrontMatter(text string) (frontMatter, bool) {
	var fm frontMatter
	text = strings.TrimPrefix(text, "\ufeff")
	if !strings.HasPrefix(text, "---\n") && !strings.HasPrefix(text, "---\r\n") {
		return fm, false
	}
	body := text[strings.Index(text, "\n")+1:]
	end := strings.Index(body, "\n---")
	if end < 0 {
		return fm, false
	}
	if err := yaml.Unmarshal([]byte(body[:end]), &fm); err != nil {
		return fm, false
	}
	return fm, true
}
