package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vaultrag/internal/domain"
)

func TestClassifyDocument(t *testing.T) {
	tests := []struct {
		name    string
		relPath string
		text    string
		want    domain.DocType
	}{
		{"front matter wins over folder", "Hardware/nas.md", "---\ntype: project\ntags: [home]\n---\n# NAS build", domain.DocTypeProject},
		{"plural front matter", "misc.md", "---\ntype: services\n---\nbody", domain.DocTypeService},
		{"inline type line", "notes.txt", "title: router\ntype: hardware\n\nbody", domain.DocTypeHardware},
		{"folder fallback", "Projects/homelab/plan.md", "# Plan", domain.DocTypeProject},
		{"nested inventory folder", "Home/Inventory/shelf.md", "list", domain.DocTypeInventory},
		{"case-insensitive folder", "services/dns.md", "dns", domain.DocTypeService},
		{"unknown front matter type", "Hardware/x.md", "---\ntype: recipe\n---\n", domain.DocTypeHardware},
		{"root file", "README.md", "hello", domain.DocTypeOther},
		{"broken front matter", "a.md", "---\ntype: [unterminated\n---\n", domain.DocTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyDocument(tt.relPath, tt.text))
		})
	}
}
