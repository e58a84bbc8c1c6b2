package usecase

import (
	"fmt"
	"strings"

	"vaultrag/internal/domain"
)

// Render serializes a bundle into the prompt sent to the generation model:
// notes, evidence, history, directive, then the question itself.
func Render(b domain.ContextBundle) string {
	var sb strings.Builder

	if len(b.Notes) > 0 {
		sb.WriteString("=== DOCUMENT ANALYSIS ===\n")
		for _, n := range b.Notes {
			fmt.Fprintf(&sb, "- [%s] %s\n", n.Kind, n.Text)
		}
		sb.WriteString("\n")
	}

	if len(b.Evidence) > 0 {
		sb.WriteString("=== RELEVANT KNOWLEDGE FROM YOUR VAULT ===\n")
		for _, c := range b.Evidence {
			fmt.Fprintf(&sb, "[Source: %s] (%s", c.Source, c.SourceID)
			if c.Section != "" {
				fmt.Fprintf(&sb, ", section %q", c.Section)
			}
			fmt.Fprintf(&sb, ", %s, relevance %.2f)\n", c.DocType, c.Relevance)
			sb.WriteString(c.Excerpt)
			sb.WriteString("\n\n")
		}
	}

	if len(b.History) > 0 {
		sb.WriteString("=== RECENT CONVERSATION ===\n")
		for _, t := range b.History {
			fmt.Fprintf(&sb, "%s: %s\n", speaker(t.Role), t.Text)
		}
		sb.WriteString("\n")
	}

	sb.WriteString(b.Directive)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Human: %s\nAssistant: ", b.Query)
	return sb.String()
}

func speaker(r domain.Role) string {
	switch r {
	case domain.RoleUser:
		return "Human"
	case domain.RoleAssistant:
		return "Assistant"
	default:
		return "System"
	}
}
