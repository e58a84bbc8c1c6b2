package analyzer

import (
	"reflect"
	"testing"
)

func TestTokenizer_Terms(t *testing.T) {
	tok := NewTokenizer()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"question", "What hardware is in my Mini PC?", []string{"hardware", "mini"}},
		{"duplicates", "backup Backup BACKUP plan", []string{"backup", "plan"}},
		{"short words", "go to pc", []string{}},
		{"punctuation", "nas-01, (router); proxmox!", []string{"nas", "router", "proxmox"}},
		{"unicode", "Übersicht über Geräte", []string{"übersicht", "über", "geräte"}},
		{"empty", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tok.Terms(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Terms(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTokenizer_StopwordRemoval(t *testing.T) {
	tok := NewTokenizer()

	for _, term := range tok.Terms("the quick brown fox with some other dogs") {
		switch term {
		case "the", "with", "some", "other":
			t.Errorf("stopword %q should have been removed", term)
		}
	}
}

func TestTokenizer_CountTokens(t *testing.T) {
	tok := NewTokenizer()

	if got := tok.CountTokens(""); got != 0 {
		t.Errorf("expected 0 tokens for empty text, got %d", got)
	}
	if got := tok.CountTokens("one two three four five six seven eight nine ten"); got != 13 {
		t.Errorf("expected 13 tokens, got %d", got)
	}
}
