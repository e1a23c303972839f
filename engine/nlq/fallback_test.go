package nlq

import (
	"strings"
	"testing"
)

func TestFallbackQuery(t *testing.T) {
	tests := []struct {
		name     string
		question string
		contains []string
	}{
		{
			name:     "viral",
			question: "Show me the most VIRAL posts",
			contains: []string{"p.shares > 100", "ORDER BY p.shares DESC"},
		},
		{
			name:     "fake news",
			question: "any fake news lately?",
			contains: []string{"[:VERIFIED_BY]", "FactCheck {status: 'False'}"},
		},
		{
			name:     "share",
			question: "who shared that post?",
			contains: []string{"(u:User)-[:SHARED]->(p:Post)"},
		},
		{
			name:     "default substring search",
			question: "COVID variant",
			contains: []string{"toLower(p.content) CONTAINS toLower('COVID variant')"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := FallbackQuery(tc.question)
			for _, want := range tc.contains {
				if !strings.Contains(got, want) {
					t.Errorf("FallbackQuery(%q) = %q, missing %q", tc.question, got, want)
				}
			}
			if err := CheckReadOnly(got); err != nil {
				t.Errorf("fallback query not read-only: %v", err)
			}
		})
	}
}

func TestFallbackQueryViralBeatsShare(t *testing.T) {
	// Both triggers occur; rule order decides.
	got := FallbackQuery("which viral posts were shared")
	if !strings.Contains(got, "p.shares > 100") {
		t.Fatalf("expected viral rule, got %q", got)
	}
}

func TestFallbackQueryEscapesQuotes(t *testing.T) {
	got := FallbackQuery("what's trending")
	if !strings.Contains(got, `what\'s trending`) {
		t.Fatalf("single quote not escaped: %q", got)
	}
	if strings.Contains(got, "toLower('what's") {
		t.Fatalf("raw quote leaked into literal: %q", got)
	}
}
