package nlq

import (
	"fmt"
	"strings"
)

// fallbackRule maps a trigger substring to a canned query. Rules are
// evaluated in order against the lower-cased question; the first match wins.
type fallbackRule struct {
	trigger string
	build   func(question string) string
}

var fallbackRules = []fallbackRule{
	{"viral", func(string) string {
		return "MATCH (p:Post) WHERE p.shares > 100 RETURN p.id, p.content, p.shares ORDER BY p.shares DESC LIMIT 5"
	}},
	{"fake news", func(string) string {
		return "MATCH (p:Post)-[:VERIFIED_BY]->(f:FactCheck {status: 'False'}) RETURN p.id, p.content, f.comments LIMIT 5"
	}},
	{"share", func(string) string {
		return "MATCH (u:User)-[:SHARED]->(p:Post) RETURN u.id, u.name, p.id, p.content LIMIT 5"
	}},
}

// FallbackQuery selects a canned Cypher query for the question when the
// completion backend is unreachable or not configured. Unmatched questions
// become a content substring search over the question text.
func FallbackQuery(question string) string {
	lower := strings.ToLower(question)
	for _, rule := range fallbackRules {
		if strings.Contains(lower, rule.trigger) {
			return rule.build(question)
		}
	}
	return fmt.Sprintf(
		"MATCH (p:Post) WHERE toLower(p.content) CONTAINS toLower('%s') RETURN p.id, p.content, p.timestamp LIMIT 5",
		escapeSingleQuotes(question),
	)
}

// escapeSingleQuotes backslash-escapes single quotes so the text embeds
// cleanly in a Cypher string literal.
func escapeSingleQuotes(s string) string {
	return strings.ReplaceAll(s, "'", `\'`)
}
