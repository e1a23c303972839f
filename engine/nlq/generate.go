package nlq

import "strings"

// cypherKeywords are the tokens a Cypher query can start with. Used to
// locate the query inside a noisier completion. "OPTIONAL MATCH" is listed
// before "MATCH" so the earlier starting offset wins.
var cypherKeywords = []string{
	"OPTIONAL MATCH", "MATCH", "WITH", "CREATE", "MERGE", "UNWIND",
}

// ExtractQuery returns the substring of text starting at the earliest
// query-leading keyword, case-insensitively. If no keyword occurs, the whole
// trimmed text is returned as a best-effort fallback.
func ExtractQuery(text string) string {
	lower := strings.ToLower(text)
	start := -1
	for _, kw := range cypherKeywords {
		idx := strings.Index(lower, strings.ToLower(kw))
		if idx >= 0 && (start == -1 || idx < start) {
			start = idx
		}
	}
	if start == -1 {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[start:])
}
