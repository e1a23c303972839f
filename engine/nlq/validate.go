package nlq

import (
	"fmt"
	"regexp"

	"github.com/PulseGraphAI/pulsegraph-mvp/engine/domain"
)

// mutatingClause matches whole-word Cypher clauses that modify data or
// invoke procedures. The word boundary keeps relationship names like
// CREATED from matching.
var mutatingClause = regexp.MustCompile(`(?i)\b(CREATE|MERGE|DELETE|DETACH|REMOVE|SET|DROP|CALL)\b`)

// stringLiteral matches single- and double-quoted Cypher string literals,
// including backslash-escaped quotes.
var stringLiteral = regexp.MustCompile(`'(?:\\.|[^'\\])*'|"(?:\\.|[^"\\])*"`)

// CheckReadOnly rejects queries containing a mutating clause before they
// reach the database. String literals are blanked first so user text like
// "who will delete this" inside a CONTAINS filter does not trip the gate.
// This is a static gate; the EXPLAIN dry-run catches the rest.
func CheckReadOnly(query string) error {
	stripped := stringLiteral.ReplaceAllString(query, "''")
	if m := mutatingClause.FindString(stripped); m != "" {
		return fmt.Errorf("%w: %s", domain.ErrUnsafeQuery, m)
	}
	return nil
}
