// Package llm abstracts the text-completion backends used for Cypher
// generation and result summarization.
package llm

import "context"

// Completer sends a prompt to a text-completion backend and returns the
// generated text. Implementations must be safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
