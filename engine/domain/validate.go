package domain

import "strings"

// MaxQuestionLen caps the accepted question length in bytes.
const MaxQuestionLen = 2000

// ValidateQuestion checks a user question before it enters the pipeline.
// Empty questions are rejected by the API layer before the core runs; this
// is the defensive guard at the pipeline entry.
func ValidateQuestion(q string) error {
	trimmed := strings.TrimSpace(q)
	if trimmed == "" {
		return NewValidationError("question", q, ErrEmptyQuestion)
	}
	if len(trimmed) > MaxQuestionLen {
		return NewValidationError("question", trimmed[:40]+"...", ErrQuestionTooLong)
	}
	return nil
}
