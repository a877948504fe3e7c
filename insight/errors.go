package insight

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an operation references an unknown session id.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned for missing text or unknown labels at decoding boundaries.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamFailure marks a failed answer collaborator (LLM or network).
	ErrUpstreamFailure = errors.New("upstream failure")
)

// RequireText unwraps an optional text field decoded from a request body.
// A nil pointer (absent or JSON null) fails fast instead of being treated as empty text.
func RequireText(p *string) (string, error) {
	if p == nil {
		return "", fmt.Errorf("text is required: %w", ErrInvalidInput)
	}
	return *p, nil
}
