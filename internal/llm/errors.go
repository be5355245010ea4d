package llm

import (
	"errors"
	"fmt"
)

// OverloadError indicates the completion provider rejected a request
// because it is temporarily overloaded or rate limiting. Callers should
// retry with backoff; the orchestration layer degrades to a plain-text
// response when retries exhaust.
type OverloadError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *OverloadError) Error() string {
	return fmt.Sprintf("completion provider overloaded (status %d): %s", e.StatusCode, e.Body)
}

// IsOverload reports whether err is (or wraps) an OverloadError.
func IsOverload(err error) bool {
	var oe *OverloadError
	return errors.As(err, &oe)
}
