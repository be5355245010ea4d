package tools

import "fmt"

// UnknownToolError is returned when a tool call targets a name absent
// from the registry. This indicates a capability mismatch, not a
// transient execution failure.
type UnknownToolError struct {
	ToolName string
}

// Error implements the error interface.
func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("tool %q is not registered", e.ToolName)
}

// InvalidParamsError is returned when tool arguments do not satisfy
// the tool's input schema. The call never reaches the handler.
type InvalidParamsError struct {
	ToolName string
	Reason   string
}

// Error implements the error interface.
func (e *InvalidParamsError) Error() string {
	return fmt.Sprintf("invalid params for tool %q: %s", e.ToolName, e.Reason)
}

// ExternalServiceError wraps a handler failure. The underlying
// integration (calendar, mail server) failed; the orchestration loop
// records it and continues.
type ExternalServiceError struct {
	ToolName string
	Err      error
}

// Error implements the error interface.
func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("tool %q failed: %v", e.ToolName, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}
