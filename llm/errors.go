package llm

import "fmt"

// UnsupportedBackendError indicates an unrecognized backend identifier.
type UnsupportedBackendError struct {
	Backend string
}

func (e *UnsupportedBackendError) Error() string {
	return fmt.Sprintf("unsupported backend: %q", e.Backend)
}

// UnsupportedCapabilityError indicates an operation the selected backend
// categorically lacks. It is raised before any network call is made.
type UnsupportedCapabilityError struct {
	Backend    string
	Capability string
}

func (e *UnsupportedCapabilityError) Error() string {
	return fmt.Sprintf("backend %q does not support %s", e.Backend, e.Capability)
}

// JSONModeViolationError indicates that JSON mode was requested but the
// model's text output failed to parse as JSON. RawText carries the offending
// output so callers can inspect or surface it.
type JSONModeViolationError struct {
	Backend string
	RawText string
	Err     error
}

func (e *JSONModeViolationError) Error() string {
	return fmt.Sprintf("backend %q returned invalid JSON in JSON mode: %v", e.Backend, e.Err)
}

func (e *JSONModeViolationError) Unwrap() error {
	return e.Err
}

// EmptyResponseError indicates the backend returned no usable content.
type EmptyResponseError struct {
	Backend string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("empty response from backend %q", e.Backend)
}
