package transcoder

import (
	"fmt"
	"strings"
)

// ValidationError is returned before any process is started when a request
// cannot produce a sensible pipeline
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid request: " + e.Problems[0]
	}
	return "invalid request: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) add(format string, args ...interface{}) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

func (e *ValidationError) orNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

// ProbeError means the source could not be read or has no video stream
type ProbeError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ProbeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("probe %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("probe %s: %s", e.Path, e.Reason)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// ExecutionError is a pipeline stage that exited non-zero. Output holds the
// captured stdout and stderr verbatim.
type ExecutionError struct {
	Stage    string
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s failed (exit %d): %v", e.Stage, e.ExitCode, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// ToolMissingError names an external binary that could not be found
type ToolMissingError struct {
	Tool string
	Err  error
}

func (e *ToolMissingError) Error() string {
	return fmt.Sprintf("%s not found: install it and make sure it is in your PATH or set its path in the config", e.Tool)
}

func (e *ToolMissingError) Unwrap() error { return e.Err }
