package concurrency

import (
	"fmt"
	"strings"
	"time"
)

// StructuralError reports a defect in the operation set itself: a duplicate
// in-flight id, a dependency on an unregistered operation, or a dependency
// cycle. Structural errors are always fatal and abort the run.
type StructuralError struct {
	Reason string
}

func (e *StructuralError) Error() string {
	return "structural error: " + e.Reason
}

// TimeoutError reports that a single attempt of an operation exceeded its
// configured timeout. It is subject to the same retry policy as any other
// execution failure.
type TimeoutError struct {
	ID      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation %q timed out after %v", e.ID, e.Timeout)
}

// ExecutionError wraps the terminal failure of an operation after all
// attempts were exhausted.
type ExecutionError struct {
	ID       string
	Attempts int
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("operation %q failed after %d attempts: %v", e.ID, e.Attempts, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// AggregateError joins the failures of a batch whose operations all ran to
// completion before the error was raised.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var builder strings.Builder
	fmt.Fprintf(&builder, "%d operations failed:", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&builder, "\n  - %v", err)
	}
	return builder.String()
}

func (e *AggregateError) Unwrap() []error {
	return e.Errors
}
