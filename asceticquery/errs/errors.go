// Package errs holds the error taxonomy of query execution. Every error here
// aborts the current drain; callers match them with errors.As.
package errs

import (
	"fmt"
	"strings"
)

// FieldAccessError reports a field path walked through an absent intermediate.
type FieldAccessError struct {
	Path    []string
	Segment string
	// Index is the position of Segment in Path.
	Index int
	Cause error
}

func (e *FieldAccessError) Error() string {
	msg := fmt.Sprintf("field %q is absent in path %q", e.Segment, strings.Join(e.Path, "."))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *FieldAccessError) Unwrap() error {
	return e.Cause
}

// TraversalError reports a failed hop from one parent element.
type TraversalError struct {
	Hop    string
	Parent any
	Cause  error
}

func (e *TraversalError) Error() string {
	return fmt.Sprintf("hop %s failed on %v: %v", e.Hop, e.Parent, e.Cause)
}

func (e *TraversalError) Unwrap() error {
	return e.Cause
}

// ComparisonError reports an ordering or equality test over incomparable values.
type ComparisonError struct {
	Operator string
	Left     any
	Right    any
	Cause    error
}

func (e *ComparisonError) Error() string {
	msg := fmt.Sprintf("cannot apply %q to %T and %T", e.Operator, e.Left, e.Right)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ComparisonError) Unwrap() error {
	return e.Cause
}

// DatasetNotFoundError is raised by source collaborators; the query core passes it through.
type DatasetNotFoundError struct {
	Dataset string
}

func (e *DatasetNotFoundError) Error() string {
	return fmt.Sprintf("dataset %q not found", e.Dataset)
}
