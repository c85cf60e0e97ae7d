package framework

import (
	"strconv"
	"strings"
)

// RunnerError is the failure of a named Runnable.
type RunnerError struct {
	Runner string
	Err    error
}

func (e *RunnerError) Error() string {
	return e.Runner + ": " + e.Err.Error()
}

// Unwrap returns the cause.
func (e *RunnerError) Unwrap() error {
	return e.Err
}

// AggregatedError collects the failures of concurrent work.
type AggregatedError struct {
	Errors []error
}

// Add appends errs, skipping nil.
func (e *AggregatedError) Add(errs ...error) *AggregatedError {
	for _, err := range errs {
		if err != nil {
			e.Errors = append(e.Errors, err)
		}
	}
	return e
}

func (e *AggregatedError) Error() string {
	switch len(e.Errors) {
	case 0:
		return ""
	case 1:
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(len(e.Errors)))
	sb.WriteString(" errors")
	for _, err := range e.Errors {
		sb.WriteString("\n\t")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Unwrap lets errors.Is and errors.As see every collected error.
func (e *AggregatedError) Unwrap() []error {
	return e.Errors
}

// Aggregate returns e, or nil when nothing was collected.
func (e *AggregatedError) Aggregate() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}
