// Package errors provides explicit, human-readable error types for sqlgazer.
// All errors must include a Reason and Suggestion for actionable feedback.
package errors

import (
	"errors"
	"fmt"
)

// GazerError is the base error type for all sqlgazer errors.
// Every error must provide a human-readable reason and suggestion.
type GazerError struct {
	Code       ErrorCode
	Message    string
	Reason     string
	Suggestion string
	Cause      error
}

// ErrorCode represents the category of error for exit code mapping.
type ErrorCode int

const (
	CodeConfig   ErrorCode = 1
	CodeSource   ErrorCode = 2
	CodeSink     ErrorCode = 3
	CodeAnalysis ErrorCode = 4
	CodeInternal ErrorCode = 5
)

func (e *GazerError) Error() string {
	msg := e.Message
	if e.Reason != "" {
		msg = fmt.Sprintf("%s\nReason: %s", msg, e.Reason)
	}
	if e.Suggestion != "" {
		msg = fmt.Sprintf("%s\nSuggestion: %s", msg, e.Suggestion)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s\nCaused by: %v", msg, e.Cause)
	}
	return msg
}

func (e *GazerError) Unwrap() error {
	return e.Cause
}

// ErrCode exposes the category through the embedded base, so wrapped
// typed errors still map to exit codes.
func (e *GazerError) ErrCode() ErrorCode {
	return e.Code
}

// CodeOf returns the error's category code, or CodeInternal for errors
// that did not originate in this package.
func CodeOf(err error) ErrorCode {
	var c interface{ ErrCode() ErrorCode }
	if errors.As(err, &c) {
		return c.ErrCode()
	}
	return CodeInternal
}

// ErrParseFailure is returned when a job's query text could not be turned
// into a syntax tree. The job is skipped; the batch continues.
type ErrParseFailure struct {
	GazerError
	JobID string
}

// NewParseFailure creates a new ErrParseFailure.
func NewParseFailure(jobID string, cause error) *ErrParseFailure {
	return &ErrParseFailure{
		GazerError: GazerError{
			Code:       CodeAnalysis,
			Message:    fmt.Sprintf("query for job %s could not be parsed", jobID),
			Reason:     "the statement uses syntax the parser does not accept",
			Suggestion: "re-run the statement with 'sqlgazer analyze --query' under the configured dialect",
			Cause:      cause,
		},
		JobID: jobID,
	}
}

// ErrRuleFailure is returned when a single rule evaluator faults on one
// query. Sibling rules proceed; the finding carries this as a detail.
type ErrRuleFailure struct {
	GazerError
	Rule string
}

// NewRuleFailure creates a new ErrRuleFailure.
func NewRuleFailure(rule string, cause error) *ErrRuleFailure {
	return &ErrRuleFailure{
		GazerError: GazerError{
			Code:       CodeAnalysis,
			Message:    fmt.Sprintf("rule %s failed to evaluate", rule),
			Reason:     fmt.Sprintf("the evaluator faulted on this query shape: %v", cause),
			Suggestion: fmt.Sprintf("add %s to 'rules.disabled' while investigating", rule),
			Cause:      cause,
		},
		Rule: rule,
	}
}

// ErrSourceFailure is returned when a warehouse metadata source cannot be
// reached or returns an unusable response.
type ErrSourceFailure struct {
	GazerError
	Source string
}

// NewSourceFailure creates a new ErrSourceFailure.
func NewSourceFailure(source, reason string, cause error) *ErrSourceFailure {
	return &ErrSourceFailure{
		GazerError: GazerError{
			Code:       CodeSource,
			Message:    fmt.Sprintf("metadata source %s failed", source),
			Reason:     reason,
			Suggestion: "verify connectivity and credentials with 'sqlgazer doctor'",
			Cause:      cause,
		},
		Source: source,
	}
}

// ErrSinkFailure is returned when findings cannot be persisted.
type ErrSinkFailure struct {
	GazerError
	Sink string
}

// NewSinkFailure creates a new ErrSinkFailure.
func NewSinkFailure(sink string, cause error) *ErrSinkFailure {
	return &ErrSinkFailure{
		GazerError: GazerError{
			Code:       CodeSink,
			Message:    fmt.Sprintf("findings sink %s failed", sink),
			Reason:     "findings could not be written to the configured destination",
			Suggestion: "verify sink connectivity with 'sqlgazer doctor'",
			Cause:      cause,
		},
		Sink: sink,
	}
}

// ErrConfigInvalid is returned when configuration fails validation.
type ErrConfigInvalid struct {
	GazerError
	Field string
}

// NewConfigInvalid creates a new ErrConfigInvalid.
func NewConfigInvalid(field, reason string) *ErrConfigInvalid {
	return &ErrConfigInvalid{
		GazerError: GazerError{
			Code:       CodeConfig,
			Message:    "invalid configuration",
			Reason:     fmt.Sprintf("field '%s': %s", field, reason),
			Suggestion: "check the config file or SQLGAZER_* environment overrides",
		},
		Field: field,
	}
}

// ErrUnknownSource is returned when the configured source name has no
// registered implementation.
type ErrUnknownSource struct {
	GazerError
	Name      string
	Available []string
}

// NewUnknownSource creates a new ErrUnknownSource.
func NewUnknownSource(name string, available []string) *ErrUnknownSource {
	return &ErrUnknownSource{
		GazerError: GazerError{
			Code:       CodeConfig,
			Message:    fmt.Sprintf("unknown metadata source: %s", name),
			Reason:     fmt.Sprintf("registered sources: %v", available),
			Suggestion: "set 'source.kind' to one of the registered sources",
		},
		Name:      name,
		Available: available,
	}
}
