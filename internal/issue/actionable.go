// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// ActionableError is an error with context for user-facing error messages.
	// It records what operation failed, what resource was involved, and
	// suggestions for how to fix the issue.
	//
	// Use the ErrorContext builder for convenient construction:
	//
	//	err := issue.NewErrorContext().
	//		WithOperation("resolve image").
	//		WithResource("aarch64-unknown-linux-gnu").
	//		WithSuggestion("Set target.aarch64-unknown-linux-gnu.image in xcross.toml").
	//		Wrap(originalErr).
	//		BuildError()
	ActionableError struct {
		// Operation describes what was being attempted (e.g., "probe container engine").
		Operation string

		// Resource identifies the file, path, target or container involved (optional).
		Resource string

		// Suggestions provides hints on how to fix the issue (optional).
		Suggestions []string

		// Issue links the error to a catalog page rendered by the CLI (optional).
		Issue Id

		// Cause is the underlying error that triggered this error (optional).
		Cause error
	}

	// ErrorContext is a builder for constructing ActionableError instances.
	ErrorContext struct {
		operation   string
		resource    string
		suggestions []string
		issue       Id
		cause       error
	}
)

// NewErrorContext creates a new ErrorContext builder.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// WrapWithContext wraps an error with operation and resource context.
// It returns nil for a nil error.
func WrapWithContext(err error, operation, resource string) error {
	if err == nil {
		return nil
	}
	return &ActionableError{
		Operation: operation,
		Resource:  resource,
		Cause:     err,
	}
}

// --- ActionableError Methods ---

// Error implements the error interface.
// Returns a concise error message suitable for default (non-verbose) output.
func (e *ActionableError) Error() string {
	var msg strings.Builder

	msg.WriteString("failed to ")
	msg.WriteString(e.Operation)

	if e.Resource != "" {
		msg.WriteString(": ")
		msg.WriteString(e.Resource)
	}

	if e.Cause != nil {
		msg.WriteString(": ")
		msg.WriteString(e.Cause.Error())
	}

	return msg.String()
}

// Unwrap returns the underlying cause error for use with errors.Is/As.
func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// Format returns a formatted error message with optional verbosity.
//
// When verbose is false:
//
//	failed to <operation>: <resource>: <cause message>
//	  • <suggestion 1>
//	  • <suggestion 2>
//
// When verbose is true, the full error chain follows.
func (e *ActionableError) Format(verbose bool) string {
	var msg strings.Builder

	msg.WriteString(e.Error())

	if len(e.Suggestions) > 0 {
		msg.WriteString("\n")
		for _, suggestion := range e.Suggestions {
			msg.WriteString("\n  • ")
			msg.WriteString(suggestion)
		}
	}

	if verbose && e.Cause != nil {
		msg.WriteString("\n\nError chain:")
		err := e.Cause
		depth := 1
		for err != nil {
			fmt.Fprintf(&msg, "\n  %d. %s", depth, err.Error())
			err = errors.Unwrap(err)
			depth++
		}
	}

	return msg.String()
}

// HasSuggestions returns true if the error has any suggestions.
func (e *ActionableError) HasSuggestions() bool {
	return len(e.Suggestions) > 0
}

// IssueOf returns the catalog id of the outermost ActionableError in err's
// chain that carries one, or 0.
func IssueOf(err error) Id {
	for err != nil {
		var ae *ActionableError
		if !errors.As(err, &ae) {
			return 0
		}
		if ae.Issue != 0 {
			return ae.Issue
		}
		err = ae.Cause
	}
	return 0
}

// --- ErrorContext Methods ---

// WithOperation sets the operation being performed.
// The operation should be a verb phrase like "copy project into container".
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.operation = op
	return c
}

// WithResource sets the resource involved.
func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.resource = res
	return c
}

// WithSuggestion adds a suggestion for how to fix the issue.
// Can be called multiple times to add multiple suggestions.
func (c *ErrorContext) WithSuggestion(sug string) *ErrorContext {
	c.suggestions = append(c.suggestions, sug)
	return c
}

// WithIssue links the error to a catalog page.
func (c *ErrorContext) WithIssue(id Id) *ErrorContext {
	c.issue = id
	return c
}

// Wrap wraps an underlying error as the cause.
func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.cause = err
	return c
}

// Build creates an ActionableError from the context.
// Returns nil if no operation is set (operation is required).
func (c *ErrorContext) Build() *ActionableError {
	if c.operation == "" {
		return nil
	}

	return &ActionableError{
		Operation:   c.operation,
		Resource:    c.resource,
		Suggestions: c.suggestions,
		Issue:       c.issue,
		Cause:       c.cause,
	}
}

// BuildError creates an ActionableError and returns it as an error interface.
// Returns nil if no operation is set.
func (c *ErrorContext) BuildError() error {
	ae := c.Build()
	if ae == nil {
		return nil
	}
	return ae
}
