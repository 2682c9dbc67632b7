package errors

import (
	stderrors "errors"
	"fmt"
)

// DocsError is the structured error type shared by the indexing and
// retrieval packages. The code determines category, severity and
// whether a retry makes sense.
type DocsError struct {
	Code       string
	Message    string
	Category   Category
	Severity   Severity
	Details    map[string]string
	Cause      error
	Retryable  bool
	Suggestion string
}

func (e *DocsError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DocsError) Unwrap() error {
	return e.Cause
}

// Is matches another *DocsError by code so sentinel values created with New
// work with errors.Is.
func (e *DocsError) Is(target error) bool {
	t, ok := target.(*DocsError)
	return ok && e.Code == t.Code
}

// WithDetail attaches a key/value pair and returns the error for chaining.
func (e *DocsError) WithDetail(key, value string) *DocsError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion sets the hint shown to users.
func (e *DocsError) WithSuggestion(suggestion string) *DocsError {
	e.Suggestion = suggestion
	return e
}

// New creates a DocsError; category, severity and retryability derive from code.
func New(code, message string, cause error) *DocsError {
	return &DocsError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap converts err into a DocsError carrying err's message. Returns nil for nil.
func Wrap(code string, err error) *DocsError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration error.
func ConfigError(message string, cause error) *DocsError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates an input validation error.
func ValidationError(message string, cause error) *DocsError {
	return New(ErrCodeInvalidInput, message, cause)
}

// as finds the first DocsError in the chain.
func as(err error) (*DocsError, bool) {
	var de *DocsError
	if stderrors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// IsRetryable reports whether any DocsError in the chain is retryable.
func IsRetryable(err error) bool {
	de, ok := as(err)
	return ok && de.Retryable
}

// IsFatal reports whether any DocsError in the chain has fatal severity,
// including causes wrapped by non-fatal errors.
func IsFatal(err error) bool {
	for err != nil {
		if de, ok := err.(*DocsError); ok && de.Severity == SeverityFatal {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// GetCode returns the code of the first DocsError in the chain, or "".
func GetCode(err error) string {
	if de, ok := as(err); ok {
		return de.Code
	}
	return ""
}
