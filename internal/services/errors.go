package services

// Custom errors. Every error is local to the session it concerns; one
// session's failure never blocks another's.

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

// SessionClosedError rejects presence or reconciliation writes against a
// cancelled (or, for presence, completed) session.
type SessionClosedError struct{ Message string }

func (e *SessionClosedError) Error() string { return e.Message }

// ConflictError surfaces a lost concurrency race after the retry budget is
// exhausted. Safe for the caller to retry.
type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

// ProviderError is an external attendance-provider failure. Transient errors
// (network, throttling, 5xx) are retried automatically with backoff before
// one surfaces; permanent errors fail immediately.
type ProviderError struct {
	Message   string
	Transient bool
}

func (e *ProviderError) Error() string { return e.Message }
