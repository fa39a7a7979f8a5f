// Package failure defines the error taxonomy shared by the orchestration core.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation decisions.
type Kind int

const (
	// General is any error that does not fit a more specific kind.
	General Kind = iota
	// RateLimited means the backend rejected the call for exceeding request rate.
	RateLimited
	// QuotaExceeded means the account has no remaining quota.
	QuotaExceeded
	// BackendOverloaded means the backend is temporarily unavailable.
	BackendOverloaded
	// AuthError means credentials were missing or rejected.
	AuthError
	// ValidationFailed means a response did not satisfy the task's output contract.
	ValidationFailed
	// ResolutionAmbiguous means a record matched more than one existing entity.
	ResolutionAmbiguous
	// MissingDependency means upstream data required by a task is not committed.
	MissingDependency
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case RateLimited:
		return "rate_limited"
	case QuotaExceeded:
		return "quota_exceeded"
	case BackendOverloaded:
		return "backend_overloaded"
	case AuthError:
		return "auth_error"
	case ValidationFailed:
		return "validation_failed"
	case ResolutionAmbiguous:
		return "resolution_ambiguous"
	case MissingDependency:
		return "missing_dependency"
	default:
		return "general"
	}
}

// Recoverable reports whether a retry or a model-tier switch may succeed.
func (k Kind) Recoverable() bool {
	return k == RateLimited || k == BackendOverloaded
}

// FatalForRun reports whether the error must stop every remaining task of a run.
func (k Kind) FatalForRun() bool {
	return k == AuthError || k == QuotaExceeded
}

// Error is a classified error. Chunk is -1 when the error is not tied to a chunk.
type Error struct {
	Kind  Kind
	Task  string
	Chunk int
	Msg   string
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := e.Kind.String()
	if e.Task != "" {
		prefix += " [" + e.Task
		if e.Chunk >= 0 {
			prefix += fmt.Sprintf(" chunk %d", e.Chunk+1)
		}
		prefix += "]"
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", prefix, e.Msg, e.Err)
	case e.Msg != "":
		return prefix + ": " + e.Msg
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	default:
		return prefix
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error without a cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Chunk: -1, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. It returns nil when err is nil.
func Wrap(kind Kind, err error, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Chunk: -1, Msg: msg, Err: err}
}

// At returns a copy of e scoped to a task and chunk.
func (e *Error) At(task string, chunk int) *Error {
	c := *e
	c.Task = task
	c.Chunk = chunk
	return &c
}

// KindOf returns the kind of the outermost classified error in err's chain,
// or General if none is classified.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return General
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRecoverable reports whether err is worth retrying.
func IsRecoverable(err error) bool {
	return err != nil && KindOf(err).Recoverable()
}

// IsFatalForRun reports whether err must stop the whole run.
func IsFatalForRun(err error) bool {
	return err != nil && KindOf(err).FatalForRun()
}
