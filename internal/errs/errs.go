// Package errs defines the error taxonomy shared by the engine's components
// (spec.md §7). Every error is an *Error carrying a Kind, so callers branch on
// KindOf or errors.Is; Error() renders a human-readable message.
package errs

import "fmt"

// Kind identifies a taxonomy bucket without tying callers to a concrete type.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindAlreadyExists    Kind = "already_exists"
	KindAlreadyCompleted Kind = "already_completed"
	KindAlreadyTerminal  Kind = "already_terminal"
	KindInvalidInput     Kind = "invalid_input"
	KindLimitExceeded    Kind = "limit_exceeded"
	KindMissingArgument  Kind = "missing_argument"
	KindPartialCycle     Kind = "partial_cycle"
	KindActionFailed     Kind = "action_failed"
	KindNoTransition     Kind = "no_transition"
	KindTimeout          Kind = "timeout"
	KindCancelled        Kind = "cancelled"
	KindIoFailure        Kind = "io_failure"
	KindCorruption       Kind = "corruption"
	KindEmbeddingFailure Kind = "embedding_failure"
)

// Error is the concrete error type carrying a Kind plus context.
type Error struct {
	Kind    Kind
	Subject string // e.g. a prompt name, issue number, run id
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Subject != "" {
		if e.Message != "" {
			return fmt.Sprintf("%s: %s: %s", e.Kind, e.Subject, e.Message)
		}
		return fmt.Sprintf("%s: %s", e.Kind, e.Subject)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Is implements errors.Is by Kind equality, so sentinel-style comparisons
// (errors.Is(err, errs.New(errs.KindNotFound, ""))) work without exposing a
// bare sentinel per entity type.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error for the given kind and subject.
func New(kind Kind, subject string) *Error {
	return &Error{Kind: kind, Subject: subject}
}

// Newf constructs an *Error with a formatted message.
func Newf(kind Kind, subject, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an underlying error under the given kind.
func Wrap(kind Kind, subject string, err error) *Error {
	return &Error{Kind: kind, Subject: subject, Wrapped: err, Message: err.Error()}
}

// NotFound, MissingArgument, etc. are terse constructors for the common cases.
func NotFound(subject string) *Error        { return New(KindNotFound, subject) }
func AlreadyExists(subject string) *Error   { return New(KindAlreadyExists, subject) }
func InvalidInput(subject, msg string) *Error {
	return &Error{Kind: KindInvalidInput, Subject: subject, Message: msg}
}
func MissingArgument(name string) *Error { return New(KindMissingArgument, name) }
func PartialCycle(path string) *Error    { return New(KindPartialCycle, path) }
func LimitExceeded(subject, msg string) *Error {
	return &Error{Kind: KindLimitExceeded, Subject: subject, Message: msg}
}

// KindOf reports the taxonomy bucket of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if as(err, &e) {
		return e.Kind
	}
	return ""
}

// as is a tiny errors.As shim kept local to avoid importing "errors" just for
// its one call site in KindOf.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
