// Package apperr defines typed errors with machine-readable kinds.
//
// Every failure surfaced by the conversion pipeline and the remote transfer
// client carries one of the kinds below so that the HTTP layer can choose a
// status code without inspecting error strings. Use KindOf or Is to classify
// an error; wrapping with fmt.Errorf("...: %w", err) preserves the kind.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// Decode indicates a malformed or version-mismatched dataset.
	Decode Kind = "decode"
	// Encode indicates an unsupported column type during encoding.
	Encode Kind = "encode"
	// Staging indicates an object-store put/get/delete failure.
	Staging Kind = "staging"
	// NotFound indicates a missing staged object or remote path.
	NotFound Kind = "not_found"
	// Auth indicates credential rejection by the remote server.
	Auth Kind = "auth"
	// Network indicates a transport-level failure or timeout.
	Network Kind = "network"
	// Invalid indicates a malformed caller request.
	Invalid Kind = "invalid"
	// Unknown is returned by KindOf for errors that carry no kind.
	Unknown Kind = "unknown"
)

// E wraps an error with a kind, the failing operation and a short message.
type E struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *E) Error() string {
	prefix := string(e.Kind)
	if e.Op != "" {
		prefix = e.Op + ": " + prefix
	}
	if e.Err != nil {
		if e.Message == "" {
			return fmt.Sprintf("%s: %v", prefix, e.Err)
		}
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

// New returns an error of the given kind without an underlying cause.
func New(kind Kind, op, msg string) *E { return &E{Kind: kind, Op: op, Message: msg} }

// Wrap attaches kind and op to err. It returns nil when err is nil.
func Wrap(kind Kind, op, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &E{Kind: kind, Op: op, Message: msg, Err: err}
}

// Errorf is New with a formatted message.
func Errorf(kind Kind, op, format string, args ...any) *E {
	return &E{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the outermost *E in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *E
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
