package hxbus

import (
	"errors"
	"fmt"
)

// Sentinel errors for bus operations.
var (
	ErrUnresolved         = errors.New("hxbus: no such element")
	ErrInvalidDeclaration = errors.New("hxbus: invalid declaration")
	ErrInvalidState       = errors.New("hxbus: invalid view state")
	ErrDecryptFailed      = errors.New("hxbus: view state decryption failed")
	ErrSignatureInvalid   = errors.New("hxbus: view state signature verification failed")
)

// ResolutionError reports a relative reference that does not name any
// element reachable from the resolution root.
//
// It is fatal to the render of the node that carries the reference: a
// dangling reference is an authoring bug.
type ResolutionError struct {
	Reference  string // the unresolved reference, as written
	Root       string // client id of the resolution root
	Suggestion string // closest known id, if any
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("hxbus: no such element %q (resolved from %q)", e.Reference, e.Root)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(", did you mean %q?", e.Suggestion)
	}
	return msg
}

// Unwrap lets errors.Is match ErrUnresolved.
func (e *ResolutionError) Unwrap() error {
	return ErrUnresolved
}

// IsUnresolved checks if err is a resolution error.
func IsUnresolved(err error) bool {
	return errors.Is(err, ErrUnresolved)
}

// IsInvalidDeclaration checks if err comes from a malformed declaration.
func IsInvalidDeclaration(err error) bool {
	return errors.Is(err, ErrInvalidDeclaration)
}

// IsStateError checks if err is a view state decoding, decryption or
// signature error.
func IsStateError(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrDecryptFailed) ||
		errors.Is(err, ErrSignatureInvalid)
}

func invalidDeclaration(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDeclaration, fmt.Sprintf(format, args...))
}
