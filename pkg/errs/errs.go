// Package errs classifies service errors so handlers can map them onto HTTP
// statuses with errors.Is instead of matching message text.
package errs

import "fmt"

// Error classes. Services wrap business-rule failures in one of these; the
// transport layer translates the class, never the message.
var (
	ErrNotFound = New("not found")
	ErrConflict = New("conflict")
	ErrInvalid  = New("invalid")
)

type class struct{ name string }

func (c *class) Error() string { return c.name }

// New creates a distinct error class
func New(name string) error { return &class{name: name} }

// classified carries a message and unwraps to its class
type classified struct {
	class error
	msg   string
}

func (e *classified) Error() string { return e.msg }
func (e *classified) Unwrap() error { return e.class }

// NotFoundf formats an error that unwraps to ErrNotFound
func NotFoundf(format string, args ...interface{}) error {
	return &classified{class: ErrNotFound, msg: fmt.Sprintf(format, args...)}
}

// Conflictf formats an error that unwraps to ErrConflict
func Conflictf(format string, args ...interface{}) error {
	return &classified{class: ErrConflict, msg: fmt.Sprintf(format, args...)}
}

// Invalidf formats an error that unwraps to ErrInvalid
func Invalidf(format string, args ...interface{}) error {
	return &classified{class: ErrInvalid, msg: fmt.Sprintf(format, args...)}
}
