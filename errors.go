package lfs

import (
	"errors"
	"fmt"
)

// Code is the stable numeric error code carried by every engine error.
// The values match the negative errno codes used by littlefs.
type Code int

const (
	CodeOK           Code = 0
	CodeIO           Code = -5
	CodeInvalidState Code = -9
	CodeNotFound     Code = -2
	CodeExists       Code = -17
	CodeInvalid      Code = -22
	CodeNoSpace      Code = -28
	CodeNotEmpty     Code = -39
	CodeCorrupt      Code = -84
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeIO:
		return "i/o error"
	case CodeInvalidState:
		return "invalid state"
	case CodeNotFound:
		return "not found"
	case CodeExists:
		return "already exists"
	case CodeInvalid:
		return "invalid argument"
	case CodeNoSpace:
		return "no space left on device"
	case CodeNotEmpty:
		return "directory not empty"
	case CodeCorrupt:
		return "corrupted"
	default:
		return fmt.Sprintf("error %d", int(c))
	}
}

// Error is the distinguished error returned by every filesystem operation.
type Error struct {
	Code    Code
	Op      string
	Path    string
	Message string
	Err     error
}

// Sentinel errors for use with errors.Is. Any *Error with the same Code
// matches its sentinel.
var (
	ErrIO           = &Error{Code: CodeIO}
	ErrInvalidState = &Error{Code: CodeInvalidState}
	ErrNotFound     = &Error{Code: CodeNotFound}
	ErrExists       = &Error{Code: CodeExists}
	ErrInvalid      = &Error{Code: CodeInvalid}
	ErrNoSpace      = &Error{Code: CodeNoSpace}
	ErrNotEmpty     = &Error{Code: CodeNotEmpty}
	ErrCorrupt      = &Error{Code: CodeCorrupt}
)

func (e *Error) Error() string {
	msg := e.Code.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	switch {
	case e.Op != "" && e.Path != "":
		return fmt.Sprintf("lfs: %s %s: %s", e.Op, e.Path, msg)
	case e.Op != "":
		return fmt.Sprintf("lfs: %s: %s", e.Op, msg)
	case e.Path != "":
		return fmt.Sprintf("lfs: %s: %s", e.Path, msg)
	}
	return "lfs: " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Errorf returns a new *Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithOp returns a copy of err annotated with the operation and path, unless
// err already carries an operation. Non-*Error values become CodeIO errors.
func WithOp(err error, op, path string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		return &Error{Code: CodeIO, Op: op, Path: path, Err: err}
	}
	if e.Op != "" {
		return err
	}
	annotated := *e
	annotated.Op = op
	if annotated.Path == "" {
		annotated.Path = path
	}
	return &annotated
}

// CodeOf extracts the code from err. Errors that are not an *Error report
// CodeIO; a nil error reports CodeOK.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeIO
}
