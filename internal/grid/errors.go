package grid

import (
	"errors"
	"fmt"

	"github.com/Bullochman/hivegrid/internal/protocol"
)

// Kind classifies an expected operation failure. Collisions are never an
// error: they resolve by displacement.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is returned by every grid operation that rejects its input. A
// returned *Error guarantees the State was not modified.
type Error struct {
	Kind Kind
	Code string
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func validationf(code, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Invalid builds a validation error for input checked before it reaches a
// grid operation.
func Invalid(code, format string, args ...any) *Error {
	return validationf(code, format, args...)
}

func notFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Code: protocol.ErrNotFound, Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a grid validation failure.
func IsValidation(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == KindValidation
}

// IsNotFound reports whether err is a grid not-found failure.
func IsNotFound(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == KindNotFound
}

// Code returns the protocol error code carried by err, or E_INTERNAL for
// anything that is not a grid error.
func Code(err error) string {
	var ge *Error
	if errors.As(err, &ge) && ge.Code != "" {
		return ge.Code
	}
	return protocol.ErrInternal
}
