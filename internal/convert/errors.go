package convert

import (
	"errors"
	"fmt"
)

// Kind classifies a conversion failure.
type Kind string

const (
	KindFormat     Kind = "format"     // malformed or unsupported container/codec
	KindDirectory  Kind = "directory"  // cannot create the output directory
	KindFile       Kind = "file"       // cannot open/stat input or output
	KindDecode     Kind = "decode"     // compressed-input demux/decode failure
	KindEncoder    Kind = "encoder"    // encoder init, parameter or encode failure
	KindValidation Kind = "validation" // caller-supplied option out of range
)

// Error carries the failure kind alongside the wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the failure kind from err, if it carries one.
func KindOf(err error) (Kind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}
