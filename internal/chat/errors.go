package chat

import (
	"errors"
	"fmt"
	"net/http"
)

// DecodeErrorKind classifies request decoding failures.
type DecodeErrorKind int

const (
	EmptyMessages DecodeErrorKind = iota + 1
	ImageUnresolvable
	TemplateError
)

func (k DecodeErrorKind) String() string {
	switch k {
	case EmptyMessages:
		return "empty messages"
	case ImageUnresolvable:
		return "image unresolvable"
	case TemplateError:
		return "template error"
	}
	return "unknown"
}

// DecodeError rejects a request before any generation starts.
type DecodeError struct {
	Kind DecodeErrorKind
	Msg  string
	Err  error
}

func (e *DecodeError) Error() string {
	s := e.Kind.String()
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s = fmt.Sprintf("%s: %v", s, e.Err)
	}
	return s
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StatusCode maps every decode failure to 400.
func (e *DecodeError) StatusCode() int { return http.StatusBadRequest }

// IsDecodeError reports whether err is a DecodeError and returns its kind.
func IsDecodeError(err error) (DecodeErrorKind, bool) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}
