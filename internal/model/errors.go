package model

import (
	"errors"
	"fmt"
)

// StartupErrorKind classifies failures that prevent the server from serving.
type StartupErrorKind int

const (
	ModelUnavailable StartupErrorKind = iota + 1
	CredentialMissing
)

func (k StartupErrorKind) String() string {
	switch k {
	case ModelUnavailable:
		return "model unavailable"
	case CredentialMissing:
		return "credential missing"
	}
	return "unknown"
}

// StartupError is fatal at process start.
type StartupError struct {
	Kind StartupErrorKind
	Msg  string
	Err  error
}

func (e *StartupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *StartupError) Unwrap() error { return e.Err }

// Unavailable returns a ModelUnavailable startup error.
func Unavailable(msg string, err error) error {
	return &StartupError{Kind: ModelUnavailable, Msg: msg, Err: err}
}

// IsStartupError reports whether err is a StartupError and returns its kind.
func IsStartupError(err error) (StartupErrorKind, bool) {
	var se *StartupError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}
