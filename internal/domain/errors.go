package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindTransientStorage ErrorKind = "transient_storage"
	KindNotFound         ErrorKind = "not_found"
	KindAuth             ErrorKind = "auth"
	KindDecode           ErrorKind = "decode"
)

// Sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrTransientStorage = &Error{Kind: KindTransientStorage}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrAuth             = &Error{Kind: KindAuth}
	ErrDecode           = &Error{Kind: KindDecode}
)

type Error struct {
	Kind ErrorKind
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
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Err == nil
}

func NewValidationError(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func NewAuthError(msg string) error {
	return &Error{Kind: KindAuth, Msg: msg}
}

func NewTransientStorageError(op string, err error) error {
	return &Error{Kind: KindTransientStorage, Msg: op, Err: err}
}

func NewDecodeError(err error) error {
	return &Error{Kind: KindDecode, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
