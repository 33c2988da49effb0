package cache

import (
	"errors"
	"strings"
)

// Kind classifies a cache error.
type Kind uint8

const (
	// KindInvalidKey reports a key that fails ValidateKey.
	KindInvalidKey Kind = iota + 1
	// KindFailure reports any other cache failure (I/O, decoding, setup).
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindInvalidKey:
		return "invalid key"
	case KindFailure:
		return "failure"
	default:
		return "unknown"
	}
}

var (
	ErrInvalidKey = errors.New("cache: invalid key")
	ErrFailure    = errors.New("cache: failure")
)

// Error is the error type returned by cache operations.
// Use errors.Is with ErrInvalidKey or ErrFailure to tell the kinds apart.
type Error struct {
	Kind Kind
	Op   string
	Key  string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("cache")
	if e.Op != "" {
		sb.WriteString(" ")
		sb.WriteString(e.Op)
	}
	if e.Key != "" {
		sb.WriteString(" ")
		sb.WriteString(quoteKey(e.Key))
	}
	sb.WriteString(": ")
	if e.Msg != "" {
		sb.WriteString(e.Msg)
	} else {
		sb.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidKey:
		return e.Kind == KindInvalidKey
	case ErrFailure:
		return e.Kind == KindFailure
	}
	return false
}

// IsInvalidKey reports whether err was caused by a malformed key.
func IsInvalidKey(err error) bool { return errors.Is(err, ErrInvalidKey) }

func failure(op, msg string, err error) *Error {
	return &Error{Kind: KindFailure, Op: op, Msg: msg, Err: err}
}

func quoteKey(k string) string { return "\"" + k + "\"" }
