package common

import (
	"errors"
	"fmt"
)

// Kind classifies extraction failures by how they are handled.
type Kind int

const (
	KindUnknown Kind = iota
	// missing or unreadable stylesheet, bad options; never retried
	KindInput
	// rendering engine died during a run; retried once
	KindEngineCrash
	// run exceeded configured time bound; never retried
	KindTimeout
	// single selector query failed; absorbed by selection
	KindQuery
	// document could not be written back to text
	KindSerialization
)

var kindNames = map[Kind]string{
	KindUnknown:       "unknown",
	KindInput:         "input",
	KindEngineCrash:   "engine-crash",
	KindTimeout:       "timeout",
	KindQuery:         "query",
	KindSerialization: "serialization",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error carries failure kind along with underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String() + " error"
	}
	return e.Kind.String() + " error: " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf makes new Error of requested kind, format follows fmt.Errorf (%w is supported).
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// WithKind wraps err unless it is nil or already carries a kind.
func WithKind(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf returns kind of the first Error in err chain or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
