package dsl

import (
	"errors"
	"fmt"
)

// Sentinel causes wrapped by *Error.
var (
	// ErrNoTree means the input is empty or has no tree block.
	ErrNoTree = errors.New("no tree block")
	// ErrSyntax means the input does not follow the grammar.
	ErrSyntax = errors.New("syntax error")
	// ErrUnbalanced means braces do not pair up.
	ErrUnbalanced = errors.New("unbalanced braces")
	// ErrUnknownScript means an Action or Condition name is not registered.
	ErrUnknownScript = errors.New("unknown script")
)

// Error is a positioned parse failure.
type Error struct {
	File string // empty for ParseContent
	Line int
	Col  int
	Msg  string
	Err  error
}

func newError(line, col int, cause error, format string, args ...any) *Error {
	return &Error{Line: line, Col: col, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// Error implements error.
func (e *Error) Error() string {
	if e.File != "" {
		return fmt.Sprintf("dsl: %s:%d:%d: %s", e.File, e.Line, e.Col, e.Msg)
	}
	return fmt.Sprintf("dsl: line %d col %d: %s", e.Line, e.Col, e.Msg)
}

// Unwrap returns the sentinel cause.
func (e *Error) Unwrap() error { return e.Err }
