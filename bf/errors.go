package bf

import (
	"errors"
	"fmt"
)

// Syntax errors. Parse wraps them in a *SyntaxError.
var (
	ErrUnterminatedComment        = errors.New("comment not closed")
	ErrUnmatchedLoopClose         = errors.New("no opening loop token")
	ErrUnterminatedLoop           = errors.New("loop not closed")
	ErrMismatchedRepetitionParen  = errors.New("no opening parenthesis")
	ErrUnclosedRepetition         = errors.New("expected a closing parenthesis")
	ErrExpectedOperationSymbol    = errors.New("expected one of + - < > after opening parenthesis")
	ErrDigitsOnlyInsideRepetition = errors.New("only digits allowed inside a repetition")
	ErrCommentInsideRepetition    = errors.New("comments must be written outside of a repetition")
	ErrNumberParse                = errors.New("cannot parse repetition count")
)

// Runtime errors. The interpreter wraps them in a *RuntimeError.
var (
	ErrUnknownToken    = errors.New("unknown token")
	ErrOutOfTapeBounds = errors.New("out of the tape")
	ErrInputRead       = errors.New("error reading input")
	ErrInputParse      = errors.New("error parsing input")
	ErrOutputWrite     = errors.New("error writing output")
)

// SyntaxError is returned by Parse. Pos is where the problem was found and
// Found is the character there, or 0 at end of input.
type SyntaxError struct {
	Err   error
	Pos   Position
	Found rune
	Cause error
}

func (e *SyntaxError) Error() string {
	msg := fmt.Sprintf("syntax error at %s: %v", e.Pos, e.Err)
	if e.Found != 0 {
		msg += fmt.Sprintf(" (found %q)", e.Found)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *SyntaxError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

// RuntimeError is returned by the interpreter. Token is set for unknown
// tokens, Index for tape errors.
type RuntimeError struct {
	Err   error
	Token rune
	Index int
	Cause error
}

func (e *RuntimeError) Error() string {
	var msg string
	switch {
	case errors.Is(e.Err, ErrUnknownToken):
		msg = fmt.Sprintf("runtime error: %v %q", e.Err, e.Token)
	case errors.Is(e.Err, ErrOutOfTapeBounds):
		msg = fmt.Sprintf("runtime error: %v with index %d", e.Err, e.Index)
	default:
		msg = fmt.Sprintf("runtime error: %v", e.Err)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *RuntimeError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}
