package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Match with errors.Is; recover context with errors.As(*Error).
var (
	ErrMalformedRecord = errors.New("malformed record")
	ErrMalformedStream = errors.New("malformed stream")
	ErrEmptySequence   = errors.New("empty sequence")
	ErrInvalidInput    = errors.New("invalid input")
)

// Error carries the kind of failure plus whatever context was known where it
// was raised. Zero-valued fields are omitted from the message.
type Error struct {
	Kind    error
	Op      string
	Field   string
	Offset  int
	LineNum int
	Line    string
	StormID int
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.StormID != 0 {
		fmt.Fprintf(&b, " storm=%d", e.StormID)
	}
	if e.LineNum > 0 {
		fmt.Fprintf(&b, " line=%d", e.LineNum)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field=%s offset=%d", e.Field, e.Offset)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Line != "" {
		fmt.Fprintf(&b, " (%q)", e.Line)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func recordError(f Field, offset int, line string, err error) *Error {
	return &Error{
		Kind:   ErrMalformedRecord,
		Op:     "parse",
		Field:  f.Name,
		Offset: offset,
		Line:   line,
		Err:    err,
	}
}

func invalidInput(op, format string, args ...any) *Error {
	return &Error{Kind: ErrInvalidInput, Op: op, Err: fmt.Errorf(format, args...)}
}
