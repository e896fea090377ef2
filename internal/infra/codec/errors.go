package codec

import "fmt"

type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown column %q", e.Field)
}

type FieldValueError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldValueError) Error() string {
	return fmt.Sprintf("column %s: invalid value %q: %v", e.Field, e.Value, e.Err)
}

func (e *FieldValueError) Unwrap() error {
	return e.Err
}

// SyntaxError reports malformed delimited text.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}
