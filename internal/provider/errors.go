package provider

import (
	"encoding/json"
	"errors"
	"fmt"

	jujuerrors "github.com/juju/errors"
)

// ErrNoRuntime is returned when the secondary provider has nothing for the platform.
const ErrNoRuntime = jujuerrors.ConstError("no suitable runtime found for this platform")

// MalformedResponseError reports a provider document that could not be parsed
// or did not have the expected shape. It matches juju's errors.NotValid.
type MalformedResponseError struct {
	Source string
	Offset int64 // byte offset into the document, 0 when unknown
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Offset > 0 {
		return fmt.Sprintf("malformed response from %s at offset %d: %v", e.Source, e.Offset, e.Err)
	}
	return fmt.Sprintf("malformed response from %s: %v", e.Source, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// Is lets callers classify the error with errors.Is(err, errors.NotValid).
func (e *MalformedResponseError) Is(target error) bool {
	return target == jujuerrors.NotValid
}

// malformed wraps err, lifting the offset out of JSON syntax and type errors.
func malformed(source string, err error) error {
	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	}
	return &MalformedResponseError{Source: source, Offset: offset, Err: err}
}

func malformedAt(source string, offset int64, format string, args ...interface{}) error {
	return &MalformedResponseError{Source: source, Offset: offset, Err: fmt.Errorf(format, args...)}
}
