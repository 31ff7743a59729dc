package jre

import "fmt"

// FSError reports a local filesystem operation that failed while materializing
// a runtime. It is never retried.
type FSError struct {
	Op   string
	Path string
	Err  error
}

func (e *FSError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FSError) Unwrap() error {
	return e.Err
}
