package fetch

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	jujuerrors "github.com/juju/errors"

	"github.com/ZebulonRouseFrantzich/jrefetch/internal/jre"
)

// ErrIntegrity is matched by every digest mismatch.
const ErrIntegrity = jujuerrors.ConstError("integrity check failed")

// StatusError is returned when a server answers with anything but 200 OK.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.StatusCode, e.URL)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return e.StatusCode >= 500
}

// DigestMismatchError is returned when a transferred file does not hash to
// the digest its descriptor declared. The partial file is discarded.
type DigestMismatchError struct {
	URL  string
	Path string
	Want []byte
	Got  []byte
}

func (e *DigestMismatchError) Error() string {
	return fmt.Sprintf("digest mismatch for %s: want %s, got %s",
		e.Path, hex.EncodeToString(e.Want), hex.EncodeToString(e.Got))
}

func (e *DigestMismatchError) Unwrap() error {
	return ErrIntegrity
}

// permanentError marks an error that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return &permanentError{err: err}
}

// isFatal decides whether the retry loop gives up immediately.
func isFatal(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return !statusErr.Temporary()
	}

	var digestErr *DigestMismatchError
	var fsErr *jre.FSError
	var permErr *permanentError
	return errors.As(err, &digestErr) || errors.As(err, &fsErr) || errors.As(err, &permErr)
}
