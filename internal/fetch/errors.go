// SPDX-License-Identifier: MIT

package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrTimeout reports that all attempts against an upstream timed out.
var ErrTimeout = errors.New("upstream timeout")

// ErrTooManyRedirects reports that the redirect cap was exceeded.
var ErrTooManyRedirects = errors.New("too many redirects")

// StatusError carries a non-2xx upstream HTTP status through the call chain
// so handlers can forward it verbatim.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d for %s", e.Code, e.URL)
}

// StatusCode extracts the upstream status from err, if it carries one.
func StatusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}

// isTimeout reports whether err is a per-attempt timeout rather than a
// caller cancellation or hard transport failure.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
