package fetcher

import (
	"errors"
	"fmt"
)

var (
	// ErrHTTPStatus matches FetchErrors caused by a non-2xx status.
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	// ErrTransport matches FetchErrors caused by network or read failures.
	ErrTransport = errors.New("transport failure")

	// ErrBodyTooLarge is wrapped when a response exceeds the body size limit.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")
)

// ErrorKind distinguishes the two failure classes of a fetch.
type ErrorKind int

const (
	// KindHTTPStatus is a response with a non-2xx status.
	KindHTTPStatus ErrorKind = iota
	// KindTransport is a failure before a usable response was read.
	KindTransport
)

// FetchError describes a failed fetch.
type FetchError struct {
	URL        string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrHTTPStatus and ErrTransport by kind.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrHTTPStatus:
		return e.Kind == KindHTTPStatus
	case ErrTransport:
		return e.Kind == KindTransport
	}
	return false
}
