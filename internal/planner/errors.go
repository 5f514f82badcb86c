package planner

import "errors"

var (
	// ErrCrossOrigin is returned for references whose host differs from the page host.
	// It marks a deliberate exclusion rather than a failure.
	ErrCrossOrigin = errors.New("cross-origin resource skipped")
	// ErrUnsupportedScheme is returned for data:, javascript:, mailto: and similar references.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
	// ErrIgnored is returned when a site ignore pattern matches the resource path.
	ErrIgnored = errors.New("resource matches an ignore pattern")
	// ErrEmptyFilename is returned when nothing is left of a filename after sanitization.
	ErrEmptyFilename = errors.New("filename is empty after sanitization")
	// ErrUnresolvable is returned when a reference cannot be parsed as a URL.
	ErrUnresolvable = errors.New("reference cannot be resolved")
)

// IsSkip reports whether err marks a deliberate exclusion (cross-origin,
// scheme or ignore pattern) rather than a planning failure.
func IsSkip(err error) bool {
	return errors.Is(err, ErrCrossOrigin) || errors.Is(err, ErrUnsupportedScheme) || errors.Is(err, ErrIgnored)
}
