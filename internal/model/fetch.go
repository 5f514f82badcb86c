package model

// FetchOutcome classifies the result of a single fetch.
type FetchOutcome int

const (
	// OutcomeSuccess means a 2xx response with its body captured.
	OutcomeSuccess FetchOutcome = iota
	// OutcomeHTTPError means the server answered with a non-2xx status.
	OutcomeHTTPError
	// OutcomeTransportError means no usable response was received
	// (timeout, DNS failure, connection reset, body read failure).
	OutcomeTransportError
)

// String returns a short description of the outcome.
func (o FetchOutcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeHTTPError:
		return "http error"
	case OutcomeTransportError:
		return "transport error"
	default:
		return "unknown"
	}
}

// PageFetchResult is the immutable result of one fetch attempt.
type PageFetchResult struct {
	// URL is the requested URL.
	URL string

	// FinalURL is the URL after redirects. Equal to URL when no redirect happened.
	FinalURL string

	// StatusCode is the HTTP status, or 0 for transport errors.
	StatusCode int

	// ContentType is the response Content-Type header, possibly empty.
	ContentType string

	// Body holds the response body for successful fetches.
	Body []byte

	// Outcome classifies the attempt.
	Outcome FetchOutcome

	// Err describes the failure for non-success outcomes.
	Err error
}

// OK reports whether the fetch succeeded.
func (r *PageFetchResult) OK() bool {
	return r != nil && r.Outcome == OutcomeSuccess
}
