package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/webmirror/internal/model"
	"github.com/nao1215/webmirror/internal/ratelimit"
)

// DefaultMaxBodySize caps response bodies when no limit is configured.
const DefaultMaxBodySize = 50 * 1024 * 1024

// probeSize is how many leading bytes Probe reads for sniffing.
const probeSize = 512

// Fetcher issues rate-limited GET requests.
type Fetcher struct {
	client      *http.Client
	limiter     *ratelimit.Limiter
	maxBodySize int64
	logger      *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithMaxBodySize caps the number of body bytes read per response.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New returns a Fetcher using client and limiter. A nil client uses
// http.DefaultClient; a nil limiter disables throttling.
func New(client *http.Client, limiter *ratelimit.Limiter, opts ...Option) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if limiter == nil {
		limiter = ratelimit.New(0, 1)
	}
	f := &Fetcher{
		client:      client,
		limiter:     limiter,
		maxBodySize: DefaultMaxBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Limiter returns the limiter shared by this fetcher.
func (f *Fetcher) Limiter() *ratelimit.Limiter {
	return f.limiter
}

// Fetch acquires a permit and performs one GET bounded by timeout.
// The result is never nil; failures are reported through its Outcome and Err.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, timeout time.Duration) *model.PageFetchResult {
	result := &model.PageFetchResult{URL: rawURL, FinalURL: rawURL}

	if err := f.limiter.Acquire(ctx); err != nil {
		return transportFailure(result, err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return transportFailure(result, err)
	}
	req.Header.Set("Accept", "*/*")

	f.logger.Debug("fetching", "url", rawURL)

	resp, err := f.client.Do(req)
	if err != nil {
		return transportFailure(result, err)
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.ContentType = resp.Header.Get("Content-Type")
	if resp.Request != nil && resp.Request.URL != nil {
		result.FinalURL = resp.Request.URL.String()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024)) //nolint:errcheck // drain for connection reuse
		result.Outcome = model.OutcomeHTTPError
		result.Err = &FetchError{URL: rawURL, Kind: KindHTTPStatus, StatusCode: resp.StatusCode, Err: ErrHTTPStatus}
		return result
	}

	// Read one byte past the limit to detect oversized bodies.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return transportFailure(result, err)
	}
	if int64(len(body)) > f.maxBodySize {
		return transportFailure(result, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, f.maxBodySize))
	}

	result.Body = body
	result.Outcome = model.OutcomeSuccess
	return result
}

// Probe fetches the first bytes of rawURL to learn its content type without
// downloading it. It asks for a byte range and stops reading after probeSize
// bytes whether or not the server honors the range.
func (f *Fetcher) Probe(ctx context.Context, rawURL string, timeout time.Duration) (string, []byte, error) {
	if err := f.limiter.Acquire(ctx); err != nil {
		return "", nil, &FetchError{URL: rawURL, Kind: KindTransport, Err: err}
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", nil, &FetchError{URL: rawURL, Kind: KindTransport, Err: err}
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", probeSize-1))

	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil, &FetchError{URL: rawURL, Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", nil, &FetchError{URL: rawURL, Kind: KindHTTPStatus, StatusCode: resp.StatusCode, Err: ErrHTTPStatus}
	}

	head, err := io.ReadAll(io.LimitReader(resp.Body, probeSize))
	if err != nil {
		return "", nil, &FetchError{URL: rawURL, Kind: KindTransport, Err: err}
	}
	return resp.Header.Get("Content-Type"), head, nil
}

func transportFailure(result *model.PageFetchResult, err error) *model.PageFetchResult {
	result.Outcome = model.OutcomeTransportError
	result.Body = nil
	result.Err = &FetchError{URL: result.URL, Kind: KindTransport, Err: err}
	return result
}
