package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// maxRedirects stops redirect loops.
const maxRedirects = 10

// ClientOptions describes how an HTTP client is built.
type ClientOptions struct {
	// Timeout bounds each request including body read.
	Timeout time.Duration

	// UserAgent is set on every request when non-empty.
	UserAgent string

	// Cookie is appended to the Cookie header of every request.
	Cookie string

	// Headers are set on every request.
	Headers map[string]string

	// ProxyURL routes traffic through a proxy when non-empty.
	ProxyURL string
}

// ClientOption configures ClientOptions.
type ClientOption func(*ClientOptions)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(o *ClientOptions) {
		o.Timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(o *ClientOptions) {
		o.UserAgent = ua
	}
}

// WithCookie sets a raw cookie string such as "session=abc".
func WithCookie(cookie string) ClientOption {
	return func(o *ClientOptions) {
		o.Cookie = cookie
	}
}

// WithHeaders sets extra request headers.
func WithHeaders(headers map[string]string) ClientOption {
	return func(o *ClientOptions) {
		o.Headers = headers
	}
}

// WithProxy routes requests through the proxy at rawURL.
func WithProxy(rawURL string) ClientOption {
	return func(o *ClientOptions) {
		o.ProxyURL = rawURL
	}
}

// NewHTTPClient returns a client configured by opts.
// It fails only when the proxy URL cannot be used.
func NewHTTPClient(opts ...ClientOption) (*http.Client, error) {
	o := ClientOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	base := &http.Transport{
		Proxy:               nil,
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	base.DialContext = dialer.DialContext

	if o.ProxyURL != "" {
		if err := configureProxy(base, o.ProxyURL); err != nil {
			return nil, err
		}
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &http.Client{
		Transport: &headerInjectingTransport{
			base:      base,
			userAgent: o.UserAgent,
			cookie:    o.Cookie,
			headers:   o.Headers,
		},
		Timeout: o.Timeout,
		Jar:     jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// configureProxy wires rawURL into t. SOCKS proxies replace the dialer;
// HTTP proxies use the transport's Proxy hook.
func configureProxy(t *http.Transport, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid proxy URL: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "socks5", "socks5h":
		d, err := proxy.FromURL(u, proxy.Direct)
		if err != nil {
			return fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		t.DialContext = dialContextFor(d)
		return nil
	case "http", "https":
		t.Proxy = http.ProxyURL(u)
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedProxy, u.Scheme)
	}
}

// dialContextFor adapts a proxy.Dialer to http.Transport.DialContext,
// honoring cancellation when the dialer supports it.
func dialContextFor(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type result struct {
			conn net.Conn
			err  error
		}
		ch := make(chan result, 1)
		go func() {
			conn, err := d.Dial(network, addr)
			ch <- result{conn, err}
		}()
		select {
		case r := <-ch:
			return r.conn, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// headerInjectingTransport adds the configured identity headers to every request.
type headerInjectingTransport struct {
	base      http.RoundTripper
	userAgent string
	cookie    string
	headers   map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.userAgent != "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}

	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
