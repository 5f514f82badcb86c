package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/webmirror/internal/model"
	"github.com/nao1215/webmirror/internal/ratelimit"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		_, _ = w.Write([]byte("body { color: red; }"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
	})
	mux.HandleFunc("/range", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Range", r.Header.Get("Range"))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte(strings.Repeat("p", 4096)))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		_, _ = w.Write([]byte("late"))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestFetch(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)

	t.Run("success captures body and content type", func(t *testing.T) {
		t.Parallel()

		f := New(server.Client(), nil)
		res := f.Fetch(context.Background(), server.URL+"/ok", 5*time.Second)
		if !res.OK() {
			t.Fatalf("expected success, got %v: %v", res.Outcome, res.Err)
		}
		if string(res.Body) != "body { color: red; }" {
			t.Errorf("unexpected body %q", res.Body)
		}
		if res.ContentType != "text/css" {
			t.Errorf("expected text/css, got %q", res.ContentType)
		}
		if res.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", res.StatusCode)
		}
	})

	t.Run("non-2xx is an HTTP error", func(t *testing.T) {
		t.Parallel()

		f := New(server.Client(), nil)
		res := f.Fetch(context.Background(), server.URL+"/missing", 5*time.Second)
		if res.Outcome != model.OutcomeHTTPError {
			t.Fatalf("expected HTTP error, got %v", res.Outcome)
		}
		if res.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", res.StatusCode)
		}
		if !errors.Is(res.Err, ErrHTTPStatus) {
			t.Errorf("expected ErrHTTPStatus, got %v", res.Err)
		}
		if errors.Is(res.Err, ErrTransport) {
			t.Error("HTTP error must not match ErrTransport")
		}
		if res.Body != nil {
			t.Error("expected no body on failure")
		}
	})

	t.Run("unreachable host is a transport error", func(t *testing.T) {
		t.Parallel()

		closed := httptest.NewServer(http.NotFoundHandler())
		addr := closed.URL
		closed.Close()

		f := New(&http.Client{}, nil)
		res := f.Fetch(context.Background(), addr+"/x", 2*time.Second)
		if res.Outcome != model.OutcomeTransportError {
			t.Fatalf("expected transport error, got %v", res.Outcome)
		}
		if !errors.Is(res.Err, ErrTransport) {
			t.Errorf("expected ErrTransport, got %v", res.Err)
		}
		if res.StatusCode != 0 {
			t.Errorf("expected status 0, got %d", res.StatusCode)
		}
	})

	t.Run("timeout is a transport error", func(t *testing.T) {
		t.Parallel()

		f := New(server.Client(), nil)
		res := f.Fetch(context.Background(), server.URL+"/slow", 50*time.Millisecond)
		if res.Outcome != model.OutcomeTransportError {
			t.Fatalf("expected transport error, got %v", res.Outcome)
		}
	})

	t.Run("oversized body is rejected", func(t *testing.T) {
		t.Parallel()

		f := New(server.Client(), nil, WithMaxBodySize(1024))
		res := f.Fetch(context.Background(), server.URL+"/big", 5*time.Second)
		if res.Outcome != model.OutcomeTransportError {
			t.Fatalf("expected transport error, got %v", res.Outcome)
		}
		if !errors.Is(res.Err, ErrBodyTooLarge) {
			t.Errorf("expected ErrBodyTooLarge, got %v", res.Err)
		}
	})

	t.Run("every fetch acquires a permit", func(t *testing.T) {
		t.Parallel()

		limiter := ratelimit.New(1000, 10)
		f := New(server.Client(), limiter)
		f.Fetch(context.Background(), server.URL+"/ok", 5*time.Second)
		f.Fetch(context.Background(), server.URL+"/missing", 5*time.Second)
		if limiter.Acquired() != 2 {
			t.Errorf("expected 2 permits, got %d", limiter.Acquired())
		}
	})

	t.Run("cancelled context fails before the request", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		f := New(server.Client(), ratelimit.New(1, 1))
		res := f.Fetch(ctx, server.URL+"/ok", 5*time.Second)
		if res.Outcome != model.OutcomeTransportError {
			t.Errorf("expected transport error, got %v", res.Outcome)
		}
	})
}

func TestProbe(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	f := New(server.Client(), nil)

	t.Run("reads content type and leading bytes", func(t *testing.T) {
		t.Parallel()

		ct, head, err := f.Probe(context.Background(), server.URL+"/range", 5*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ct != "image/png" {
			t.Errorf("expected image/png, got %q", ct)
		}
		if len(head) != probeSize {
			t.Errorf("expected %d bytes, got %d", probeSize, len(head))
		}
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		t.Parallel()

		_, _, err := f.Probe(context.Background(), server.URL+"/missing", 5*time.Second)
		if !errors.Is(err, ErrHTTPStatus) {
			t.Errorf("expected ErrHTTPStatus, got %v", err)
		}
	})
}

type fakeRenderer struct {
	page *RenderedPage
	err  error
}

func (r fakeRenderer) Render(context.Context, string) (*RenderedPage, error) {
	return r.page, r.err
}

func TestFetchRendered(t *testing.T) {
	t.Parallel()

	t.Run("rendered markup becomes the body", func(t *testing.T) {
		t.Parallel()

		limiter := ratelimit.New(1000, 1)
		f := New(nil, limiter)
		renderer := fakeRenderer{page: &RenderedPage{
			HTML:       "<html></html>",
			StatusCode: 200,
			FinalURL:   "https://ex.test/home",
		}}
		res := f.FetchRendered(context.Background(), "https://ex.test/", time.Second, renderer)
		if !res.OK() {
			t.Fatalf("expected success, got %v", res.Err)
		}
		if string(res.Body) != "<html></html>" {
			t.Errorf("unexpected body %q", res.Body)
		}
		if res.StatusCode != 200 {
			t.Errorf("expected status 200, got %d", res.StatusCode)
		}
		if res.FinalURL != "https://ex.test/home" {
			t.Errorf("expected final URL after redirect, got %s", res.FinalURL)
		}
		if limiter.Acquired() != 1 {
			t.Errorf("expected render to acquire a permit, got %d", limiter.Acquired())
		}
	})

	t.Run("error document status is an HTTP error", func(t *testing.T) {
		t.Parallel()

		f := New(nil, nil)
		renderer := fakeRenderer{page: &RenderedPage{HTML: "<html>not found</html>", StatusCode: 404}}
		res := f.FetchRendered(context.Background(), "https://ex.test/", time.Second, renderer)
		if res.Outcome != model.OutcomeHTTPError {
			t.Errorf("expected HTTP error, got %v", res.Outcome)
		}
		if !errors.Is(res.Err, ErrHTTPStatus) {
			t.Errorf("expected ErrHTTPStatus, got %v", res.Err)
		}
		if res.StatusCode != 404 {
			t.Errorf("expected status 404, got %d", res.StatusCode)
		}
		if res.Body != nil {
			t.Errorf("expected no body, got %q", res.Body)
		}
	})

	t.Run("unknown document status is accepted", func(t *testing.T) {
		t.Parallel()

		f := New(nil, nil)
		res := f.FetchRendered(context.Background(), "https://ex.test/", time.Second, fakeRenderer{page: &RenderedPage{HTML: "<p></p>"}})
		if !res.OK() {
			t.Fatalf("expected success, got %v", res.Err)
		}
		if res.StatusCode != 0 {
			t.Errorf("expected unknown status to stay 0, got %d", res.StatusCode)
		}
		if res.FinalURL != "https://ex.test/" {
			t.Errorf("expected final URL to default to the request, got %s", res.FinalURL)
		}
	})

	t.Run("render failure is a transport error", func(t *testing.T) {
		t.Parallel()

		f := New(nil, nil)
		res := f.FetchRendered(context.Background(), "https://ex.test/", time.Second, fakeRenderer{err: errors.New("chrome not found")})
		if res.Outcome != model.OutcomeTransportError {
			t.Errorf("expected transport error, got %v", res.Outcome)
		}
	})

	t.Run("nil renderer is a transport error", func(t *testing.T) {
		t.Parallel()

		f := New(nil, nil)
		res := f.FetchRendered(context.Background(), "https://ex.test/", time.Second, nil)
		if res.Outcome != model.OutcomeTransportError {
			t.Errorf("expected transport error, got %v", res.Outcome)
		}
	})
}

func TestSniffExtension(t *testing.T) {
	t.Parallel()

	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 0x49, 0x48, 0x44, 0x52}
	gif := []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00")

	tests := []struct {
		name        string
		contentType string
		head        []byte
		want        string
	}{
		{"css header", "text/css; charset=utf-8", nil, ".css"},
		{"javascript header", "application/javascript", nil, ".js"},
		{"jpeg header", "image/jpeg", nil, ".jpg"},
		{"svg header", "image/svg+xml", nil, ".svg"},
		{"html header", "text/html", nil, ".html"},
		{"uppercase header", "TEXT/CSS", nil, ".css"},
		{"octet-stream falls back to magic bytes", "application/octet-stream", png, ".png"},
		{"missing header uses magic bytes", "", gif, ".gif"},
		{"nothing known", "", []byte("plain words"), ""},
		{"nothing at all", "", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SniffExtension(tt.contentType, tt.head); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFetchErrorMessage(t *testing.T) {
	t.Parallel()

	httpErr := &FetchError{URL: "https://ex.test/a.css", Kind: KindHTTPStatus, StatusCode: 500, Err: ErrHTTPStatus}
	if httpErr.Error() != "GET https://ex.test/a.css: HTTP 500" {
		t.Errorf("unexpected message %q", httpErr.Error())
	}

	cause := errors.New("connection reset")
	transportErr := &FetchError{URL: "https://ex.test/a.css", Kind: KindTransport, Err: cause}
	if !errors.Is(transportErr, cause) {
		t.Error("expected Unwrap to expose the cause")
	}
}
