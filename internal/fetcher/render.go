package fetcher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/nao1215/webmirror/internal/model"
)

// RenderedPage is a page as a browser saw it.
type RenderedPage struct {
	// HTML is the serialized DOM after scripts have run.
	HTML string
	// StatusCode is the HTTP status of the main document, 0 when the
	// browser reported none (e.g. the page was served from cache).
	StatusCode int
	// FinalURL is the document URL after redirects, empty when unknown.
	FinalURL string
}

// Renderer produces the serialized DOM of a page after scripts have run.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (*RenderedPage, error)
}

// ChromeRenderer renders pages in headless Chrome through chromedp.
type ChromeRenderer struct {
	userAgent string
	wait      time.Duration
	proxyURL  string
}

// ChromeOption configures a ChromeRenderer.
type ChromeOption func(*ChromeRenderer)

// WithRenderUserAgent sets the browser User-Agent.
func WithRenderUserAgent(ua string) ChromeOption {
	return func(r *ChromeRenderer) {
		r.userAgent = ua
	}
}

// WithRenderWait sets how long the page may settle after load.
func WithRenderWait(d time.Duration) ChromeOption {
	return func(r *ChromeRenderer) {
		r.wait = d
	}
}

// WithRenderProxy routes browser traffic through proxyURL.
func WithRenderProxy(proxyURL string) ChromeOption {
	return func(r *ChromeRenderer) {
		r.proxyURL = proxyURL
	}
}

// NewChromeRenderer returns a renderer. Chrome is started per Render call.
func NewChromeRenderer(opts ...ChromeOption) *ChromeRenderer {
	r := &ChromeRenderer{wait: 2 * time.Second}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render navigates to pageURL and returns the outer HTML of the document
// together with the status of the first document response, which is the
// main frame's final response after redirects.
func (r *ChromeRenderer) Render(ctx context.Context, pageURL string) (*RenderedPage, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
	)
	if r.userAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(r.userAgent))
	}
	if r.proxyURL != "" {
		// Chrome has no socks5h scheme; its socks5 already resolves through the proxy.
		allocOpts = append(allocOpts, chromedp.ProxyServer(strings.Replace(r.proxyURL, "socks5h://", "socks5://", 1)))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	var (
		mu   sync.Mutex
		page RenderedPage
		seen bool
	)
	chromedp.ListenTarget(taskCtx, func(ev any) {
		e, ok := ev.(*network.EventResponseReceived)
		if !ok || e.Type != network.ResourceTypeDocument || e.Response == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if seen {
			return
		}
		seen = true
		page.StatusCode = int(e.Response.Status)
		page.FinalURL = e.Response.URL
	})

	var outer string
	err := chromedp.Run(taskCtx,
		network.Enable(),
		chromedp.EmulateViewport(1920, 1080),
		chromedp.Navigate(pageURL),
		chromedp.Sleep(r.wait),
		chromedp.OuterHTML("html", &outer, chromedp.ByQuery),
	)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	page.HTML = outer
	return &page, nil
}

// FetchRendered acquires a permit and renders rawURL with renderer.
// Rendering failures are classified as transport errors and a non-2xx
// document status as an HTTP error, like Fetch. When the renderer reports
// no status the page is accepted and StatusCode stays 0.
func (f *Fetcher) FetchRendered(ctx context.Context, rawURL string, timeout time.Duration, renderer Renderer) *model.PageFetchResult {
	result := &model.PageFetchResult{URL: rawURL, FinalURL: rawURL}

	if renderer == nil {
		return transportFailure(result, errors.New("no renderer configured"))
	}
	if err := f.limiter.Acquire(ctx); err != nil {
		return transportFailure(result, err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	f.logger.Debug("rendering", "url", rawURL)

	page, err := renderer.Render(ctx, rawURL)
	if err != nil {
		return transportFailure(result, err)
	}
	if page == nil {
		return transportFailure(result, errors.New("renderer returned no page"))
	}

	result.StatusCode = page.StatusCode
	if page.FinalURL != "" {
		result.FinalURL = page.FinalURL
	}
	if page.StatusCode != 0 && (page.StatusCode < 200 || page.StatusCode > 299) {
		result.Outcome = model.OutcomeHTTPError
		result.Err = &FetchError{URL: rawURL, Kind: KindHTTPStatus, StatusCode: page.StatusCode, Err: ErrHTTPStatus}
		return result
	}

	result.ContentType = "text/html; charset=utf-8"
	result.Body = []byte(page.HTML)
	result.Outcome = model.OutcomeSuccess
	return result
}
