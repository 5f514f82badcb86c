package planner

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/nao1215/webmirror/internal/model"
)

// Sniffer guesses a file extension (with leading dot) for a URL whose path
// has none. It returns "" when nothing can be inferred.
type Sniffer func(ctx context.Context, absoluteURL string) string

// Planner maps resource references of one page to local paths.
//
// A Planner is bound to the URL the page was served from (after redirects)
// and decides, per reference, whether it is mirrored at all. Rejected
// references come back as sentinel errors (ErrCrossOrigin, ErrIgnored and
// friends) that the caller records as the skip or failure reason.
// Mirrored references get a path under their category directory, and the
// shared PathRegistry resolves collisions between different URLs.
//
// Note: Plan may call the Sniffer, which can hit the network, so callers
// pass a context bounded by the resource timeout. The Planner itself holds
// no per-call state and may be used from several goroutines as long as the
// registry is shared.
type Planner struct {
	page           *url.URL
	registry       *PathRegistry
	sniffer        Sniffer
	ignorePatterns []string
	logger         *slog.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithSniffer sets the content-type fallback used for extensionless URLs.
func WithSniffer(s Sniffer) Option {
	return func(p *Planner) {
		p.sniffer = s
	}
}

// WithIgnorePatterns skips resources whose URL path matches any of the
// given path.Match patterns.
func WithIgnorePatterns(patterns []string) Option {
	return func(p *Planner) {
		p.ignorePatterns = patterns
	}
}

// WithRegistry shares a PathRegistry between planners.
func WithRegistry(r *PathRegistry) Option {
	return func(p *Planner) {
		p.registry = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Planner) {
		p.logger = logger
	}
}

// New creates a planner for the page at pageURL.
func New(pageURL string, opts ...Option) (*Planner, error) {
	page, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnresolvable, pageURL, err)
	}
	if page.Host == "" {
		return nil, fmt.Errorf("%w: page URL %s has no host", ErrUnresolvable, pageURL)
	}

	p := &Planner{
		page:     page,
		registry: NewPathRegistry(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Registry returns the path registry used by the planner.
func (p *Planner) Registry() *PathRegistry {
	return p.registry
}

// Resolve turns a raw attribute value into an absolute URL without fragment.
func (p *Planner) Resolve(raw string) (*url.URL, error) {
	abs, err := p.page.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrUnresolvable, raw, err)
	}
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs, nil
}

// SameOrigin reports whether u is served by the page's host.
func (p *Planner) SameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Host, p.page.Host)
}

// Plan decides the local placement of ref.
//
// Cross-origin references return ErrCrossOrigin, which callers treat as a
// skip. A filename that sanitizes to nothing returns ErrEmptyFilename.
func (p *Planner) Plan(ctx context.Context, ref model.ResourceReference) (*model.PlannedResource, error) {
	abs, err := p.Resolve(ref.RawURL)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(abs.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, abs.Scheme)
	}

	if !p.SameOrigin(abs) {
		return nil, fmt.Errorf("%w: %s", ErrCrossOrigin, abs.Host)
	}

	for _, pattern := range p.ignorePatterns {
		if matched, _ := path.Match(pattern, abs.Path); matched {
			return nil, fmt.Errorf("%w: %s", ErrIgnored, pattern)
		}
	}

	absolute := abs.String()
	dir, file := path.Split(abs.Path)
	if file == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFilename, absolute)
	}

	if path.Ext(file) == "" {
		file += p.fallbackExtension(ctx, ref, absolute)
	}

	clean := Sanitize(file)
	if strings.Trim(strings.TrimSuffix(clean, path.Ext(clean)), ".") == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFilename, absolute)
	}

	category := model.CategoryForExtension(path.Ext(clean))

	segments := []string{string(category)}
	for _, segment := range strings.Split(dir, "/") {
		if s := sanitizeSegment(segment); s != "" {
			segments = append(segments, s)
		}
	}
	segments = append(segments, clean)

	local := p.registry.Claim(path.Join(segments...), absolute)
	if local != path.Join(segments...) {
		p.logger.Debug("local path already taken, using suffix",
			"url", absolute, "path", local)
	}

	return &model.PlannedResource{
		Reference:   ref,
		AbsoluteURL: absolute,
		Category:    category,
		LocalPath:   local,
		Filename:    path.Base(local),
	}, nil
}

// fallbackExtension infers an extension for an extensionless URL: a
// content-type probe first, then the referencing tag, then ".html".
func (p *Planner) fallbackExtension(ctx context.Context, ref model.ResourceReference, absolute string) string {
	if p.sniffer != nil {
		if ext := p.sniffer(ctx, absolute); ext != "" {
			return ext
		}
	}
	switch ref.Kind {
	case model.TagStylesheet:
		return ".css"
	case model.TagScript:
		return ".js"
	default:
		return ".html"
	}
}
