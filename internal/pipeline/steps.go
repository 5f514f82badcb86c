package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/nao1215/webmirror/internal/audit"
	"github.com/nao1215/webmirror/internal/config"
	"github.com/nao1215/webmirror/internal/download"
	"github.com/nao1215/webmirror/internal/extract"
	"github.com/nao1215/webmirror/internal/fetcher"
	"github.com/nao1215/webmirror/internal/model"
	"github.com/nao1215/webmirror/internal/pageinfo"
	"github.com/nao1215/webmirror/internal/planner"
	"github.com/nao1215/webmirror/internal/rewrite"
)

// Step names.
const (
	StepFetch    = "fetch"
	StepExtract  = "extract"
	StepPlan     = "plan"
	StepDownload = "download"
	StepRewrite  = "rewrite"
	StepPageInfo = "page_info"
	StepAudit    = "audit_images"
)

// IndexFile is the name of the mirrored page inside the mirror directory.
const IndexFile = "index.html"

// stepBase carries what every step shares.
type stepBase struct {
	logger *slog.Logger
}

// StepOption configures a step.
type StepOption func(*stepBase)

// WithStepLogger sets the logger of a step.
func WithStepLogger(logger *slog.Logger) StepOption {
	return func(b *stepBase) {
		b.logger = logger
	}
}

func newStepBase(opts []StepOption) stepBase {
	b := stepBase{logger: slog.Default()}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// FetchStep fetches the page and creates the mirror directory with one
// subdirectory per resource category. Both are fatal on failure: the run
// moves to Failed and nothing is written.
type FetchStep struct {
	stepBase
	fetcher   *fetcher.Fetcher
	renderer  fetcher.Renderer
	timeout   time.Duration
	outputDir string
}

// NewFetchStep creates a FetchStep writing mirrors under outputDir.
// A non-nil renderer fetches the page through a headless browser.
func NewFetchStep(f *fetcher.Fetcher, outputDir string, timeout time.Duration, renderer fetcher.Renderer, opts ...StepOption) *FetchStep {
	return &FetchStep{
		stepBase:  newStepBase(opts),
		fetcher:   f,
		renderer:  renderer,
		timeout:   timeout,
		outputDir: outputDir,
	}
}

// Name returns the step name.
func (s *FetchStep) Name() string { return StepFetch }

// Do fetches the page.
func (s *FetchStep) Do(ctx context.Context, report *model.MirrorReport) error {
	u, err := url.Parse(report.URL)
	if err != nil || u.Host == "" {
		return s.fail(report, fmt.Errorf("%w: %s", config.ErrInvalidURL, report.URL))
	}
	report.Host = strings.ToLower(u.Host)

	var result *model.PageFetchResult
	if s.renderer != nil {
		result = s.fetcher.FetchRendered(ctx, report.URL, s.timeout, s.renderer)
	} else {
		result = s.fetcher.Fetch(ctx, report.URL, s.timeout)
	}
	report.Page = result
	if !result.OK() {
		return s.fail(report, result.Err)
	}

	name := planner.SanitizeOrigin(report.Host)
	if name == "" {
		return s.fail(report, fmt.Errorf("%w: host %q", planner.ErrEmptyFilename, report.Host))
	}
	dir := filepath.Join(s.outputDir, name)
	for _, c := range model.Categories() {
		sub := filepath.Join(dir, string(c))
		if err := os.MkdirAll(sub, 0750); err != nil {
			return s.fail(report, &download.FilesystemError{Op: "mkdir", Path: sub, Err: err})
		}
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	report.MirrorDir = dir

	s.logger.Info("fetched page",
		"url", report.URL,
		"status", result.StatusCode,
		"bytes", len(result.Body),
		"mirror", dir,
	)
	return nil
}

func (s *FetchStep) fail(report *model.MirrorReport, err error) error {
	if transitionErr := report.Fail(err); transitionErr != nil {
		return transitionErr
	}
	return err
}

// ExtractStep collects stylesheet, script and image references.
type ExtractStep struct {
	stepBase
}

// NewExtractStep creates an ExtractStep.
func NewExtractStep(opts ...StepOption) *ExtractStep {
	return &ExtractStep{stepBase: newStepBase(opts)}
}

// Name returns the step name.
func (s *ExtractStep) Name() string { return StepExtract }

// Do extracts references from the fetched page.
func (s *ExtractStep) Do(_ context.Context, report *model.MirrorReport) error {
	if err := report.Transition(model.StateExtracting); err != nil {
		return err
	}

	refs, err := extract.References(report.Page.Body)
	if err != nil {
		s.logger.Warn("failed to extract references", "url", report.URL, "error", err)
		refs = nil
	}
	report.References = append(report.References[:0], refs...)

	s.logger.Debug("extracted references", "url", report.URL, "count", len(refs))
	return nil
}

// Prober learns the content type of a URL cheaply. *fetcher.Fetcher implements it.
type Prober interface {
	Probe(ctx context.Context, rawURL string, timeout time.Duration) (string, []byte, error)
}

// PlanStep decides local paths and records skipped and unplannable references.
type PlanStep struct {
	stepBase
	prober  Prober
	sites   *config.File
	timeout time.Duration
}

// NewPlanStep creates a PlanStep. prober may be nil, in which case
// extensionless URLs are typed by their tag alone.
func NewPlanStep(prober Prober, sites *config.File, timeout time.Duration, opts ...StepOption) *PlanStep {
	return &PlanStep{
		stepBase: newStepBase(opts),
		prober:   prober,
		sites:    sites,
		timeout:  timeout,
	}
}

// Name returns the step name.
func (s *PlanStep) Name() string { return StepPlan }

// Do plans every extracted reference.
func (s *PlanStep) Do(ctx context.Context, report *model.MirrorReport) error {
	if err := report.Transition(model.StatePlanning); err != nil {
		return err
	}

	base := pageBase(report)

	site := s.sites.GetSiteConfig(report.Host)
	opts := []planner.Option{
		planner.WithLogger(s.logger),
		planner.WithIgnorePatterns(site.IgnorePatterns),
	}
	if s.prober != nil {
		opts = append(opts, planner.WithSniffer(s.sniff))
	}

	p, err := planner.New(base, opts...)
	if err != nil {
		return err
	}

	for _, ref := range report.References {
		planned, err := p.Plan(ctx, ref)
		switch {
		case err == nil:
			report.Planned = append(report.Planned, *planned)
		case planner.IsSkip(err):
			s.logger.Debug("skipping resource", "ref", ref.RawURL, "reason", err)
			report.AddOutcome(outcomeFor(p, ref, model.StatusSkipped, err))
		default:
			s.logger.Warn("cannot plan resource", "ref", ref.RawURL, "error", err)
			report.AddOutcome(outcomeFor(p, ref, model.StatusFailed, err))
		}
	}
	return nil
}

func (s *PlanStep) sniff(ctx context.Context, absoluteURL string) string {
	contentType, head, err := s.prober.Probe(ctx, absoluteURL, s.timeout)
	if err != nil {
		s.logger.Debug("probe failed", "url", absoluteURL, "error", err)
		return ""
	}
	return fetcher.SniffExtension(contentType, head)
}

func outcomeFor(p *planner.Planner, ref model.ResourceReference, status model.ResourceStatus, err error) model.ResourceOutcome {
	o := model.ResourceOutcome{
		Reference: ref,
		Status:    status,
		Reason:    err.Error(),
	}
	if abs, resolveErr := p.Resolve(ref.RawURL); resolveErr == nil {
		o.AbsoluteURL = abs.String()
	}
	return o
}

// DownloadStep downloads planned resources with a bounded worker pool.
type DownloadStep struct {
	stepBase
	getter  download.Getter
	workers int
	timeout time.Duration
}

// NewDownloadStep creates a DownloadStep.
func NewDownloadStep(getter download.Getter, workers int, timeout time.Duration, opts ...StepOption) *DownloadStep {
	return &DownloadStep{
		stepBase: newStepBase(opts),
		getter:   getter,
		workers:  workers,
		timeout:  timeout,
	}
}

// Name returns the step name.
func (s *DownloadStep) Name() string { return StepDownload }

// Do downloads everything and waits for all workers.
func (s *DownloadStep) Do(ctx context.Context, report *model.MirrorReport) error {
	if err := report.Transition(model.StateDownloading); err != nil {
		return err
	}

	coordinator := download.NewCoordinator(s.getter, report.MirrorDir,
		download.WithWorkers(s.workers),
		download.WithTimeout(s.timeout),
		download.WithLogger(s.logger),
	)
	report.Records = coordinator.DownloadAll(ctx, report.Planned)
	report.RenameMap = coordinator.RenameMap().Snapshot()

	for _, r := range report.Records {
		o := model.ResourceOutcome{
			Reference:   r.Planned.Reference,
			AbsoluteURL: r.Planned.AbsoluteURL,
		}
		if r.Success {
			o.Status = model.StatusDownloaded
			o.LocalPath = r.Planned.LocalPath
			o.Bytes = r.BytesWritten
			o.Digest = r.Digest
		} else {
			o.Status = model.StatusFailed
			o.Reason = r.ErrorMessage
		}
		report.AddOutcome(o)
	}
	slices.SortStableFunc(report.Outcomes, func(a, b model.ResourceOutcome) int {
		return a.Reference.Index - b.Reference.Index
	})
	return nil
}

// pageBase is the URL references of the page are resolved against.
func pageBase(report *model.MirrorReport) string {
	if report.Page != nil && report.Page.FinalURL != "" {
		return report.Page.FinalURL
	}
	return report.URL
}

// RewriteStep rewrites the page and the downloaded CSS/JS, writes
// index.html and finishes the run.
type RewriteStep struct {
	stepBase
}

// NewRewriteStep creates a RewriteStep.
func NewRewriteStep(opts ...StepOption) *RewriteStep {
	return &RewriteStep{stepBase: newStepBase(opts)}
}

// Name returns the step name.
func (s *RewriteStep) Name() string { return StepRewrite }

// Do rewrites references using the completed rename map.
func (s *RewriteStep) Do(_ context.Context, report *model.MirrorReport) error {
	if err := report.Transition(model.StateRewriting); err != nil {
		return err
	}

	html := report.Page.Body
	base := pageBase(report)
	result, err := rewrite.Page(report.Page.Body, base, report.RenameMap)
	if err != nil {
		s.logger.Warn("keeping page unrewritten", "url", report.URL, "error", err)
	} else {
		html = result.HTML
		s.logger.Debug("rewrote page", "references", result.References, "inline_styles", result.InlineStyles)
	}

	indexPath := filepath.Join(report.MirrorDir, IndexFile)
	if err := os.WriteFile(indexPath, html, 0600); err != nil {
		return &download.FilesystemError{Op: "write", Path: indexPath, Err: err}
	}

	var assets []rewrite.Asset
	for _, r := range report.Records {
		if r.Success && r.Planned.Category.IsText() {
			assets = append(assets, rewrite.Asset{Local: r.Planned.LocalPath, URL: r.Planned.AbsoluteURL})
		}
	}
	changed, err := rewrite.Assets(report.MirrorDir, base, assets, report.RenameMap)
	if err != nil {
		s.logger.Warn("some assets were not rewritten", "error", err)
	}
	report.RewrittenAssets = changed

	return report.Transition(model.StateDone)
}

// PageInfoStep reads title, byline, site name and language of the page.
// Failures are logged and leave PageInfo empty.
type PageInfoStep struct {
	stepBase
}

// NewPageInfoStep creates a PageInfoStep.
func NewPageInfoStep(opts ...StepOption) *PageInfoStep {
	return &PageInfoStep{stepBase: newStepBase(opts)}
}

// Name returns the step name.
func (s *PageInfoStep) Name() string { return StepPageInfo }

// Do extracts page metadata.
func (s *PageInfoStep) Do(_ context.Context, report *model.MirrorReport) error {
	if !report.Page.OK() {
		return nil
	}
	info, err := pageinfo.Extract(report.Page.Body, report.Page.FinalURL)
	if err != nil {
		s.logger.Debug("no page metadata", "url", report.URL, "error", err)
		return nil
	}
	report.PageInfo = info
	return nil
}

// AuditStep inspects mirrored images for identifying metadata.
type AuditStep struct {
	stepBase
	auditor *audit.Auditor
}

// NewAuditStep creates an AuditStep.
func NewAuditStep(auditor *audit.Auditor, opts ...StepOption) *AuditStep {
	return &AuditStep{stepBase: newStepBase(opts), auditor: auditor}
}

// Name returns the step name.
func (s *AuditStep) Name() string { return StepAudit }

// Do audits downloaded images.
func (s *AuditStep) Do(ctx context.Context, report *model.MirrorReport) error {
	var paths []string
	for _, r := range report.Records {
		if r.Success {
			paths = append(paths, r.Planned.LocalPath)
		}
	}
	findings, err := s.auditor.Audit(ctx, report.MirrorDir, paths)
	report.ImageFindings = findings
	if len(findings) > 0 {
		s.logger.Warn("identifying metadata found in mirrored images", "url", report.URL, "count", len(findings))
	}
	return err
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// OutputDir is the directory mirror directories are created in.
	OutputDir string

	// Timeout bounds every single request.
	Timeout time.Duration

	// Workers is the size of the download pool.
	Workers int

	// Sites holds per-site overrides such as ignore patterns.
	Sites *config.File

	// Renderer, when set, fetches the page through a headless browser.
	Renderer fetcher.Renderer

	// PageInfo enables the page metadata step.
	PageInfo bool

	// AuditImages enables the image metadata audit.
	AuditImages bool

	// StepLogger is handed to every step.
	StepLogger *slog.Logger
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineOutputDir sets the mirror root.
func WithPipelineOutputDir(dir string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.OutputDir = dir
	}
}

// WithPipelineTimeout sets the per-request timeout.
func WithPipelineTimeout(d time.Duration) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Timeout = d
	}
}

// WithPipelineWorkers sets the download pool size.
func WithPipelineWorkers(n int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Workers = n
	}
}

// WithPipelineSites sets per-site configuration.
func WithPipelineSites(sites *config.File) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Sites = sites
	}
}

// WithPipelineRenderer fetches the page through renderer.
func WithPipelineRenderer(r fetcher.Renderer) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Renderer = r
	}
}

// WithPipelinePageInfo enables page metadata extraction.
func WithPipelinePageInfo(enabled bool) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.PageInfo = enabled
	}
}

// WithPipelineAuditImages enables the image metadata audit.
func WithPipelineAuditImages(enabled bool) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.AuditImages = enabled
	}
}

// WithPipelineStepLogger sets the logger handed to every step.
func WithPipelineStepLogger(logger *slog.Logger) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.StepLogger = logger
	}
}

// DefaultPipeline builds fetch, extract, plan, download and rewrite around
// f, followed by the optional steps that were enabled.
func DefaultPipeline(f *fetcher.Fetcher, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	cfg := &DefaultPipelineConfig{
		OutputDir: ".",
		Timeout:   config.DefaultTimeout,
		Workers:   config.DefaultWorkers,
		PageInfo:  true,
	}
	for _, opt := range configOpts {
		opt(cfg)
	}

	var stepOpts []StepOption
	if cfg.StepLogger != nil {
		stepOpts = append(stepOpts, WithStepLogger(cfg.StepLogger))
	}

	p := New(pipelineOpts...)
	p.AddSteps(
		NewFetchStep(f, cfg.OutputDir, cfg.Timeout, cfg.Renderer, stepOpts...),
		NewExtractStep(stepOpts...),
		NewPlanStep(f, cfg.Sites, cfg.Timeout, stepOpts...),
		NewDownloadStep(f, cfg.Workers, cfg.Timeout, stepOpts...),
		NewRewriteStep(stepOpts...),
	)
	if cfg.PageInfo {
		p.AddStep(NewPageInfoStep(stepOpts...))
	}
	if cfg.AuditImages {
		var auditOpts []audit.Option
		if cfg.StepLogger != nil {
			auditOpts = append(auditOpts, audit.WithLogger(cfg.StepLogger))
		}
		p.AddStep(NewAuditStep(audit.New(auditOpts...), stepOpts...))
	}
	return p
}
