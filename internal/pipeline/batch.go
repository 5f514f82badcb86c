package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/webmirror/internal/model"
)

// Factory builds the pipeline for one page URL.
type Factory func(pageURL string) (*Pipeline, error)

// BatchProcessor mirrors several pages concurrently.
type BatchProcessor struct {
	factory     Factory
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets the batch-level logger.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets how many pages are mirrored at once. Default is 1.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor. factory is called once per URL.
func NewBatchProcessor(factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch mirrors every URL and returns one report per URL in input
// order. A failed page never stops the others; its report carries the error.
// The returned error is non-nil only when ctx was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, urls []string) ([]*model.MirrorReport, error) {
	results := make([]*model.MirrorReport, len(urls))
	err := bp.ProcessBatchWithCallback(ctx, urls, func(report *model.MirrorReport, index int) {
		results[index] = report
	})
	return results, err
}

// ProcessBatchWithCallback mirrors every URL and calls callback as each run
// finishes. callback is invoked from worker goroutines.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	urls []string,
	callback func(report *model.MirrorReport, index int),
) error {
	bp.logger.Debug("starting batch",
		"total_urls", len(urls),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, pageURL := range urls {
		g.Go(func() error {
			report := model.NewMirrorReport(pageURL)

			if ctx.Err() != nil {
				report.TimedOut = true
				_ = report.Fail(ctx.Err())
				callback(report, i)
				return nil
			}

			p, err := bp.factory(pageURL)
			if err != nil {
				_ = report.Fail(err)
				callback(report, i)
				return nil
			}

			if err := p.Execute(ctx, report); err != nil {
				bp.logger.Warn("mirror failed", "url", pageURL, "error", err)
			}
			callback(report, i)
			return nil
		})
	}
	_ = g.Wait()

	bp.logger.Debug("batch complete",
		"total_urls", len(urls),
		"elapsed", time.Since(startTime),
	)
	return ctx.Err()
}
