package download

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/sha3"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/webmirror/internal/model"
)

// DefaultWorkers is the size of the download pool.
const DefaultWorkers = 10

// Getter fetches a single URL. *fetcher.Fetcher implements it.
type Getter interface {
	Fetch(ctx context.Context, rawURL string, timeout time.Duration) *model.PageFetchResult
}

// Coordinator downloads planned resources into a mirror directory.
//
// Lifecycle: a Coordinator is created per mirror run, DownloadAll is called
// once with every planned resource, and the RenameMap is read afterwards by
// the rewrite stage. Nothing is rewritten until DownloadAll returns, so the
// map is complete before the first reference is touched.
//
// Design decision: downloads run on an errgroup bounded by the worker
// count, and each absolute URL is fetched at most once. A worker records
// its outcome in the returned records instead of returning an error, so a
// failed resource never cancels its siblings.
//
// Note: only successful downloads enter the RenameMap, under both the raw
// attribute value and the absolute URL of every reference sharing that URL.
type Coordinator struct {
	getter  Getter
	root    string
	workers int
	timeout time.Duration
	renames *RenameMap
	logger  *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithWorkers sets the number of concurrent downloads. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithTimeout sets the per-resource request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = d
	}
}

// WithRenameMap sets the map successful downloads are recorded in.
func WithRenameMap(m *RenameMap) Option {
	return func(c *Coordinator) {
		c.renames = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// NewCoordinator creates a coordinator writing under root.
func NewCoordinator(getter Getter, root string, opts ...Option) *Coordinator {
	c := &Coordinator{
		getter:  getter,
		root:    root,
		workers: DefaultWorkers,
		timeout: 10 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.renames == nil {
		c.renames = NewRenameMap()
	}
	return c
}

// RenameMap returns the map filled by DownloadAll.
func (c *Coordinator) RenameMap() *RenameMap {
	return c.renames
}

// job is one unique URL and every planned resource that points at it.
type job struct {
	planned []model.PlannedResource
	record  model.DownloadRecord
}

// DownloadAll downloads every planned resource and returns one record per
// element of planned, in the same order. Resources sharing an absolute URL
// are fetched once. The call blocks until all downloads have finished.
func (c *Coordinator) DownloadAll(ctx context.Context, planned []model.PlannedResource) []model.DownloadRecord {
	jobs := make([]*job, 0, len(planned))
	index := make(map[string]*job, len(planned))
	owner := make([]*job, len(planned))
	for i, p := range planned {
		j, ok := index[p.AbsoluteURL]
		if !ok {
			j = &job{}
			index[p.AbsoluteURL] = j
			jobs = append(jobs, j)
		}
		j.planned = append(j.planned, p)
		owner[i] = j
	}

	c.logger.Debug("starting downloads",
		"resources", len(planned),
		"unique", len(jobs),
		"workers", c.workers,
	)

	// Workers never return an error so one failure cannot cancel the rest.
	var g errgroup.Group
	g.SetLimit(c.workers)
	for _, j := range jobs {
		g.Go(func() error {
			j.record = c.download(ctx, j.planned[0])
			if j.record.Success {
				for _, p := range j.planned {
					c.renames.Set(p.Reference.RawURL, p.LocalPath)
					c.renames.Set(p.AbsoluteURL, p.LocalPath)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	records := make([]model.DownloadRecord, len(planned))
	for i, p := range planned {
		r := owner[i].record
		r.Planned = p
		records[i] = r
	}
	return records
}

// download fetches one resource and writes it to disk.
func (c *Coordinator) download(ctx context.Context, p model.PlannedResource) model.DownloadRecord {
	record := model.DownloadRecord{Planned: p}

	result := c.getter.Fetch(ctx, p.AbsoluteURL, c.timeout)
	if !result.OK() {
		var cause error
		if result != nil {
			cause = result.Err
		}
		c.logger.Warn("download failed", "url", p.AbsoluteURL, "error", cause)
		return failed(record, cause)
	}
	record.ContentType = result.ContentType

	if err := c.write(p.LocalPath, result.Body); err != nil {
		c.logger.Warn("failed to save resource", "url", p.AbsoluteURL, "error", err)
		return failed(record, err)
	}

	sum := sha3.Sum256(result.Body)
	record.Success = true
	record.BytesWritten = int64(len(result.Body))
	record.Digest = hex.EncodeToString(sum[:])

	c.logger.Info("downloaded resource", "url", p.AbsoluteURL, "path", p.LocalPath, "bytes", record.BytesWritten)
	return record
}

// write stores body at the mirror-relative slash path local.
func (c *Coordinator) write(local string, body []byte) error {
	rel := filepath.FromSlash(local)
	if !filepath.IsLocal(rel) {
		return &FilesystemError{Op: "write", Path: local, Err: ErrUnsafePath}
	}
	full := filepath.Join(c.root, rel)

	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return &FilesystemError{Op: "mkdir", Path: dir, Err: err}
	}
	if err := os.WriteFile(full, body, 0600); err != nil {
		return &FilesystemError{Op: "write", Path: full, Err: err}
	}
	return nil
}

func failed(record model.DownloadRecord, err error) model.DownloadRecord {
	if err == nil {
		err = fmt.Errorf("download of %s failed", record.Planned.AbsoluteURL)
	}
	record.Success = false
	record.Err = err
	record.ErrorMessage = err.Error()
	return record
}
