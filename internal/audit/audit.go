// Package audit inspects mirrored images for metadata that can identify
// who took them, with what device, or where.
//
// Only JPEG, TIFF and HEIC files are read, since those are the formats that
// carry EXIF. Files are read from the mirror, so auditing never issues
// network requests.
package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	exif "github.com/dsoprea/go-exif/v3"

	"github.com/nao1215/webmirror/internal/model"
)

// DefaultMaxImageSize is the largest image that is inspected.
const DefaultMaxImageSize = 5 * 1024 * 1024

// Finding kinds.
const (
	KindGPS       = "gps"
	KindDevice    = "device"
	KindAuthor    = "author"
	KindSoftware  = "software"
	KindTimestamp = "timestamp"
)

// exifFile matches paths of formats that carry EXIF.
var exifFile = regexp.MustCompile(`(?i)\.(jpe?g|tiff?|heic)$`)

// Auditor scans mirrored images.
type Auditor struct {
	maxImageSize int64
	logger       *slog.Logger
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithMaxImageSize sets the size limit for inspected images.
func WithMaxImageSize(n int64) Option {
	return func(a *Auditor) {
		if n > 0 {
			a.maxImageSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Auditor) {
		a.logger = logger
	}
}

// New creates an Auditor.
func New(opts ...Option) *Auditor {
	a := &Auditor{
		maxImageSize: DefaultMaxImageSize,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Supported reports whether the file at local is inspected.
func Supported(local string) bool {
	return exifFile.MatchString(local)
}

// Audit inspects the images at the given mirror-relative paths under root.
// Unsupported formats and oversized files are skipped. Unreadable files are
// logged and skipped.
func (a *Auditor) Audit(ctx context.Context, root string, paths []string) ([]model.ImageFinding, error) {
	findings := make([]model.ImageFinding, 0)
	seen := make(map[string]bool, len(paths))

	for _, local := range paths {
		select {
		case <-ctx.Done():
			return findings, ctx.Err()
		default:
		}

		if seen[local] || !Supported(local) {
			continue
		}
		seen[local] = true

		data, err := a.readImage(filepath.Join(root, filepath.FromSlash(local)))
		if err != nil {
			a.logger.Debug("skipping image", "path", local, "error", err)
			continue
		}
		findings = append(findings, Inspect(data, local)...)
	}
	return findings, nil
}

func (a *Auditor) readImage(path string) ([]byte, error) {
	f, err := os.Open(path) //nolint:gosec // path is a planned mirror path
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() > a.maxImageSize {
		return nil, fmt.Errorf("image is %d bytes, limit is %d", info.Size(), a.maxImageSize)
	}
	return io.ReadAll(io.LimitReader(f, a.maxImageSize))
}

// Inspect extracts identifying EXIF tags from image bytes. Images without
// EXIF produce no findings.
func Inspect(data []byte, local string) []model.ImageFinding {
	findings := make([]model.ImageFinding, 0)

	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil || rawExif == nil {
		return findings
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return findings
	}

	for _, entry := range entries {
		kind := Classify(entry.TagName)
		if kind == "" {
			continue
		}
		findings = append(findings, model.ImageFinding{
			LocalPath: local,
			Kind:      kind,
			Tag:       entry.TagName,
			Value:     entry.Formatted,
		})
	}
	return findings
}

// Classify returns the finding kind for an EXIF tag name, or "" when the
// tag is not identifying.
func Classify(tag string) string {
	switch tag {
	case "GPSLatitude", "GPSLongitude", "GPSLatitudeRef", "GPSLongitudeRef":
		return KindGPS
	case "Make", "Model", "HostComputer",
		"SerialNumber", "CameraSerialNumber", "BodySerialNumber", "LensSerialNumber":
		return KindDevice
	case "Artist", "Author", "Copyright", "XPAuthor":
		return KindAuthor
	case "Software", "ProcessingSoftware":
		return KindSoftware
	case "DateTimeOriginal", "DateTimeDigitized", "DateTime":
		return KindTimestamp
	default:
		return ""
	}
}
