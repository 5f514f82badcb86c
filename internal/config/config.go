package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "webmirror"

	// DefaultWorkers is the size of the download worker pool.
	DefaultWorkers = 10

	// DefaultTimeout applies to each individual request.
	DefaultTimeout = 10 * time.Second

	// DefaultRateLimit is the sustained request rate per host in requests per second.
	DefaultRateLimit = 5.0

	// DefaultRateBurst is the number of requests allowed at once before throttling.
	DefaultRateBurst = 1

	// DefaultBatchSize is the number of pages mirrored concurrently when
	// several URLs are given.
	DefaultBatchSize = 1

	// DefaultMaxBodySize caps the bytes read from any single response.
	DefaultMaxBodySize = 50 * 1024 * 1024 // 50MB

	// DefaultUserAgent identifies webmirror in HTTP requests.
	DefaultUserAgent = "webmirror/1.0 (+https://github.com/nao1215/webmirror)"

	// DefaultRenderWait is how long a rendered page is given to settle
	// before its DOM is captured.
	DefaultRenderWait = 2 * time.Second

	// DefaultTorStartupTimeout bounds embedded Tor bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Config holds all configuration options for webmirror.
// It is populated from defaults, the environment and CLI flags, in that order,
// and passed down explicitly.
type Config struct {
	// Targets are the page URLs to mirror.
	Targets []string

	// OutputDir is the directory under which mirror directories are created.
	OutputDir string

	// Workers is the number of concurrent resource downloads per page.
	Workers int

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// RateLimit is the request rate per host in requests per second.
	RateLimit float64

	// RateBurst is the token bucket size of the rate limiter.
	RateBurst int

	// BatchSize is the number of pages mirrored concurrently.
	BatchSize int

	// MaxBodySize is the maximum number of bytes read from one response.
	// Zero means DefaultMaxBodySize.
	MaxBodySize int64

	// UserAgent is sent with every request unless a site overrides it.
	UserAgent string

	// ConfigFilePath is the explicit site configuration file, if any.
	ConfigFilePath string

	// SiteConfigs holds per-host settings loaded from the configuration file.
	SiteConfigs *File

	// EnvFile is an optional dotenv file loaded before reading the environment.
	EnvFile string

	// JSONReport selects JSON report output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown report output.
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// ProxyURL routes all requests through a proxy (socks5://, socks5h://, http://, https://).
	ProxyURL string

	// UseTor starts an embedded Tor daemon and routes all requests through it.
	UseTor bool

	// TorStartupTimeout bounds embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// Render fetches the page through headless Chrome.
	Render bool

	// RenderWait is the settle time for rendered pages.
	RenderWait time.Duration

	// AuditImages inspects downloaded images for identifying EXIF metadata.
	AuditImages bool

	// SaveToDB stores each run in the history database.
	SaveToDB bool

	// DBDir is the directory of the history database.
	DBDir string

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches log output to JSON.
	LogJSON bool
}

// NewConfig creates a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		OutputDir:         DefaultOutputDir(),
		Workers:           DefaultWorkers,
		Timeout:           DefaultTimeout,
		RateLimit:         DefaultRateLimit,
		RateBurst:         DefaultRateBurst,
		BatchSize:         DefaultBatchSize,
		MaxBodySize:       DefaultMaxBodySize,
		UserAgent:         DefaultUserAgent,
		RenderWait:        DefaultRenderWait,
		TorStartupTimeout: DefaultTorStartupTimeout,
		SaveToDB:          true,
		DBDir:             XDGDataDir(),
		SiteConfigs:       &File{Sites: make(map[string]SiteConfig)},
	}
}

// DefaultOutputDir returns the user's download directory, falling back to
// ~/Downloads and finally the current directory.
func DefaultOutputDir() string {
	if xdg.UserDirs.Download != "" {
		return xdg.UserDirs.Download
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Downloads")
	}
	return "."
}

// XDGDataDir returns the XDG data directory for webmirror.
// On Linux: ~/.local/share/webmirror
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for webmirror.
// On Linux: ~/.config/webmirror
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// EffectiveMaxBodySize returns MaxBodySize, or the default when unset.
func (c *Config) EffectiveMaxBodySize() int64 {
	if c.MaxBodySize <= 0 {
		return DefaultMaxBodySize
	}
	return c.MaxBodySize
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	for _, target := range c.Targets {
		if err := ValidateTargetURL(target); err != nil {
			return err
		}
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.RateLimit <= 0 {
		return ErrInvalidRateLimit
	}

	if c.RateBurst <= 0 {
		return ErrInvalidRateBurst
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.ProxyURL != "" && c.UseTor {
		return ErrConflictingTransports
	}

	if c.ProxyURL != "" {
		if err := validateProxyURL(c.ProxyURL); err != nil {
			return err
		}
	}

	return nil
}

// ValidateTargetURL checks that target is an absolute http or https URL with a host.
func ValidateTargetURL(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidURL, target, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: %s: scheme must be http or https", ErrInvalidURL, target)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: %s: missing host", ErrInvalidURL, target)
	}
	return nil
}

func validateProxyURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProxy, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "socks5", "socks5h", "http", "https":
	default:
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidProxy, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidProxy)
	}
	return nil
}
