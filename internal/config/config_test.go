package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestNewConfig pins the defaults so changes to them are intentional.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default Workers is 10", func(t *testing.T) {
		t.Parallel()
		if cfg.Workers != 10 {
			t.Errorf("expected Workers to be 10, got %d", cfg.Workers)
		}
	})

	t.Run("default Timeout is 10 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 10*time.Second {
			t.Errorf("expected Timeout to be 10s, got %v", cfg.Timeout)
		}
	})

	t.Run("default rate is 5 per second with burst 1", func(t *testing.T) {
		t.Parallel()
		if cfg.RateLimit != 5 {
			t.Errorf("expected RateLimit 5, got %v", cfg.RateLimit)
		}
		if cfg.RateBurst != 1 {
			t.Errorf("expected RateBurst 1, got %d", cfg.RateBurst)
		}
	})

	t.Run("history is saved by default", func(t *testing.T) {
		t.Parallel()
		if !cfg.SaveToDB {
			t.Error("expected SaveToDB to be true")
		}
		if cfg.DBDir != XDGDataDir() {
			t.Errorf("expected DBDir %q, got %q", XDGDataDir(), cfg.DBDir)
		}
	})

	t.Run("output directory is set", func(t *testing.T) {
		t.Parallel()
		if cfg.OutputDir == "" {
			t.Error("expected non-empty OutputDir")
		}
	})

	t.Run("site configs are initialized", func(t *testing.T) {
		t.Parallel()
		if cfg.SiteConfigs == nil || cfg.SiteConfigs.Sites == nil {
			t.Error("expected initialized SiteConfigs")
		}
	})
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		cfg := NewConfig()
		cfg.Targets = []string{"https://example.com/"}
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{"valid configuration", func(*Config) {}, nil},
		{"no targets", func(c *Config) { c.Targets = nil }, ErrNoTarget},
		{"relative target", func(c *Config) { c.Targets = []string{"/index.html"} }, ErrInvalidURL},
		{"ftp target", func(c *Config) { c.Targets = []string{"ftp://example.com/"} }, ErrInvalidURL},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"zero workers", func(c *Config) { c.Workers = 0 }, ErrInvalidWorkers},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, ErrInvalidBatchSize},
		{"zero rate", func(c *Config) { c.RateLimit = 0 }, ErrInvalidRateLimit},
		{"zero burst", func(c *Config) { c.RateBurst = 0 }, ErrInvalidRateBurst},
		{"negative body size", func(c *Config) { c.MaxBodySize = -1 }, ErrInvalidMaxBodySize},
		{"json and markdown", func(c *Config) { c.JSONReport = true; c.MarkdownReport = true }, ErrConflictingReportFormats},
		{"proxy and tor", func(c *Config) { c.ProxyURL = "socks5://127.0.0.1:9050"; c.UseTor = true }, ErrConflictingTransports},
		{"bad proxy scheme", func(c *Config) { c.ProxyURL = "ftp://127.0.0.1:21" }, ErrInvalidProxy},
		{"socks5 proxy", func(c *Config) { c.ProxyURL = "socks5://127.0.0.1:1080" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEffectiveMaxBodySize(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.MaxBodySize = 0
	if cfg.EffectiveMaxBodySize() != DefaultMaxBodySize {
		t.Errorf("expected default body size, got %d", cfg.EffectiveMaxBodySize())
	}
	cfg.MaxBodySize = 1024
	if cfg.EffectiveMaxBodySize() != 1024 {
		t.Errorf("expected 1024, got %d", cfg.EffectiveMaxBodySize())
	}
}

func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	cf := &File{
		Defaults: SiteConfig{
			UserAgent: "default-agent",
			Headers:   map[string]string{"Accept-Language": "en"},
		},
		Sites: map[string]SiteConfig{
			"Example.com": {
				Cookie:         "session=abc",
				Headers:        map[string]string{"Authorization": "Bearer x"},
				RateLimit:      2,
				IgnorePatterns: []string{"/ads/*"},
			},
		},
	}

	t.Run("returns defaults for unknown host", func(t *testing.T) {
		t.Parallel()
		sc := cf.GetSiteConfig("other.test")
		if sc.UserAgent != "default-agent" {
			t.Errorf("expected default user agent, got %q", sc.UserAgent)
		}
		if sc.Cookie != "" {
			t.Errorf("expected no cookie, got %q", sc.Cookie)
		}
	})

	t.Run("merges site overrides case-insensitively", func(t *testing.T) {
		t.Parallel()
		sc := cf.GetSiteConfig("example.com")
		if sc.Cookie != "session=abc" {
			t.Errorf("expected cookie, got %q", sc.Cookie)
		}
		if sc.RateLimit != 2 {
			t.Errorf("expected rate 2, got %v", sc.RateLimit)
		}
		if sc.Headers["Accept-Language"] != "en" || sc.Headers["Authorization"] != "Bearer x" {
			t.Errorf("expected merged headers, got %v", sc.Headers)
		}
		if sc.UserAgent != "default-agent" {
			t.Errorf("expected default user agent to survive, got %q", sc.UserAgent)
		}
	})

	t.Run("host with port falls back to hostname", func(t *testing.T) {
		t.Parallel()
		sc := cf.GetSiteConfig("example.com:8443")
		if sc.Cookie != "session=abc" {
			t.Errorf("expected cookie via hostname fallback, got %q", sc.Cookie)
		}
	})

	t.Run("merging does not mutate defaults", func(t *testing.T) {
		t.Parallel()
		_ = cf.GetSiteConfig("example.com")
		if _, ok := cf.Defaults.Headers["Authorization"]; ok {
			t.Error("expected defaults to stay untouched")
		}
	})

	t.Run("nil file returns zero config", func(t *testing.T) {
		t.Parallel()
		var nilFile *File
		sc := nilFile.GetSiteConfig("example.com")
		if sc.Cookie != "" || len(sc.Headers) != 0 {
			t.Errorf("expected zero config, got %+v", sc)
		}
	})
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("loads sites and defaults", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `defaults:
  userAgent: test-agent
sites:
  example.com:
    cookie: "a=b"
    rateLimit: 1.5
    ignorePatterns:
      - "/tracking/*"
`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cf.Defaults.UserAgent != "test-agent" {
			t.Errorf("expected test-agent, got %q", cf.Defaults.UserAgent)
		}
		site := cf.Sites["example.com"]
		if site.Cookie != "a=b" || site.RateLimit != 1.5 {
			t.Errorf("unexpected site config: %+v", site)
		}
		if len(site.IgnorePatterns) != 1 || site.IgnorePatterns[0] != "/tracking/*" {
			t.Errorf("unexpected ignore patterns: %v", site.IgnorePatterns)
		}
	})

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("empty file initializes sites", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "empty.yaml")
		if err := os.WriteFile(path, nil, 0600); err != nil {
			t.Fatal(err)
		}
		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cf.Sites == nil {
			t.Error("expected non-nil Sites")
		}
	})

	t.Run("invalid yaml is an error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("sites: [unclosed"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("negative site rate is rejected", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "rate.yaml")
		if err := os.WriteFile(path, []byte("sites:\n  example.com:\n    rateLimit: -1\n"), 0600); err != nil {
			t.Fatal(err)
		}
		_, err := LoadConfigFile(path)
		if !errors.Is(err, ErrInvalidRateLimit) {
			t.Errorf("expected ErrInvalidRateLimit, got %v", err)
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit existing path is returned", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte("sites: {}\n"), 0600); err != nil {
			t.Fatal(err)
		}
		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
	})

	t.Run("explicit missing path returns empty", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile(filepath.Join(t.TempDir(), "nope.yaml")); got != "" {
			t.Errorf("expected empty path, got %q", got)
		}
	})
}

func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if !strings.HasSuffix(XDGDataDir(), AppName) {
		t.Errorf("expected data dir to end with %q, got %q", AppName, XDGDataDir())
	}
	if !strings.HasSuffix(XDGConfigDir(), AppName) {
		t.Errorf("expected config dir to end with %q, got %q", AppName, XDGConfigDir())
	}
}

// Environment tests mutate process state and cannot run in parallel.
func TestLoadEnv(t *testing.T) {
	t.Run("reads prefixed variables", func(t *testing.T) {
		t.Setenv("WEBMIRROR_WORKERS", "4")
		t.Setenv("WEBMIRROR_TIMEOUT", "3s")
		t.Setenv("WEBMIRROR_RATE_LIMIT", "0.5")
		t.Setenv("WEBMIRROR_PROXY", "socks5://127.0.0.1:9050")

		env, err := LoadEnv("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if env.Workers != 4 || env.Timeout != 3*time.Second || env.RateLimit != 0.5 {
			t.Errorf("unexpected env: %+v", env)
		}

		cfg := NewConfig()
		cfg.ApplyEnv(env)
		if cfg.Workers != 4 {
			t.Errorf("expected Workers 4, got %d", cfg.Workers)
		}
		if cfg.ProxyURL != "socks5://127.0.0.1:9050" {
			t.Errorf("expected proxy from env, got %q", cfg.ProxyURL)
		}
		if cfg.RateBurst != DefaultRateBurst {
			t.Errorf("expected unset burst to keep default, got %d", cfg.RateBurst)
		}
	})

	t.Run("loads dotenv file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(path, []byte("WEBMIRROR_RATE_BURST=3\n"), 0600); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = os.Unsetenv("WEBMIRROR_RATE_BURST") })

		env, err := LoadEnv(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if env.RateBurst != 3 {
			t.Errorf("expected burst 3 from dotenv, got %d", env.RateBurst)
		}
	})

	t.Run("missing dotenv file is ignored", func(t *testing.T) {
		if _, err := LoadEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("malformed value is an error", func(t *testing.T) {
		t.Setenv("WEBMIRROR_WORKERS", "many")
		if _, err := LoadEnv(""); err == nil {
			t.Error("expected error for malformed WEBMIRROR_WORKERS")
		}
	})
}
