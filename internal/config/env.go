package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of every environment variable read by LoadEnv.
const EnvPrefix = "WEBMIRROR"

// Env mirrors the subset of Config that may be set from the environment.
// Unset variables leave the zero value, which ApplyEnv ignores.
type Env struct {
	Workers   int           `envconfig:"WORKERS"`
	Timeout   time.Duration `envconfig:"TIMEOUT"`
	RateLimit float64       `envconfig:"RATE_LIMIT"`
	RateBurst int           `envconfig:"RATE_BURST"`
	UserAgent string        `envconfig:"USER_AGENT"`
	OutputDir string        `envconfig:"OUTPUT_DIR"`
	Proxy     string        `envconfig:"PROXY"`
}

// LoadEnv reads WEBMIRROR_* variables into an Env. When envFile is non-empty it
// is loaded first with godotenv; a missing file is not an error. Variables
// already present in the process environment take precedence over the file.
func LoadEnv(envFile string) (*Env, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	var env Env
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return &env, nil
}

// ApplyEnv copies every non-zero value of env onto c.
func (c *Config) ApplyEnv(env *Env) {
	if env == nil {
		return
	}
	if env.Workers != 0 {
		c.Workers = env.Workers
	}
	if env.Timeout != 0 {
		c.Timeout = env.Timeout
	}
	if env.RateLimit != 0 {
		c.RateLimit = env.RateLimit
	}
	if env.RateBurst != 0 {
		c.RateBurst = env.RateBurst
	}
	if env.UserAgent != "" {
		c.UserAgent = env.UserAgent
	}
	if env.OutputDir != "" {
		c.OutputDir = env.OutputDir
	}
	if env.Proxy != "" {
		c.ProxyURL = env.Proxy
	}
}
