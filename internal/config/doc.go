// Package config provides configuration structures and utilities for webmirror.
// It defines the options for fetching, downloading, rate limiting and report
// generation, the per-site YAML configuration file and the environment overlay.
package config
