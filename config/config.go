package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds scraper configuration.
type Config struct {
	BaseURL          string
	LandingPath      string
	SearchPathSuffix string
	Timeout          time.Duration
	UserAgent        string
	RespectRobotsTxt bool
	RetryCooldown    time.Duration
	SearchCooldown   time.Duration
	ClearOnSearch    bool
	OutputFile       string
	OutputFormat     string // csv, json, or dual
	BatchSize        int
	DedupeMaxSize    int
	MetricsAddr      string
	Verbose          bool
}

// DefaultConfig returns defaults for psdeals.net.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          "https://psdeals.net",
		LandingPath:      "/us-store",
		SearchPathSuffix: "-store/search",
		Timeout:          10 * time.Second,
		UserAgent:        "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		RespectRobotsTxt: false,
		RetryCooldown:    500 * time.Millisecond,
		SearchCooldown:   400 * time.Millisecond,
		ClearOnSearch:    false,
		OutputFile:       "output/games.csv",
		OutputFormat:     "csv",
		BatchSize:        64,
		DedupeMaxSize:    10000,
		MetricsAddr:      "",
		Verbose:          false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if !strings.HasPrefix(c.LandingPath, "/") {
		return fmt.Errorf("landing path must start with /")
	}
	if c.SearchPathSuffix == "" {
		return fmt.Errorf("search path suffix cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.RetryCooldown < 0 {
		return fmt.Errorf("retry cooldown cannot be negative")
	}
	if c.SearchCooldown < 0 {
		return fmt.Errorf("search cooldown cannot be negative")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// LandingURL is the page listing the store regions.
func (c *Config) LandingURL() string {
	return strings.TrimSuffix(c.BaseURL, "/") + c.LandingPath
}

// SearchURL builds the region-specific search endpoint, e.g.
// https://psdeals.net/gb-store/search for locale "gb".
func (c *Config) SearchURL(locale string) string {
	return strings.TrimSuffix(c.BaseURL, "/") + "/" + locale + c.SearchPathSuffix
}

// DetailURL resolves a detail link from a search result against the base URL.
// Absolute links are returned unchanged.
func (c *Config) DetailURL(link string) (string, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", fmt.Errorf("parse detail link %q: %w", link, err)
	}
	return base.ResolveReference(ref).String(), nil
}
