package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config describes the application level configuration loaded from json or yaml.
type Config struct {
	Library LibraryConfig `json:"library" yaml:"library"`
	Log     LogConfig     `json:"log" yaml:"log"`
	Cache   CacheConfig   `json:"cache" yaml:"cache"`
	Scraper ScraperConfig `json:"scraper" yaml:"scraper"`
	S3      S3Config      `json:"s3" yaml:"s3"`
	Serve   ServeConfig   `json:"serve" yaml:"serve"`
}

// LibraryConfig points at the EverSD volume and tunes entry handling.
type LibraryConfig struct {
	Root          string `json:"root" yaml:"root"`
	Transliterate bool   `json:"transliterate" yaml:"transliterate"`
	Lock          bool   `json:"lock" yaml:"lock"`
	Overwrite     bool   `json:"overwrite" yaml:"overwrite"`
}

type LogConfig struct {
	File    string `json:"file" yaml:"file"`
	Level   string `json:"level" yaml:"level"`
	Console bool   `json:"console" yaml:"console"`
}

// CacheConfig configures the local sqlite cache. An empty DBPath disables it.
type CacheConfig struct {
	DBPath    string `json:"db_path" yaml:"db_path"`
	ScrapeTTL int64  `json:"scrape_ttl" yaml:"scrape_ttl"`
}

type ScraperConfig struct {
	BaseURL   string `json:"base_url" yaml:"base_url"`
	UserAgent string `json:"user_agent" yaml:"user_agent"`
	Timeout   int64  `json:"timeout" yaml:"timeout"`
}

// S3Config holds the options for accessing the object store.
type S3Config struct {
	Host            string `json:"host" yaml:"host"`
	Bucket          string `json:"bucket" yaml:"bucket"`
	Region          string `json:"region" yaml:"region"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	SessionToken    string `json:"session_token" yaml:"session_token"`
	ForcePathStyle  bool   `json:"force_path_style" yaml:"force_path_style"`
	Prefix          string `json:"prefix" yaml:"prefix"`
}

type ServeConfig struct {
	Bind string `json:"bind" yaml:"bind"`
}

const (
	defaultScrapeTTL = 7 * 24 * 3600
	defaultTimeout   = 20
	defaultBind      = ":8080"
	defaultLogLevel  = "info"
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) eversd"
	defaultScraper   = "https://vimm.net"
)

// DefaultSearchPaths are tried in order after an explicitly given path.
var DefaultSearchPaths = []string{"./eversd.json", "./eversd.yaml", "/etc/eversd.json", "/etc/eversd.yaml"}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadFirst tries to load configuration from the given paths, returning the
// first successfully decoded configuration. Missing files are skipped; when
// none of the paths exist the defaults are returned.
func LoadFirst(paths ...string) (*Config, error) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		cfg, err := Load(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return Default(), nil
}

// Load reads configuration from a single file. The decoder is picked by
// extension: .yaml and .yml use yaml, anything else json.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Cache.ScrapeTTL <= 0 {
		c.Cache.ScrapeTTL = defaultScrapeTTL
	}
	if c.Scraper.BaseURL == "" {
		c.Scraper.BaseURL = defaultScraper
	}
	if c.Scraper.UserAgent == "" {
		c.Scraper.UserAgent = defaultUserAgent
	}
	if c.Scraper.Timeout <= 0 {
		c.Scraper.Timeout = defaultTimeout
	}
	if c.Serve.Bind == "" {
		c.Serve.Bind = defaultBind
	}
	c.S3.Prefix = strings.Trim(c.S3.Prefix, "/")
}

// Validate performs basic validation of the configuration.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level %q is not supported", c.Log.Level)
	}
	if !strings.HasPrefix(c.Scraper.BaseURL, "http://") && !strings.HasPrefix(c.Scraper.BaseURL, "https://") {
		return fmt.Errorf("config.scraper.base_url %q must be an http(s) url", c.Scraper.BaseURL)
	}
	return nil
}

// ValidateS3 checks the object store section. It is only required by the
// commands that talk to the bucket.
func (c *Config) ValidateS3() error {
	if c.S3.Host == "" {
		return errors.New("config.s3.host must be set")
	}
	if c.S3.Bucket == "" {
		return errors.New("config.s3.bucket must be set")
	}
	return nil
}
