// Package config loads docwire client settings from a YAML file and the
// environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config selects the backend and tunes the client.
//
// Exactly one backend is used: a remote Data API (Endpoint and Keyspace) or
// a local SQLite database (DB).
type Config struct {
	Endpoint   string            `yaml:"endpoint"`
	Keyspace   string            `yaml:"keyspace"`
	APIPath    string            `yaml:"api_path"`
	APIVersion string            `yaml:"api_version"`
	Headers    map[string]string `yaml:"headers"`

	DB string `yaml:"db"`

	// Mode is "collection" or "table" and picks the wire conventions.
	Mode          string `yaml:"mode"`
	BinaryVectors bool   `yaml:"binary_vectors"`

	Gzip      bool    `yaml:"gzip"`
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`

	RequestTimeout time.Duration `yaml:"request_timeout"`
	MethodTimeout  time.Duration `yaml:"method_timeout"`

	ChunkSize       int `yaml:"chunk_size"`
	Concurrency     int `yaml:"concurrency"`
	BulkConcurrency int `yaml:"bulk_concurrency"`
}

// Modes accepted in Config.Mode.
const (
	ModeCollection = "collection"
	ModeTable      = "table"
)

// Default returns the settings used when nothing else is given.
func Default() Config {
	return Config{
		APIPath:         "api/json",
		APIVersion:      "v1",
		Mode:            ModeCollection,
		RateBurst:       1,
		RequestTimeout:  30 * time.Second,
		ChunkSize:       50,
		Concurrency:     20,
		BulkConcurrency: 10,
	}
}

// Load is Read followed by Validate.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Read decodes path over the defaults and applies DOCWIRE_* environment
// overrides, without validating. An empty path skips the file. Callers
// that layer command-line flags on top validate afterwards.
func Read(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
// Empty string variables are treated as unset.
//
//	DOCWIRE_ENDPOINT, DOCWIRE_KEYSPACE, DOCWIRE_DB, DOCWIRE_MODE
//	DOCWIRE_TOKEN_HEADER   "Name: value", added to Headers
//	DOCWIRE_REQUEST_TIMEOUT, DOCWIRE_METHOD_TIMEOUT   Go durations
//	DOCWIRE_CHUNK_SIZE, DOCWIRE_CONCURRENCY           integers
//	DOCWIRE_GZIP                                      boolean
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"DOCWIRE_ENDPOINT": &c.Endpoint,
		"DOCWIRE_KEYSPACE": &c.Keyspace,
		"DOCWIRE_DB":       &c.DB,
		"DOCWIRE_MODE":     &c.Mode,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("DOCWIRE_TOKEN_HEADER"); ok {
		name, value, found := strings.Cut(v, ":")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			return fmt.Errorf("DOCWIRE_TOKEN_HEADER: want \"Name: value\", got %q", v)
		}
		if c.Headers == nil {
			c.Headers = map[string]string{}
		}
		c.Headers[name] = strings.TrimSpace(value)
	}

	durations := map[string]*time.Duration{
		"DOCWIRE_REQUEST_TIMEOUT": &c.RequestTimeout,
		"DOCWIRE_METHOD_TIMEOUT":  &c.MethodTimeout,
	}
	for name, dst := range durations {
		if v, ok := lookup(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = d
		}
	}

	ints := map[string]*int{
		"DOCWIRE_CHUNK_SIZE":  &c.ChunkSize,
		"DOCWIRE_CONCURRENCY": &c.Concurrency,
	}
	for name, dst := range ints {
		if v, ok := lookup(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = n
		}
	}

	if v, ok := lookup("DOCWIRE_GZIP"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DOCWIRE_GZIP: %w", err)
		}
		c.Gzip = b
	}
	return nil
}

// Validate checks that the settings are usable.
func (c Config) Validate() error {
	var errs []error
	switch {
	case c.Endpoint == "" && c.DB == "":
		errs = append(errs, errors.New("one of endpoint or db is required"))
	case c.Endpoint != "" && c.DB != "":
		errs = append(errs, errors.New("endpoint and db are mutually exclusive"))
	case c.Endpoint != "" && c.Keyspace == "":
		errs = append(errs, errors.New("keyspace is required with endpoint"))
	}
	if c.Mode != ModeCollection && c.Mode != ModeTable {
		errs = append(errs, fmt.Errorf("mode must be %q or %q, got %q", ModeCollection, ModeTable, c.Mode))
	}
	if c.ChunkSize < 1 || c.ChunkSize > 100 {
		errs = append(errs, fmt.Errorf("chunk_size must be in [1, 100], got %d", c.ChunkSize))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be positive, got %d", c.Concurrency))
	}
	if c.BulkConcurrency < 1 {
		errs = append(errs, fmt.Errorf("bulk_concurrency must be positive, got %d", c.BulkConcurrency))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate_limit must not be negative, got %v", c.RateLimit))
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("rate_burst must be positive with rate_limit, got %d", c.RateBurst))
	}
	if c.RequestTimeout < 0 || c.MethodTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	return errors.Join(errs...)
}
