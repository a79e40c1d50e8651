// Package config loads the Options a Client is configured with from a
// YAML file, applying defaults before the file's values are unmarshaled
// over them. Grounded on the haivivi-giztoy pack's pkg/cli/config.go: a
// plain struct with yaml tags, read with github.com/goccy/go-yaml,
// os.ReadFile confined to Load (package jsonld's LoadContextFile is the
// only other file read in the module).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// Options configures a Client: which JSON-LD context to expand terms
// against, where the SPARQL endpoint lives, and how the pipeline's
// ambient behaviors (timeouts, retries, caching, validation) are tuned.
type Options struct {
	// ContextPath is the path to a JSON-LD context document (loaded via
	// jsonld.LoadContextFile) used to resolve GraphQL field names to IRIs.
	ContextPath string `yaml:"context"`

	QueryEndpointURL  string `yaml:"query_endpoint_url"`
	UpdateEndpointURL string `yaml:"update_endpoint_url"`

	TimeoutMs    int  `yaml:"timeout_ms"`
	MaxResults   int  `yaml:"max_results"`
	ValidateQuery bool `yaml:"validate_query"`

	CacheEnabled    bool `yaml:"cache_enabled"`
	CacheMaxEntries int  `yaml:"cache_max_entries"`
	CacheTTLMs      int  `yaml:"cache_ttl_ms"`

	RetryAttempts int `yaml:"retry_attempts"`
	RetryDelayMs  int `yaml:"retry_delay_ms"`

	Debug bool `yaml:"debug"`
}

// Defaults returns the Options defaults applied before a config file's
// values are overlaid: 30s timeout, 1000 max results, validation and
// caching on, a 1000-entry / 5 minute cache, 3 retries at 1s apart.
func Defaults() Options {
	return Options{
		TimeoutMs:       30000,
		MaxResults:      1000,
		ValidateQuery:   true,
		CacheEnabled:    true,
		CacheMaxEntries: 1000,
		CacheTTLMs:      300000,
		RetryAttempts:   3,
		RetryDelayMs:    1000,
	}
}

// Timeout returns TimeoutMs as a time.Duration.
func (o Options) Timeout() time.Duration {
	return time.Duration(o.TimeoutMs) * time.Millisecond
}

// CacheTTL returns CacheTTLMs as a time.Duration.
func (o Options) CacheTTL() time.Duration {
	return time.Duration(o.CacheTTLMs) * time.Millisecond
}

// RetryDelay returns RetryDelayMs as a time.Duration.
func (o Options) RetryDelay() time.Duration {
	return time.Duration(o.RetryDelayMs) * time.Millisecond
}

// Load reads a YAML config file at path and overlays it onto Defaults.
func Load(path string) (Options, error) {
	opts := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	return opts, nil
}

// LoadBytes overlays raw YAML content onto Defaults; used by callers that
// already have the document in memory (embedded config, tests).
func LoadBytes(data []byte) (Options, error) {
	opts := Defaults()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("parse config: %w", err)
	}
	return opts, nil
}
