// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "bibcomplete/0.1 (mailto:ops@example.org)").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// CompleteConfig holds settings for the completion stage.
type CompleteConfig struct {
	HTTPConfig `yaml:",inline"`

	// RequestDelay is the minimum spacing between live fetches against
	// publisher and registry APIs (default 500ms).
	RequestDelay time.Duration `json:"request_delay" yaml:"request_delay"`

	// CachedDelay is the shorter delay applied after a cache hit (default 200ms).
	CachedDelay time.Duration `json:"cached_delay" yaml:"cached_delay"`

	// SearchDelay is the minimum spacing between search-engine fetches,
	// which tolerate far less traffic than registry APIs (default 2s).
	SearchDelay time.Duration `json:"search_delay" yaml:"search_delay"`

	// Workers is the number of entries processed concurrently (default 1).
	Workers int `json:"workers" yaml:"workers"`

	// Preflight enables the doi.org existence check before the fetch chain.
	Preflight bool `json:"preflight" yaml:"preflight"`

	// TryInvalid runs the fetch chain even when the pre-flight check fails.
	TryInvalid bool `json:"try_invalid" yaml:"try_invalid"`

	// ReplacePreprints looks up formally published versions of arXiv
	// preprints and replaces the preprint record when one is found.
	ReplacePreprints bool `json:"replace_preprints" yaml:"replace_preprints"`

	// CombineSources fetches every eligible adapter and merges the best
	// value per field instead of stopping at the first accepted record.
	CombineSources bool `json:"combine_sources" yaml:"combine_sources"`

	// CachePath is the SQLite content cache location.
	CachePath string `json:"cache_path" yaml:"cache_path"`

	// CacheMaxAge is the age after which cached records expire (default 30 days).
	CacheMaxAge time.Duration `json:"cache_max_age" yaml:"cache_max_age"`

	// DataDir holds the failure log and the DOI corrections table.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits
	// on published-version lookups.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty"`
}

// ReportConfig holds settings for the change report.
type ReportConfig struct {
	// Path is the Markdown report output location. Empty disables the report.
	Path string `json:"path" yaml:"path"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Complete CompleteConfig `json:"complete" yaml:"complete"`
	Report   ReportConfig   `json:"report" yaml:"report"`
}
