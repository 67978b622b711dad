package schemaguard

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"slices"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxSchemaSizeBytes = 1 << 20
	DefaultMaxRecursionDepth  = 100
	DefaultMaxPatternLength   = 500
)

// DefaultDenyPatterns are matched against keys, string values and
// identifiers during the security stage.
var DefaultDenyPatterns = []string{"eval", "exec", "__proto__", "constructor", "prototype"}

// ValidationConfig is the immutable configuration of an engine.
type ValidationConfig struct {
	FailFast           bool     `json:"fail_fast" yaml:"fail_fast"`
	IncludeWarnings    bool     `json:"include_warnings" yaml:"include_warnings"`
	MaxSchemaSizeBytes int      `json:"max_schema_size_bytes" yaml:"max_schema_size_bytes"`
	MaxRecursionDepth  int      `json:"max_recursion_depth" yaml:"max_recursion_depth"`
	MaxPatternLength   int      `json:"max_pattern_length" yaml:"max_pattern_length"`
	EnabledStages      []Stage  `json:"enabled_stages" yaml:"enabled_stages"`
	DenyPatterns       []string `json:"deny_patterns" yaml:"deny_patterns"`
}

// DefaultConfig returns the defaults: collect mode, warnings included,
// 1 MiB size limit, depth 100, every stage enabled.
func DefaultConfig() ValidationConfig {
	return ValidationConfig{
		IncludeWarnings:    true,
		MaxSchemaSizeBytes: DefaultMaxSchemaSizeBytes,
		MaxRecursionDepth:  DefaultMaxRecursionDepth,
		MaxPatternLength:   DefaultMaxPatternLength,
		EnabledStages:      AllStages(),
		DenyPatterns:       slices.Clone(DefaultDenyPatterns),
	}
}

// Validate checks the configuration and returns a *ConfigurationError for
// the first invalid field.
func (c ValidationConfig) Validate() error {
	if c.MaxSchemaSizeBytes <= 0 {
		return &ConfigurationError{Field: "max_schema_size_bytes", Reason: "must be positive"}
	}
	if c.MaxRecursionDepth <= 0 {
		return &ConfigurationError{Field: "max_recursion_depth", Reason: "must be positive"}
	}
	if c.MaxPatternLength <= 0 {
		return &ConfigurationError{Field: "max_pattern_length", Reason: "must be positive"}
	}
	if len(c.EnabledStages) == 0 {
		return &ConfigurationError{Field: "enabled_stages", Reason: "at least one stage is required"}
	}
	for _, s := range c.EnabledStages {
		if s < StageStructural || s > StageCustom {
			return &ConfigurationError{Field: "enabled_stages", Reason: "unknown stage " + s.String()}
		}
	}
	for _, p := range c.DenyPatterns {
		if p == "" {
			return &ConfigurationError{Field: "deny_patterns", Reason: "empty pattern"}
		}
	}
	return nil
}

// StageEnabled reports whether s runs under this configuration.
func (c ValidationConfig) StageEnabled(s Stage) bool {
	return slices.Contains(c.EnabledStages, s)
}

// Clone returns a deep copy.
func (c ValidationConfig) Clone() ValidationConfig {
	c.EnabledStages = slices.Clone(c.EnabledStages)
	c.DenyPatterns = slices.Clone(c.DenyPatterns)
	return c
}

// Hash returns a stable digest of the configuration, suitable as part of a
// cache key. Stage order does not affect the hash.
func (c ValidationConfig) Hash() string {
	n := c.Clone()
	slices.Sort(n.EnabledStages)
	n.EnabledStages = slices.Compact(n.EnabledStages)
	b, err := json.Marshal(n)
	if err != nil {
		// only reachable with a broken Stage marshaller
		panic(err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// LoadConfigYAML overlays the YAML document in data onto DefaultConfig and
// validates the result. Unknown keys are rejected.
func LoadConfigYAML(data []byte) (ValidationConfig, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return ValidationConfig{}, &ConfigurationError{Field: "yaml", Reason: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return ValidationConfig{}, err
	}
	return cfg, nil
}

// CacheKey derives the memoization key for a validate call. Validation is
// deterministic for a given (content, format, config).
func CacheKey(contentHash string, format SchemaFormat, cfg ValidationConfig) string {
	return contentHash + ":" + format.String() + ":" + cfg.Hash()
}
