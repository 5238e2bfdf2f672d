package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "VLMD_"

// Config holds runtime parameters for the service.
// Zero values mean "unspecified"; Default fills them in.
type Config struct {
	Addr       string `json:"addr" yaml:"addr" toml:"addr"`
	Backend    string `json:"backend" yaml:"backend" toml:"backend"`
	ModelDir   string `json:"model_dir" yaml:"model_dir" toml:"model_dir"`
	ModelID    string `json:"model_id" yaml:"model_id" toml:"model_id"`
	HFRepo     string `json:"hf_repo" yaml:"hf_repo" toml:"hf_repo"`
	HFRevision string `json:"hf_revision" yaml:"hf_revision" toml:"hf_revision"`
	Runtime    string `json:"runtime" yaml:"runtime" toml:"runtime"`
	ORTLibrary string `json:"ort_library" yaml:"ort_library" toml:"ort_library"`

	DefaultMaxTokens    int   `json:"default_max_tokens" yaml:"default_max_tokens" toml:"default_max_tokens"`
	StreamBuffer        int   `json:"stream_buffer" yaml:"stream_buffer" toml:"stream_buffer"`
	MaxQueueDepth       int   `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWaitSeconds      int   `json:"max_wait_seconds" yaml:"max_wait_seconds" toml:"max_wait_seconds"`
	DrainTimeoutSeconds int   `json:"drain_timeout_seconds" yaml:"drain_timeout_seconds" toml:"drain_timeout_seconds"`
	InferTimeoutSeconds int   `json:"infer_timeout_seconds" yaml:"infer_timeout_seconds" toml:"infer_timeout_seconds"`
	MaxBodyBytes        int64 `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	ImageMaxBytes       int64 `json:"image_max_bytes" yaml:"image_max_bytes" toml:"image_max_bytes"`
	ImageSize           int   `json:"image_size" yaml:"image_size" toml:"image_size"`

	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	CORSMethods []string `json:"cors_methods" yaml:"cors_methods" toml:"cors_methods"`
	CORSHeaders []string `json:"cors_headers" yaml:"cors_headers" toml:"cors_headers"`

	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:                ":8000",
		Backend:             "onnx",
		ModelID:             "google/gemma-3-4b-it",
		Runtime:             "GO",
		DefaultMaxTokens:    300,
		StreamBuffer:        16,
		MaxQueueDepth:       32,
		MaxWaitSeconds:      30,
		DrainTimeoutSeconds: 30,
		MaxBodyBytes:        32 << 20,
		ImageMaxBytes:       20 << 20,
		LogLevel:            "info",
	}
}

// Merge returns base with every non-zero field of over applied on top.
func Merge(base, over Config) Config {
	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	num := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}
	num64 := func(dst *int64, v int64) {
		if v != 0 {
			*dst = v
		}
	}
	list := func(dst *[]string, v []string) {
		if len(v) > 0 {
			*dst = v
		}
	}
	str(&base.Addr, over.Addr)
	str(&base.Backend, over.Backend)
	str(&base.ModelDir, over.ModelDir)
	str(&base.ModelID, over.ModelID)
	str(&base.HFRepo, over.HFRepo)
	str(&base.HFRevision, over.HFRevision)
	str(&base.Runtime, over.Runtime)
	str(&base.ORTLibrary, over.ORTLibrary)
	num(&base.DefaultMaxTokens, over.DefaultMaxTokens)
	num(&base.StreamBuffer, over.StreamBuffer)
	num(&base.MaxQueueDepth, over.MaxQueueDepth)
	num(&base.MaxWaitSeconds, over.MaxWaitSeconds)
	num(&base.DrainTimeoutSeconds, over.DrainTimeoutSeconds)
	num(&base.InferTimeoutSeconds, over.InferTimeoutSeconds)
	num64(&base.MaxBodyBytes, over.MaxBodyBytes)
	num64(&base.ImageMaxBytes, over.ImageMaxBytes)
	num(&base.ImageSize, over.ImageSize)
	if over.CORSEnabled {
		base.CORSEnabled = true
	}
	list(&base.CORSOrigins, over.CORSOrigins)
	list(&base.CORSMethods, over.CORSMethods)
	list(&base.CORSHeaders, over.CORSHeaders)
	str(&base.LogLevel, over.LogLevel)
	return base
}

// ApplyEnv overlays VLMD_* variables found through lookup (os.LookupEnv in
// production) onto cfg. Variable names are the upper-cased config keys.
func ApplyEnv(cfg Config, lookup func(string) (string, bool)) (Config, error) {
	var firstErr error
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + strings.ToUpper(key))
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}
	str := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("%s%s: %w", EnvPrefix, strings.ToUpper(key), err)
				}
				return
			}
			*dst = n
		}
	}
	num64 := func(key string, dst *int64) {
		if v, ok := get(key); ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("%s%s: %w", EnvPrefix, strings.ToUpper(key), err)
				}
				return
			}
			*dst = n
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := get(key); ok {
			*dst = SplitCSV(v)
		}
	}
	str("addr", &cfg.Addr)
	str("backend", &cfg.Backend)
	str("model_dir", &cfg.ModelDir)
	str("model_id", &cfg.ModelID)
	str("hf_repo", &cfg.HFRepo)
	str("hf_revision", &cfg.HFRevision)
	str("runtime", &cfg.Runtime)
	str("ort_library", &cfg.ORTLibrary)
	num("default_max_tokens", &cfg.DefaultMaxTokens)
	num("stream_buffer", &cfg.StreamBuffer)
	num("max_queue_depth", &cfg.MaxQueueDepth)
	num("max_wait_seconds", &cfg.MaxWaitSeconds)
	num("drain_timeout_seconds", &cfg.DrainTimeoutSeconds)
	num("infer_timeout_seconds", &cfg.InferTimeoutSeconds)
	num64("max_body_bytes", &cfg.MaxBodyBytes)
	num64("image_max_bytes", &cfg.ImageMaxBytes)
	num("image_size", &cfg.ImageSize)
	if v, ok := get("cors_enabled"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%sCORS_ENABLED: %w", EnvPrefix, err)
		}
		cfg.CORSEnabled = b
	}
	list("cors_origins", &cfg.CORSOrigins)
	list("cors_methods", &cfg.CORSMethods)
	list("cors_headers", &cfg.CORSHeaders)
	str("log_level", &cfg.LogLevel)
	return cfg, firstErr
}

// SplitCSV splits a comma-separated list, trimming blanks.
func SplitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
