package main

import (
	"os"

	"github.com/spf13/cobra"

	"vlmd/internal/config"
)

// bindFlags registers the config flags on cmd and stores them in fl.
func bindFlags(cmd *cobra.Command, fl *config.Config, configPath *string) {
	f := cmd.Flags()
	f.StringVar(configPath, "config", "", "Path to config file (yaml, json or toml)")
	f.StringVar(&fl.Addr, "addr", "", "HTTP listen address (default :8000)")
	f.StringVar(&fl.Backend, "backend", "", "Model backend: onnx or toy")
	f.StringVar(&fl.ModelDir, "model-dir", "", "Directory holding model.onnx and tokenizer.json")
	f.StringVar(&fl.ModelID, "model-id", "", "Model id reported to clients")
	f.StringVar(&fl.HFRepo, "hf-repo", "", "Hugging Face repo to download the model from")
	f.StringVar(&fl.HFRevision, "hf-revision", "", "Hugging Face revision (default main)")
	f.StringVar(&fl.Runtime, "runtime", "", "ONNX runtime: GO or ORT")
	f.StringVar(&fl.ORTLibrary, "ort-library", "", "Path to libonnxruntime for the ORT runtime")
	f.IntVar(&fl.DefaultMaxTokens, "default-max-tokens", 0, "New-token limit when a request sets none (default 300)")
	f.IntVar(&fl.StreamBuffer, "stream-buffer", 0, "Token stream buffer per request (default 16)")
	f.IntVar(&fl.MaxQueueDepth, "max-queue-depth", 0, "Queued requests before 429 (default 32)")
	f.IntVar(&fl.MaxWaitSeconds, "max-wait", 0, "Seconds a request may wait for the generation slot (default 30)")
	f.IntVar(&fl.DrainTimeoutSeconds, "drain-timeout", 0, "Seconds to wait for in-flight generations on shutdown (default 30)")
	f.IntVar(&fl.InferTimeoutSeconds, "infer-timeout", 0, "Seconds a chat completion may run, 0 disables")
	f.Int64Var(&fl.MaxBodyBytes, "max-body-bytes", 0, "Maximum request body size in bytes")
	f.Int64Var(&fl.ImageMaxBytes, "image-max-bytes", 0, "Maximum size of one fetched image in bytes")
	f.IntVar(&fl.ImageSize, "image-size", 0, "Vision input size override")
	f.BoolVar(&fl.CORSEnabled, "cors", false, "Enable CORS")
	f.StringSliceVar(&fl.CORSOrigins, "cors-origins", nil, "Allowed CORS origins")
	f.StringSliceVar(&fl.CORSMethods, "cors-methods", nil, "Allowed CORS methods")
	f.StringSliceVar(&fl.CORSHeaders, "cors-headers", nil, "Allowed CORS headers")
	f.StringVar(&fl.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// resolveConfig applies defaults, then the config file, then VLMD_*
// environment variables, then the flags the user actually set.
func resolveConfig(cmd *cobra.Command, fl config.Config, configPath string) (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		fc, err := config.Load(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = config.Merge(cfg, fc)
	}
	cfg, err := config.ApplyEnv(cfg, os.LookupEnv)
	if err != nil {
		return cfg, err
	}
	return overlayFlags(cmd, cfg, fl), nil
}

func overlayFlags(cmd *cobra.Command, cfg, fl config.Config) config.Config {
	set := cmd.Flags().Changed
	if set("addr") {
		cfg.Addr = fl.Addr
	}
	if set("backend") {
		cfg.Backend = fl.Backend
	}
	if set("model-dir") {
		cfg.ModelDir = fl.ModelDir
	}
	if set("model-id") {
		cfg.ModelID = fl.ModelID
	}
	if set("hf-repo") {
		cfg.HFRepo = fl.HFRepo
	}
	if set("hf-revision") {
		cfg.HFRevision = fl.HFRevision
	}
	if set("runtime") {
		cfg.Runtime = fl.Runtime
	}
	if set("ort-library") {
		cfg.ORTLibrary = fl.ORTLibrary
	}
	if set("default-max-tokens") {
		cfg.DefaultMaxTokens = fl.DefaultMaxTokens
	}
	if set("stream-buffer") {
		cfg.StreamBuffer = fl.StreamBuffer
	}
	if set("max-queue-depth") {
		cfg.MaxQueueDepth = fl.MaxQueueDepth
	}
	if set("max-wait") {
		cfg.MaxWaitSeconds = fl.MaxWaitSeconds
	}
	if set("drain-timeout") {
		cfg.DrainTimeoutSeconds = fl.DrainTimeoutSeconds
	}
	if set("infer-timeout") {
		cfg.InferTimeoutSeconds = fl.InferTimeoutSeconds
	}
	if set("max-body-bytes") {
		cfg.MaxBodyBytes = fl.MaxBodyBytes
	}
	if set("image-max-bytes") {
		cfg.ImageMaxBytes = fl.ImageMaxBytes
	}
	if set("image-size") {
		cfg.ImageSize = fl.ImageSize
	}
	if set("cors") {
		cfg.CORSEnabled = fl.CORSEnabled
	}
	if set("cors-origins") {
		cfg.CORSOrigins = fl.CORSOrigins
	}
	if set("cors-methods") {
		cfg.CORSMethods = fl.CORSMethods
	}
	if set("cors-headers") {
		cfg.CORSHeaders = fl.CORSHeaders
	}
	if set("log-level") {
		cfg.LogLevel = fl.LogLevel
	}
	return cfg
}

// accessToken returns the hub credential from ACCESS_TOKEN or HF_TOKEN.
func accessToken() string {
	if v := os.Getenv("ACCESS_TOKEN"); v != "" {
		return v
	}
	return os.Getenv("HF_TOKEN")
}
