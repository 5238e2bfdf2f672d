package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"vlmd/internal/config"
	"vlmd/internal/model"
)

func newTestCmd(t *testing.T, args ...string) (*cobra.Command, *config.Config, *string) {
	t.Helper()
	var (
		fl   config.Config
		path string
	)
	cmd := &cobra.Command{Use: "x", RunE: func(*cobra.Command, []string) error { return nil }}
	bindFlags(cmd, &fl, &path)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return cmd, &fl, &path
}

func TestResolveConfig_Precedence(t *testing.T) {
	d := t.TempDir()
	p := filepath.Join(d, "vlmd.yaml")
	if err := os.WriteFile(p, []byte("addr: :7000\nbackend: toy\nmax_queue_depth: 5\nstream_buffer: 3\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("VLMD_MAX_QUEUE_DEPTH", "6")
	t.Setenv("VLMD_STREAM_BUFFER", "4")

	cmd, fl, path := newTestCmd(t, "--config", p, "--stream-buffer", "8")
	cfg, err := resolveConfig(cmd, *fl, *path)
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}
	if cfg.Addr != ":7000" || cfg.Backend != "toy" {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if cfg.MaxQueueDepth != 6 {
		t.Fatalf("env should beat file: %d", cfg.MaxQueueDepth)
	}
	if cfg.StreamBuffer != 8 {
		t.Fatalf("flag should beat env: %d", cfg.StreamBuffer)
	}
	if cfg.DefaultMaxTokens != 300 {
		t.Fatalf("default lost: %d", cfg.DefaultMaxTokens)
	}
}

func TestResolveConfig_UnsetFlagsKeepDefaults(t *testing.T) {
	cmd, fl, path := newTestCmd(t)
	cfg, err := resolveConfig(cmd, *fl, *path)
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}
	if cfg.Addr != ":8000" || cfg.StreamBuffer != 16 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestAccessToken(t *testing.T) {
	t.Setenv("ACCESS_TOKEN", "")
	t.Setenv("HF_TOKEN", "hf_x")
	if got := accessToken(); got != "hf_x" {
		t.Fatalf("got %q", got)
	}
	t.Setenv("ACCESS_TOKEN", "a")
	if got := accessToken(); got != "a" {
		t.Fatalf("got %q", got)
	}
}

func TestOpenModel(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = "toy"
	cfg.ModelID = "toy-1"
	mdl, _, err := openModel(context.Background(), cfg, zerolog.Nop())
	if err != nil || mdl.ID() != "toy-1" {
		t.Fatalf("toy: %v", err)
	}

	cfg.Backend = "llama"
	if _, _, err := openModel(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for unknown backend")
	} else if kind, ok := model.IsStartupError(err); !ok || kind != model.ModelUnavailable {
		t.Fatalf("expected ModelUnavailable, got %v", err)
	}

	cfg.Backend = "onnx"
	cfg.ModelDir = ""
	if _, _, err := openModel(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatalf("expected error without model dir")
	}

	cfg.HFRepo = "google/gemma-3-4b-it"
	cfg.ModelDir = t.TempDir()
	t.Setenv("ACCESS_TOKEN", "")
	t.Setenv("HF_TOKEN", "")
	_, _, err = openModel(context.Background(), cfg, zerolog.Nop())
	if kind, ok := model.IsStartupError(err); !ok || kind != model.CredentialMissing {
		t.Fatalf("expected CredentialMissing, got %v", err)
	}
}

func TestRequestLogLevel(t *testing.T) {
	cases := map[string]string{"debug": "debug", "INFO": "info", "warn": "error", "off": "off", "": "info"}
	for in, want := range cases {
		if got := requestLogLevel(in); got != want {
			t.Fatalf("%q: got %q want %q", in, got, want)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "vlmd ") {
		t.Fatalf("output=%q", out.String())
	}
}
