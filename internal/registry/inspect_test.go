package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vlmd/internal/model"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte("{}"), 0o644); err != nil {
			t.Fatalf("write temp file: %v", err)
		}
	}
}

func TestInspect_CompleteDir(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "model.onnx", "other.onnx", "tokenizer.json", "generation_config.json", "README.md")
	files, err := Inspect(dir)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if filepath.Base(files.ONNX) != "model.onnx" {
		t.Fatalf("expected model.onnx to win, got %s", files.ONNX)
	}
	if files.GenerationConfig == "" || files.Config != "" {
		t.Fatalf("optional files wrong: %+v", files)
	}
	if files.Name != filepath.Base(dir) {
		t.Fatalf("name=%s", files.Name)
	}
}

func TestInspect_GraphInOnnxSubdir(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "onnx/model_q4.onnx", "onnx/model_q4.onnx_data", "tokenizer.json")
	files, err := Inspect(dir)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !strings.HasSuffix(files.ONNX, filepath.Join("onnx", "model_q4.onnx")) {
		t.Fatalf("graph=%s", files.ONNX)
	}
}

func TestInspect_Failures(t *testing.T) {
	cases := map[string][]string{
		"no graph":        {"tokenizer.json"},
		"no tokenizer":    {"model.onnx"},
		"ambiguous graph": {"a.onnx", "b.onnx", "tokenizer.json"},
	}
	for name, files := range cases {
		dir := t.TempDir()
		writeFiles(t, dir, files...)
		_, err := Inspect(dir)
		if kind, ok := model.IsStartupError(err); !ok || kind != model.ModelUnavailable {
			t.Fatalf("%s: expected ModelUnavailable, got %v", name, err)
		}
	}
	if _, err := Inspect(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing dir")
	}
	if _, err := Inspect(""); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}

func TestInspect_ExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir on this platform: %v", err)
	}
	hTmp, err := os.MkdirTemp(home, "vlmd-registry-*")
	if err != nil {
		t.Skipf("cannot create temp under home: %v", err)
	}
	defer os.RemoveAll(hTmp)
	writeFiles(t, hTmp, "model.onnx", "tokenizer.json")
	files, err := Inspect("~/" + filepath.Base(hTmp))
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if files.Dir != hTmp {
		t.Fatalf("expected %s, got %s", hTmp, files.Dir)
	}
}

func TestFetch_RequiresAccessToken(t *testing.T) {
	_, err := Fetch(context.Background(), FetchOptions{Repo: "google/gemma-3-4b-it", Dir: t.TempDir()})
	if kind, ok := model.IsStartupError(err); !ok || kind != model.CredentialMissing {
		t.Fatalf("expected CredentialMissing, got %v", err)
	}
}

func TestFetch_SkipsCompleteDir(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "model.onnx", "tokenizer.json")
	got, err := Fetch(context.Background(), FetchOptions{Repo: "any/repo", Dir: dir, AccessToken: "hf_x"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got != dir {
		t.Fatalf("dir=%s", got)
	}
}

func TestSelectFiles(t *testing.T) {
	listing := []string{
		"README.md", "config.json", "generation_config.json", "tokenizer.json", "tokenizer_config.json",
		"onnx/model.onnx", "onnx/model.onnx_data", "onnx/model_q4.onnx",
	}
	got, err := selectFiles(listing, "")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	want := "config.json generation_config.json tokenizer_config.json onnx/model.onnx tokenizer.json onnx/model.onnx_data"
	if strings.Join(got, " ") != want {
		t.Fatalf("got %v", got)
	}

	got, err = selectFiles(listing, "onnx/model_q4.onnx")
	if err != nil || got[len(got)-2] != "onnx/model_q4.onnx" {
		t.Fatalf("explicit graph: %v %v", got, err)
	}
	if _, err := selectFiles([]string{"a.onnx", "b.onnx", "tokenizer.json"}, ""); err == nil {
		t.Fatalf("expected ambiguity error")
	}
	if _, err := selectFiles([]string{"model.onnx"}, ""); err == nil {
		t.Fatalf("expected missing tokenizer error")
	}
	if destName("onnx/model.onnx_data") != filepath.Join("onnx", "model.onnx_data") || destName("x/tokenizer.json") != "tokenizer.json" {
		t.Fatalf("destName mapping wrong")
	}
}

func TestRetry_StopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retry(ctx, FetchOptions{MaxRetries: 5, RetryInterval: time.Hour}, "op", func() error {
		calls++
		cancel()
		return errors.New("flaky")
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
	calls = 0
	err = retry(context.Background(), FetchOptions{MaxRetries: 3, RetryInterval: time.Millisecond}, "op", func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}
