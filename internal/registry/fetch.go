package registry

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gomlx/go-huggingface/hub"
	"github.com/rs/zerolog"

	"vlmd/internal/common/fsutil"
	"vlmd/internal/model"
)

// FetchOptions configures Fetch.
type FetchOptions struct {
	// Repo is the hub repository, e.g. "onnx-community/gemma-3-4b-it-ONNX".
	Repo     string
	Revision string
	// Dir receives the files.
	Dir         string
	AccessToken string
	// ONNXFile selects the graph when the repo holds several. Optional.
	ONNXFile      string
	MaxRetries    int
	RetryInterval time.Duration
	Logger        zerolog.Logger
}

// Fetch downloads the model files of opts.Repo into opts.Dir and returns the
// directory. It does nothing when Dir already holds a complete model.
func Fetch(ctx context.Context, opts FetchOptions) (string, error) {
	if opts.Repo == "" {
		return "", errors.New("fetch: no repository")
	}
	if opts.AccessToken == "" {
		return "", &model.StartupError{Kind: model.CredentialMissing, Msg: "ACCESS_TOKEN is not set; it is required to download " + opts.Repo}
	}
	dir, err := fsutil.ResolveDir(opts.Dir)
	if err != nil {
		return "", err
	}
	if _, err := Inspect(dir); err == nil {
		opts.Logger.Debug().Str("dir", dir).Msg("model files present, skipping download")
		return dir, nil
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 2 * time.Second
	}

	repo := hub.New(opts.Repo).WithAuth(opts.AccessToken)
	repo.Verbosity = 0
	repo.WithProgressBar(false)
	if opts.Revision != "" {
		repo.WithRevision(opts.Revision)
	}

	err = retry(ctx, opts, "list repo", func() error { return repo.DownloadInfo(false) })
	if err != nil {
		return "", model.Unavailable("list "+opts.Repo, err)
	}
	var names []string
	for name, err := range repo.IterFileNames() {
		if err != nil {
			return "", model.Unavailable("list "+opts.Repo, err)
		}
		names = append(names, name)
	}
	want, err := selectFiles(names, opts.ONNXFile)
	if err != nil {
		return "", model.Unavailable(opts.Repo, err)
	}

	var paths []string
	err = retry(ctx, opts, "download", func() error {
		var derr error
		paths, derr = repo.DownloadFiles(want...)
		return derr
	})
	if err != nil {
		return "", model.Unavailable("download "+opts.Repo, err)
	}
	for i, p := range paths {
		src, err := filepath.EvalSymlinks(p)
		if err != nil {
			return "", err
		}
		if err := fsutil.CopyFile(src, filepath.Join(dir, destName(want[i]))); err != nil {
			return "", fmt.Errorf("copy %s: %w", want[i], err)
		}
	}
	opts.Logger.Info().Str("repo", opts.Repo).Str("dir", dir).Int("files", len(paths)).Msg("model downloaded")
	return dir, nil
}

// destName keeps graph files (and their external data) under onnx/ and puts
// everything else at the top of the directory.
func destName(name string) string {
	base := path.Base(name)
	if strings.Contains(base, ".onnx") {
		return filepath.Join("onnx", base)
	}
	return base
}

// selectFiles picks the tokenizer, configs and exactly one graph from a repo
// listing, plus the graph's external data files.
func selectFiles(names []string, onnxFile string) ([]string, error) {
	var out, graphs []string
	var tokenizer string
	for _, n := range names {
		base := path.Base(n)
		switch {
		case base == TokenizerFile:
			tokenizer = n
		case base == GenerationConfigFile, base == ConfigFile,
			base == "tokenizer_config.json", base == "special_tokens_map.json":
			out = append(out, n)
		case strings.HasSuffix(base, ".onnx"):
			graphs = append(graphs, n)
		}
	}
	if tokenizer == "" {
		return nil, fmt.Errorf("repository has no %s", TokenizerFile)
	}
	graph := ""
	switch {
	case onnxFile != "":
		for _, g := range graphs {
			if g == onnxFile {
				graph = g
			}
		}
		if graph == "" {
			return nil, fmt.Errorf("graph %s not found", onnxFile)
		}
	case len(graphs) == 1:
		graph = graphs[0]
	default:
		for _, g := range graphs {
			if path.Base(g) == preferredONNX {
				graph = g
			}
		}
		if graph == "" {
			if len(graphs) == 0 {
				return nil, errors.New("repository has no .onnx graph")
			}
			return nil, fmt.Errorf("repository has several graphs, pick one: %s", strings.Join(graphs, " "))
		}
	}
	out = append(out, graph, tokenizer)
	for _, n := range names {
		if strings.HasPrefix(n, graph+"_data") || strings.HasPrefix(n, graph+".data") {
			out = append(out, n)
		}
	}
	return out, nil
}

func retry(ctx context.Context, opts FetchOptions, what string, fn func() error) error {
	var err error
	for i := 0; i < opts.MaxRetries; i++ {
		if err = fn(); err == nil {
			return nil
		}
		opts.Logger.Warn().Err(err).Int("attempt", i+1).Int("max", opts.MaxRetries).Msg(what + " failed")
		if i+1 == opts.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.RetryInterval):
		}
	}
	return err
}
