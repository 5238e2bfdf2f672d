package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"vlmd/internal/common/fsutil"
	"vlmd/internal/config"
	"vlmd/internal/httpapi"
	"vlmd/internal/imageio"
	"vlmd/internal/manager"
	"vlmd/internal/model"
	"vlmd/internal/model/onnx"
	"vlmd/internal/model/toy"
	"vlmd/internal/registry"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	var (
		fl         config.Config
		configPath string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the model and serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, fl, configPath)
			if err != nil {
				return err
			}
			log := newLogger(cfg.LogLevel, os.Stderr)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
	bindFlags(cmd, &fl, &configPath)
	return cmd
}

// serve runs the HTTP server and loads the model in the background, so
// /healthz answers and /readyz reports 503 while weights are loading. It
// returns when ctx is done or the model fails to load.
func serve(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	httpapi.SetLogger(log)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetInferTimeoutSeconds(int64(cfg.InferTimeoutSeconds))
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, cfg.CORSMethods, cfg.CORSHeaders)
	httpapi.SetRequestLogLevel(requestLogLevel(cfg.LogLevel))

	mgr := manager.New(manager.Config{
		Images:           imageio.NewResolver(cfg.ImageMaxBytes),
		DefaultMaxTokens: cfg.DefaultMaxTokens,
		StreamBuffer:     cfg.StreamBuffer,
		MaxQueueDepth:    cfg.MaxQueueDepth,
		MaxWait:          time.Duration(cfg.MaxWaitSeconds) * time.Second,
		DrainTimeout:     time.Duration(cfg.DrainTimeoutSeconds) * time.Second,
		Hooks:            httpapi.GenerationMetrics{},
		Publisher:        manager.LogPublisher{Logger: log},
		Logger:           log,
	})

	// handlers run under baseCtx; it is cancelled only when graceful shutdown runs out of time
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(mgr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("backend", cfg.Backend).Msg("vlmd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		mdl, dir, err := openModel(gctx, cfg, log)
		if err != nil {
			mgr.SetLoadError(err)
			log.Error().Err(err).Msg("model load failed")
			return err
		}
		mgr.SetModel(mdl, cfg.Backend, dir)
		log.Info().Str("model", mdl.ID()).Dur("took", time.Since(start)).Msg("model loaded")
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown incomplete, cancelling in-flight requests")
			cancelBase()
			_ = srv.Close()
		}
		cancelBase()
		dctx, dcancel := context.WithTimeout(context.Background(), time.Duration(cfg.DrainTimeoutSeconds)*time.Second+time.Second)
		defer dcancel()
		if err := mgr.Close(dctx); err != nil {
			log.Warn().Err(err).Msg("model close")
		}
		return nil
	})
	return g.Wait()
}

// requestLogLevel maps the process log level onto per-request chat logging.
func requestLogLevel(level string) string {
	switch strings.ToLower(level) {
	case "debug", "trace":
		return "debug"
	case "warn", "error", "fatal", "panic":
		return "error"
	case "disabled", "off":
		return "off"
	default:
		return "info"
	}
}

// openModel builds the configured backend. It returns the model and the
// directory it was loaded from.
func openModel(ctx context.Context, cfg config.Config, log zerolog.Logger) (model.Model, string, error) {
	switch strings.ToLower(cfg.Backend) {
	case "toy":
		return toy.New(toy.Options{ID: cfg.ModelID}), "", nil
	case "onnx", "":
	default:
		return nil, "", &model.StartupError{Kind: model.ModelUnavailable, Msg: fmt.Sprintf("unknown backend %q", cfg.Backend)}
	}

	dir := cfg.ModelDir
	if cfg.HFRepo != "" {
		if dir == "" {
			dir = defaultModelDir(cfg.HFRepo)
		}
		var err error
		dir, err = registry.Fetch(ctx, registry.FetchOptions{
			Repo:        cfg.HFRepo,
			Revision:    cfg.HFRevision,
			Dir:         dir,
			AccessToken: accessToken(),
			Logger:      log,
		})
		if err != nil {
			return nil, "", err
		}
	}
	if dir == "" {
		return nil, "", &model.StartupError{Kind: model.ModelUnavailable, Msg: "set model_dir or hf_repo"}
	}
	dir, err := fsutil.ResolveDir(dir)
	if err != nil {
		return nil, "", model.Unavailable("resolve model dir", err)
	}
	mdl, err := onnx.Open(onnx.Options{
		Dir:            dir,
		ID:             cfg.ModelID,
		Runtime:        cfg.Runtime,
		ORTLibraryPath: cfg.ORTLibrary,
		ImageSize:      cfg.ImageSize,
		Logger:         log,
	})
	if err != nil {
		return nil, "", err
	}
	return mdl, dir, nil
}

func defaultModelDir(repo string) string {
	return filepath.Join("~", "models", "vlmd", path.Base(repo))
}
