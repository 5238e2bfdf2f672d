package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vlmd/internal/config"
	"vlmd/internal/registry"
)

func newFetchCmd() *cobra.Command {
	var (
		fl         config.Config
		configPath string
		onnxFile   string
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download model files from the Hugging Face hub",
		Long:  "Download model.onnx, tokenizer.json and config files of --hf-repo into --model-dir. Requires ACCESS_TOKEN (or HF_TOKEN).",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, fl, configPath)
			if err != nil {
				return err
			}
			if cfg.HFRepo == "" {
				return fmt.Errorf("--hf-repo is required")
			}
			dir := cfg.ModelDir
			if dir == "" {
				dir = defaultModelDir(cfg.HFRepo)
			}
			log := newLogger(cfg.LogLevel, os.Stderr)
			out, err := registry.Fetch(cmd.Context(), registry.FetchOptions{
				Repo:        cfg.HFRepo,
				Revision:    cfg.HFRevision,
				Dir:         dir,
				AccessToken: accessToken(),
				ONNXFile:    onnxFile,
				Logger:      log,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	bindFlags(cmd, &fl, &configPath)
	cmd.Flags().StringVar(&onnxFile, "onnx-file", "", "Graph to download when the repo holds several .onnx files")
	return cmd
}
