package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"vlmd/internal/model"
)

// version is set at link time: -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "vlmd:", err)
		if _, ok := model.IsStartupError(err); ok {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	root := &cobra.Command{
		Use:           "vlmd",
		Short:         "OpenAI-compatible multimodal chat completion server",
		SilenceUsage:  true,
		SilenceErrors: true,
		// bare `vlmd` serves
		RunE: serve.RunE,
	}
	root.Flags().AddFlagSet(serve.Flags())
	root.AddCommand(serve, newFetchCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "vlmd", version)
		},
	}
}
