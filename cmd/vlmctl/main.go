// Command vlmctl sends one image and a prompt to a vlmd (or any
// OpenAI-compatible) server and prints the streamed reply.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type options struct {
	image     string
	prompt    string
	url       string
	model     string
	apiKey    string
	maxTokens int
	noColor   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "vlmctl:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:           "vlmctl -i IMAGE [-p PROMPT]",
		Short:         "Describe an image with a streaming chat completion",
		Example:       "  vlmctl -i cat.png\n  vlmctl -i https://example.com/cat.png -p \"What breed is this?\"",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.apiKey == "" {
				opts.apiKey = os.Getenv("OPENAI_API_KEY")
			}
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.image, "image", "i", "", "Image path or URL (required)")
	f.StringVarP(&opts.prompt, "prompt", "p", "Describe this image in detail.", "Prompt sent with the image")
	f.StringVar(&opts.url, "url", "http://127.0.0.1:8000/v1", "Base URL of the OpenAI-compatible API")
	f.StringVar(&opts.model, "model", "google/gemma-3-4b-it", "Model name")
	f.StringVar(&opts.apiKey, "api-key", "", "API key (defaults to OPENAI_API_KEY)")
	f.IntVar(&opts.maxTokens, "max-tokens", 256, "Maximum new tokens")
	f.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}
