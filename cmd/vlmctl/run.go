package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	openai "github.com/sashabaranov/go-openai"
)

func run(ctx context.Context, opts options, out io.Writer) error {
	img, err := imageURL(opts.image)
	if err != nil {
		return err
	}

	cfg := openai.DefaultConfig(opts.apiKey)
	cfg.BaseURL = strings.TrimRight(opts.url, "/")
	client := openai.NewClientWithConfig(cfg)

	req := openai.ChatCompletionRequest{
		Model:     opts.model,
		MaxTokens: opts.maxTokens,
		Stream:    true,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: opts.prompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: img, Detail: openai.ImageURLDetailAuto}},
			},
		}},
	}
	stream, err := client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return fmt.Errorf("chat completion: %w", err)
	}
	defer stream.Close()

	text := color.New(color.FgCyan)
	dim := color.New(color.Faint)
	if opts.noColor || !isTerminal(out) {
		text.DisableColor()
		dim.DisableColor()
	}

	var reason openai.FinishReason
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Fprintln(out)
			return fmt.Errorf("stream: %w", err)
		}
		for _, c := range resp.Choices {
			if c.Delta.Content != "" {
				text.Fprint(out, c.Delta.Content)
			}
			if c.FinishReason != "" {
				reason = c.FinishReason
			}
		}
	}
	fmt.Fprintln(out)
	if reason != "" {
		dim.Fprintf(out, "[%s]\n", reason)
	}
	return nil
}

// imageURL returns ref unchanged when it is already a URL and otherwise reads
// the local file into a base64 data URL.
func imageURL(ref string) (string, error) {
	switch {
	case ref == "":
		return "", errors.New("no image given")
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"),
		strings.HasPrefix(ref, "data:"), strings.HasPrefix(ref, "s3://"), strings.HasPrefix(ref, "gs://"):
		return ref, nil
	}
	b, err := os.ReadFile(ref)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	mime := http.DetectContentType(b)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%s does not look like an image (%s)", ref, mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(b), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
