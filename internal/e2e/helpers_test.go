package e2e

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	openai "github.com/sashabaranov/go-openai"

	"vlmd/internal/httpapi"
	"vlmd/internal/imageio"
	"vlmd/internal/manager"
	"vlmd/internal/model"
)

// newServer serves mdl behind the full HTTP stack.
func newServer(t *testing.T, mdl model.Model, cfg manager.Config) (*httptest.Server, *manager.Manager) {
	t.Helper()
	if cfg.Images == nil {
		cfg.Images = imageio.NewResolver(0)
	}
	mgr := manager.New(cfg)
	mgr.SetModel(mdl, "toy", "")
	srv := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = mgr.Close(ctx)
	})
	return srv, mgr
}

func newClient(srv *httptest.Server) *openai.Client {
	cfg := openai.DefaultConfig("test")
	cfg.BaseURL = srv.URL + "/v1"
	return openai.NewClientWithConfig(cfg)
}

// writePNG writes a w x h image and returns its path.
func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "img.png")
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func postChat(t *testing.T, ctx context.Context, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/v1/chat/completions", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	return resp
}

// collect drains a go-openai stream into its text and finish reason.
func collect(t *testing.T, stream *openai.ChatCompletionStream) ([]string, openai.FinishReason, error) {
	t.Helper()
	var (
		frags  []string
		reason openai.FinishReason
	)
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return frags, reason, nil
		}
		if err != nil {
			return frags, reason, err
		}
		for _, c := range resp.Choices {
			if c.Delta.Content != "" {
				frags = append(frags, c.Delta.Content)
			}
			if c.FinishReason != "" {
				reason = c.FinishReason
			}
		}
	}
}

func waitIdle(t *testing.T, mgr *manager.Manager) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		st := mgr.Status()
		if st.Inflight == 0 && st.QueueLen == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("generation still running: %+v", st)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func wireUnmarshal(b []byte, v any) error {
	return jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(b, v)
}
