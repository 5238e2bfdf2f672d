package manager

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vlmd/internal/model"
	"vlmd/internal/model/toy"
	"vlmd/pkg/types"
)

// countingModel wraps the toy model and counts Start calls. startErr and
// failAfter inject faults.
type countingModel struct {
	*toy.Model
	starts    atomic.Int32
	startErr  error
	failAfter int
}

func (c *countingModel) Start(ctx context.Context, in *model.Input) (model.Session, error) {
	c.starts.Add(1)
	if c.startErr != nil {
		return nil, c.startErr
	}
	s, err := c.Model.Start(ctx, in)
	if err != nil || c.failAfter == 0 {
		return s, err
	}
	return &failingSession{Session: s, left: c.failAfter}, nil
}

type failingSession struct {
	model.Session
	left int
}

func (f *failingSession) Logits(ctx context.Context) ([]float32, error) {
	if f.left == 0 {
		return nil, errors.New("device lost")
	}
	f.left--
	return f.Session.Logits(ctx)
}

func newTestManager(t *testing.T, mdl model.Model, cfg Config) (*Manager, *MemoryPublisher) {
	t.Helper()
	pub := NewMemoryPublisher()
	cfg.Publisher = pub
	m := New(cfg)
	if mdl != nil {
		m.SetModel(mdl, "toy", "")
	}
	return m, pub
}

// recordingSink collects fragments; failAt makes the n-th Fragment call fail.
type recordingSink struct {
	mu      sync.Mutex
	info    *RequestInfo
	frags   []string
	failAt  int
	onFrag  func(n int)
	started int
}

func (s *recordingSink) Start(info RequestInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started++
	s.info = &info
	return nil
}

func (s *recordingSink) Fragment(text string) error {
	s.mu.Lock()
	s.frags = append(s.frags, text)
	n := len(s.frags)
	s.mu.Unlock()
	if s.onFrag != nil {
		s.onFrag(n)
	}
	if s.failAt > 0 && n == s.failAt {
		return errors.New("client went away")
	}
	return nil
}

func (s *recordingSink) text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.frags, "")
}

func userText(s string) types.ChatCompletionRequest {
	return types.ChatCompletionRequest{Messages: []types.ChatMessage{{Role: "user", Content: types.TextContent(s)}}}
}

type mapResolver map[string]image.Image

func (r mapResolver) Resolve(_ context.Context, ref string) (image.Image, error) {
	if img, ok := r[ref]; ok {
		return img, nil
	}
	return nil, errors.New("not found: " + ref)
}

// waitIdle waits until both admission slots are free.
func waitIdle(t *testing.T, m *Manager) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for len(m.genCh) != 0 || len(m.queueCh) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("admission slots not released: gen=%d queue=%d", len(m.genCh), len(m.queueCh))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
