package generate

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"vlmd/internal/model"
	"vlmd/internal/model/toy"
	"vlmd/internal/stream"
)

// scriptSession emits script[i] at step i, then eos. Token ids index vocab.
type scriptSession struct {
	script  []int
	vocab   []string
	eos     int
	step    int
	delay   time.Duration
	failAt  int // 1-based step that fails; 0 never
	panicAt int
	decode  func(ids []int) (string, error)
	closed  atomic.Bool
	calls   atomic.Int32
}

func (s *scriptSession) Logits(ctx context.Context) ([]float32, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.failAt > 0 && s.step+1 == s.failAt {
		return nil, errors.New("device lost")
	}
	if s.panicAt > 0 && s.step+1 == s.panicAt {
		panic("kernel exploded")
	}
	target := s.eos
	if s.step < len(s.script) {
		target = s.script[s.step]
	}
	out := make([]float32, len(s.vocab))
	out[target] = 1
	return out, nil
}

func (s *scriptSession) Append(int) error { s.step++; return nil }

func (s *scriptSession) Decode(ids []int) (string, error) {
	if s.decode != nil {
		return s.decode(ids)
	}
	var b strings.Builder
	for _, id := range ids {
		b.WriteString(s.vocab[id])
	}
	return b.String(), nil
}

func (s *scriptSession) Close() error { s.closed.Store(true); return nil }

func drain(t *testing.T, rd *stream.Reader) ([]string, error) {
	t.Helper()
	var out []string
	for {
		f, err := rd.Next(context.Background())
		if err != nil {
			return out, err
		}
		out = append(out, f.Text)
	}
}

func runToCompletion(t *testing.T, w *Worker, sess model.Session, cfg Config) ([]string, Result, error) {
	t.Helper()
	done := make(chan Result, 1)
	rd := w.Generate(context.Background(), sess, cfg, func(r Result) { done <- r })
	frags, err := drain(t, rd)
	select {
	case res := <-done:
		return frags, res, err
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not finish")
	}
	return nil, Result{}, nil
}

func TestWorker_ConcatenationEqualsFullDecode(t *testing.T) {
	vocab := []string{"<eos>", "Hel", "lo", ",", " wor", "ld"}
	sess := &scriptSession{script: []int{1, 2, 3, 4, 5}, vocab: vocab, eos: 0}
	frags, res, err := runToCompletion(t, &Worker{}, sess, Config{MaxNewTokens: 50, EOSTokenID: 0})
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, "Hello, world", strings.Join(frags, ""))
	require.Equal(t, FinishStop, res.FinishReason)
	require.Equal(t, 5, res.Tokens)
	require.True(t, sess.closed.Load())
}

func TestWorker_MaxNewTokens(t *testing.T) {
	vocab := []string{"<eos>", "a"}
	sess := &scriptSession{script: []int{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}, vocab: vocab}
	frags, res, err := runToCompletion(t, &Worker{Buffer: 1}, sess, Config{MaxNewTokens: 3})
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, []string{"a", "a", "a"}, frags)
	require.Equal(t, FinishLength, res.FinishReason)
	require.Equal(t, 3, res.Tokens)
}

func TestWorker_HoldsBackIncompleteUTF8(t *testing.T) {
	// byte-level vocab: "é" is split over two tokens
	vocab := []string{"<eos>", "caf", "\xc3", "\xa9", "!"}
	sess := &scriptSession{script: []int{1, 2, 3, 4}, vocab: vocab}
	frags, _, err := runToCompletion(t, &Worker{}, sess, Config{MaxNewTokens: 10})
	require.ErrorIs(t, err, io.EOF)
	for _, f := range frags {
		require.True(t, utf8.ValidString(f), "fragment %q is not valid UTF-8", f)
	}
	require.Equal(t, "café!", strings.Join(frags, ""))
}

func TestWorker_HoldsBackReplacementChar(t *testing.T) {
	// tokenizers with byte fallback decode a dangling byte as U+FFFD
	vocab := []string{"<eos>", "ok ", "<0xE2>", "<0x9C>", "<0x93>"}
	sess := &scriptSession{script: []int{1, 2, 3, 4}, vocab: vocab}
	sess.decode = func(ids []int) (string, error) {
		s := "ok "
		if n := len(ids) - 1; n > 0 && n < 3 {
			s += "�"
		} else if n == 3 {
			s += "✓"
		}
		return s, nil
	}
	frags, _, err := runToCompletion(t, &Worker{}, sess, Config{MaxNewTokens: 10})
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, []string{"ok ", "✓"}, frags)
}

func TestWorker_FlushTrimsDanglingBytes(t *testing.T) {
	vocab := []string{"<eos>", "x", "\xe2\x9c"}
	sess := &scriptSession{script: []int{1, 2}, vocab: vocab}
	frags, res, err := runToCompletion(t, &Worker{}, sess, Config{MaxNewTokens: 2})
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, "x", strings.Join(frags, ""))
	require.Equal(t, FinishLength, res.FinishReason)
}

func TestWorker_RuntimeFault(t *testing.T) {
	vocab := []string{"<eos>", "a"}
	sess := &scriptSession{script: []int{1, 1, 1, 1}, vocab: vocab, failAt: 3}
	frags, res, err := runToCompletion(t, &Worker{}, sess, Config{MaxNewTokens: 10})
	require.Equal(t, []string{"a", "a"}, frags)
	require.True(t, IsGenerationError(err), "got %v", err)
	require.Equal(t, FinishError, res.FinishReason)
	require.True(t, sess.closed.Load())
}

func TestWorker_PanicBecomesRuntimeFault(t *testing.T) {
	vocab := []string{"<eos>", "a"}
	sess := &scriptSession{script: []int{1, 1}, vocab: vocab, panicAt: 2}
	frags, res, err := runToCompletion(t, &Worker{}, sess, Config{MaxNewTokens: 10})
	require.Equal(t, []string{"a"}, frags)
	var ge *GenerationError
	require.ErrorAs(t, err, &ge)
	require.Equal(t, RuntimeFault, ge.Kind)
	require.Contains(t, ge.Error(), "kernel exploded")
	require.Equal(t, FinishError, res.FinishReason)
	require.True(t, sess.closed.Load())
}

func TestWorker_CancelAfterTwoFragments(t *testing.T) {
	vocab := []string{"<eos>", "a"}
	script := make([]int, 100)
	for i := range script {
		script[i] = 1
	}
	sess := &scriptSession{script: script, vocab: vocab, delay: 5 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	rd := (&Worker{Buffer: 1}).Generate(ctx, sess, Config{MaxNewTokens: 100}, func(r Result) { done <- r })

	for i := 0; i < 2; i++ {
		_, err := rd.Next(context.Background())
		require.NoError(t, err)
	}
	cancel()
	rd.Abandon()

	select {
	case res := <-done:
		require.Equal(t, FinishCancelled, res.FinishReason)
		require.Less(t, res.Tokens, 100)
	case <-time.After(time.Second):
		t.Fatalf("worker did not stop after cancellation")
	}
	calls := sess.calls.Load()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, calls, sess.calls.Load(), "model stepped after worker exit")
	require.True(t, sess.closed.Load())
}

func TestWorker_ReaderAbandonStopsWorker(t *testing.T) {
	vocab := []string{"<eos>", "a"}
	script := make([]int, 1000)
	for i := range script {
		script[i] = 1
	}
	sess := &scriptSession{script: script, vocab: vocab}
	done := make(chan Result, 1)
	rd := (&Worker{Buffer: 1}).Generate(context.Background(), sess, Config{MaxNewTokens: 1000}, func(r Result) { done <- r })
	_, err := rd.Next(context.Background())
	require.NoError(t, err)
	rd.Abandon()
	select {
	case res := <-done:
		require.Equal(t, FinishCancelled, res.FinishReason)
		require.ErrorIs(t, res.Err, stream.ErrAbandoned)
	case <-time.After(time.Second):
		t.Fatalf("worker did not stop after abandon")
	}
}

func TestWorker_ToyModelDeterministic(t *testing.T) {
	m := toy.New(toy.Options{})
	msgs := []model.Message{{Role: model.RoleUser, Parts: []model.Part{model.TextPart("naïve café ☕")}}}
	run := func() []string {
		in, err := m.Template(msgs)
		require.NoError(t, err)
		sess, err := m.Start(context.Background(), in)
		require.NoError(t, err)
		frags, res, err := runToCompletion(t, &Worker{}, sess, Config{MaxNewTokens: 300, EOSTokenID: m.EOSTokenID()})
		require.ErrorIs(t, err, io.EOF)
		require.Equal(t, FinishStop, res.FinishReason)
		return frags
	}
	first := run()
	require.Equal(t, first, run())
	require.Equal(t, "You said: naïve café ☕", strings.Join(first, ""))
}

func TestArgmax_TiesGoToLowestID(t *testing.T) {
	require.Equal(t, 1, Argmax([]float32{0, 3, 3, 1}))
	require.Equal(t, 0, Argmax([]float32{2}))
	require.Equal(t, 2, Argmax([]float32{-5, -4, -1}))
}
