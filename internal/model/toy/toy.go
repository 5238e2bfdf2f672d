// Package toy is a deterministic byte-level model. It needs no weights and is
// used for smoke runs and tests of the serving pipeline.
//
// Tokens 0-255 are raw bytes. The model's logits make greedy decoding spell out
// a reply derived from the last user turn, followed by EOS.
package toy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"vlmd/internal/model"
)

// Special token ids.
const (
	BOS       = 256
	EOS       = 257
	VocabSize = 258
)

// Options configures the toy model.
type Options struct {
	// ID reported by the model. Defaults to "toy".
	ID string
	// StepDelay is slept before every Logits call.
	StepDelay time.Duration
	// Reply, when set, replaces the prompt-derived reply.
	Reply string
}

// Model implements model.Model.
type Model struct {
	opts Options

	mu     sync.Mutex
	closed bool
}

// New returns a toy model.
func New(opts Options) *Model {
	if opts.ID == "" {
		opts.ID = "toy"
	}
	return &Model{opts: opts}
}

func (m *Model) ID() string      { return m.opts.ID }
func (m *Model) EOSTokenID() int { return EOS }

func (m *Model) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Template renders msgs and byte-encodes the prompt behind a BOS token.
func (m *Model) Template(msgs []model.Message) (*model.Input, error) {
	prompt, err := model.RenderChat(msgs, true)
	if err != nil {
		return nil, err
	}
	body := strings.TrimPrefix(prompt, model.BOS)
	ids := make([]int64, 0, len(body)+1)
	ids = append(ids, BOS)
	for i := 0; i < len(body); i++ {
		ids = append(ids, int64(body[i]))
	}
	mask := make([]int64, len(ids))
	for i := range mask {
		mask[i] = 1
	}
	in := &model.Input{Prompt: prompt, TokenIDs: ids, AttentionMask: mask}
	for _, msg := range msgs {
		for _, p := range msg.Parts {
			if p.Kind == model.PartImage {
				in.Images = append(in.Images, p.Image)
			}
		}
	}
	return in, nil
}

func (m *Model) Start(ctx context.Context, in *model.Input) (model.Session, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("toy: model closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reply := m.opts.Reply
	if reply == "" {
		reply = Reply(in)
	}
	return &session{reply: []byte(reply), delay: m.opts.StepDelay}, nil
}

// Reply is the text greedy decoding produces for in: the last user turn with
// every image marker replaced by the image's size.
func Reply(in *model.Input) string {
	prompt := in.Prompt
	const open = model.StartOfTurn + "user\n"
	i := strings.LastIndex(prompt, open)
	if i < 0 {
		return "..."
	}
	turn := prompt[i+len(open):]
	if j := strings.Index(turn, model.EndOfTurn); j >= 0 {
		turn = turn[:j]
	}
	// images before the last user turn
	skip := strings.Count(prompt[:i], model.StartOfImage)
	var b strings.Builder
	b.WriteString("You said: ")
	for k := 0; ; k++ {
		j := strings.Index(turn, model.StartOfImage)
		if j < 0 {
			b.WriteString(turn)
			break
		}
		b.WriteString(turn[:j])
		if idx := skip + k; idx < len(in.Images) && in.Images[idx] != nil {
			r := in.Images[idx].Bounds()
			fmt.Fprintf(&b, "[image %dx%d] ", r.Dx(), r.Dy())
		} else {
			b.WriteString("[image] ")
		}
		turn = turn[j+len(model.StartOfImage):]
	}
	return b.String()
}

type session struct {
	reply []byte
	delay time.Duration
	n     int
}

func (s *session) Logits(ctx context.Context) ([]float32, error) {
	if s.delay > 0 {
		t := time.NewTimer(s.delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		}
	}
	target := EOS
	if s.n < len(s.reply) {
		target = int(s.reply[s.n])
	}
	logits := make([]float32, VocabSize)
	for id := range logits {
		d := id - target
		if d < 0 {
			d = -d
		}
		logits[id] = -float32(d)
	}
	return logits, nil
}

func (s *session) Append(tok int) error {
	if tok < 0 || tok >= VocabSize {
		return fmt.Errorf("toy: token %d out of range", tok)
	}
	s.n++
	return nil
}

func (s *session) Decode(ids []int) (string, error) {
	b := make([]byte, 0, len(ids))
	for _, id := range ids {
		if id >= 0 && id < 256 {
			b = append(b, byte(id))
		}
	}
	return string(b), nil
}

func (s *session) Close() error { return nil }
