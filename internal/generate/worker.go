// Package generate runs greedy autoregressive decoding for one request on a
// background goroutine and feeds decoded text into a stream.
package generate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"vlmd/internal/model"
	"vlmd/internal/stream"
)

// DefaultMaxNewTokens applies when a request does not set max_tokens.
const DefaultMaxNewTokens = 300

// Config controls one generation.
type Config struct {
	MaxNewTokens int
	// DoSample is always false: decoding is greedy.
	DoSample   bool
	EOSTokenID int
}

// FinishReason explains why a generation ended.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishLength    FinishReason = "length"
	FinishCancelled FinishReason = "cancelled"
	FinishError     FinishReason = "error"
)

// Result summarizes a finished generation.
type Result struct {
	Tokens       int
	FinishReason FinishReason
	Duration     time.Duration
	Err          error
}

// Worker starts generations. The zero value is usable.
type Worker struct {
	// Buffer is the stream capacity. Zero uses stream.DefaultCapacity.
	Buffer int
	Logger zerolog.Logger
}

// Generate starts decoding sess on a new goroutine and returns the reading end
// of its stream. The goroutine owns sess and closes it on exit. done, if not
// nil, is called last, after the stream has been closed.
func (w *Worker) Generate(ctx context.Context, sess model.Session, cfg Config, done func(Result)) *stream.Reader {
	wr, rd := stream.New(w.Buffer)
	go func() {
		res := w.run(ctx, sess, cfg, wr)
		switch res.FinishReason {
		case FinishError:
			wr.Close(res.Err)
		case FinishCancelled:
			wr.Close(res.Err)
		default:
			wr.Close(nil)
		}
		if err := closeSession(sess); err != nil {
			w.Logger.Warn().Err(err).Msg("session close")
		}
		if done != nil {
			done(res)
		}
	}()
	return rd
}

func closeSession(sess model.Session) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in session close: %v", r)
		}
	}()
	return sess.Close()
}

func (w *Worker) run(ctx context.Context, sess model.Session, cfg Config, wr *stream.Writer) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.FinishReason = FinishError
			res.Err = &GenerationError{Kind: RuntimeFault, Err: fmt.Errorf("panic: %v", r)}
		}
		res.Duration = time.Since(start)
	}()

	cancelled := func(err error) Result {
		res.FinishReason = FinishCancelled
		res.Err = err
		return res
	}
	fault := func(err error) Result {
		res.FinishReason = FinishError
		res.Err = &GenerationError{Kind: RuntimeFault, Err: err}
		return res
	}
	push := func(text string) error {
		if text == "" {
			return nil
		}
		return wr.Push(ctx, stream.Fragment{Text: text})
	}

	var det detokenizer
	res.FinishReason = FinishLength
	for res.Tokens < cfg.MaxNewTokens {
		if err := ctx.Err(); err != nil {
			return cancelled(err)
		}
		select {
		case <-wr.Done():
			return cancelled(stream.ErrAbandoned)
		default:
		}

		logits, err := sess.Logits(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return cancelled(ctx.Err())
			}
			return fault(fmt.Errorf("logits: %w", err))
		}
		if len(logits) == 0 {
			return fault(errors.New("logits: empty"))
		}
		tok := Argmax(logits)
		if tok == cfg.EOSTokenID {
			res.FinishReason = FinishStop
			break
		}
		if err := sess.Append(tok); err != nil {
			return fault(fmt.Errorf("append: %w", err))
		}
		res.Tokens++

		text, err := det.next(sess, tok)
		if err != nil {
			return fault(err)
		}
		if err := push(text); err != nil {
			return cancelled(err)
		}
	}

	tail, err := det.flush(sess)
	if err != nil {
		return fault(err)
	}
	if err := push(tail); err != nil {
		return cancelled(err)
	}
	w.Logger.Debug().Int("tokens", res.Tokens).Str("finish", string(res.FinishReason)).Msg("generation done")
	return res
}

// Argmax returns the index of the largest score. Ties go to the lowest index.
func Argmax(logits []float32) int {
	best := 0
	for i := 1; i < len(logits); i++ {
		if logits[i] > logits[best] {
			best = i
		}
	}
	return best
}
