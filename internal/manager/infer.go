package manager

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"

	"vlmd/internal/generate"
	"vlmd/pkg/types"
)

// Sink receives the output of one generation. Start is called once, after the
// request was decoded and admitted and before the first Fragment. An error from
// either method stops the generation.
type Sink interface {
	Start(info RequestInfo) error
	Fragment(text string) error
}

// Infer decodes req, waits for the generation slot and streams the generated
// text into sink. Errors returned before sink.Start are request errors (decode,
// backpressure, unavailable model); errors after it are mid-stream failures.
func (m *Manager) Infer(ctx context.Context, req types.ChatCompletionRequest, sink Sink) (generate.Result, error) {
	m.mu.RLock()
	state, mdl, dec := m.state, m.model, m.decoder
	m.mu.RUnlock()
	switch state {
	case StateReady:
	case StateDraining, StateClosed:
		return generate.Result{}, ErrDependencyUnavailable("server is shutting down")
	default:
		return generate.Result{}, ErrDependencyUnavailable("model is not loaded")
	}

	in, cfg, err := dec.Decode(ctx, req)
	if err != nil {
		m.publisher.Publish(Event{Name: "decode_error", ModelID: mdl.ID(), Fields: map[string]any{"error": err.Error()}})
		return generate.Result{}, err
	}

	release, err := m.beginGeneration(ctx)
	if err != nil {
		return generate.Result{}, err
	}
	// ownership of release moves to the worker once it starts
	handedOff := false
	defer func() {
		if !handedOff {
			release()
		}
	}()

	info := RequestInfo{
		ID:           uuid.NewString(),
		Model:        mdl.ID(),
		PromptTokens: len(in.TokenIDs),
		Images:       len(in.Images),
		MaxNewTokens: cfg.MaxNewTokens,
	}
	if err := m.hooks.BeforeGenerate(ctx, info); err != nil {
		return generate.Result{}, err
	}
	sess, err := mdl.Start(ctx, in)
	if err != nil {
		res := generate.Result{FinishReason: generate.FinishError, Err: err}
		m.hooks.AfterGenerate(info, res)
		m.setLastError(err)
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return res, &generate.GenerationError{Kind: generate.RuntimeFault, Err: err}
	}
	if err := sink.Start(info); err != nil {
		_ = sess.Close()
		m.hooks.AfterGenerate(info, generate.Result{FinishReason: generate.FinishCancelled, Err: err})
		return generate.Result{}, err
	}

	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	results := make(chan generate.Result, 1)
	m.generations.Add(1)
	m.publisher.Publish(Event{Name: "generate_start", ModelID: info.Model, Fields: map[string]any{
		"request_id": info.ID, "prompt_tokens": info.PromptTokens, "images": info.Images, "max_new_tokens": info.MaxNewTokens,
	}})
	handedOff = true
	rd := m.worker.Generate(genCtx, sess, cfg, func(res generate.Result) {
		release()
		m.tokens.Add(uint64(res.Tokens))
		if res.FinishReason == generate.FinishError {
			m.setLastError(res.Err)
		}
		m.hooks.AfterGenerate(info, res)
		m.publisher.Publish(Event{Name: "generate_end", ModelID: info.Model, Fields: map[string]any{
			"request_id": info.ID, "tokens": res.Tokens, "finish_reason": string(res.FinishReason), "duration_ms": res.Duration.Milliseconds(),
		}})
		results <- res
	})
	defer rd.Abandon()

	for {
		f, err := rd.Next(ctx)
		switch {
		case err == nil:
			if serr := sink.Fragment(f.Text); serr != nil {
				return generate.Result{FinishReason: generate.FinishCancelled, Err: serr}, serr
			}
		case errors.Is(err, io.EOF):
			return <-results, nil
		case ctx.Err() != nil:
			return generate.Result{FinishReason: generate.FinishCancelled, Err: ctx.Err()}, ctx.Err()
		default:
			return <-results, err
		}
	}
}
