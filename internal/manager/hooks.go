package manager

import (
	"context"

	"vlmd/internal/generate"
)

// RequestInfo describes an admitted generation.
type RequestInfo struct {
	ID           string
	Model        string
	PromptTokens int
	Images       int
	MaxNewTokens int
}

// Hooks observe generations. BeforeGenerate runs after admission and may veto
// the request by returning an error. AfterGenerate runs exactly once for every
// generation BeforeGenerate allowed, on the goroutine that ran it.
type Hooks interface {
	BeforeGenerate(ctx context.Context, info RequestInfo) error
	AfterGenerate(info RequestInfo, res generate.Result)
}

// NoopHooks does nothing.
type NoopHooks struct{}

func (NoopHooks) BeforeGenerate(context.Context, RequestInfo) error { return nil }
func (NoopHooks) AfterGenerate(RequestInfo, generate.Result)        {}

// MultiHooks runs hooks in order. A veto stops the remaining BeforeGenerate
// calls and unwinds the ones already run.
type MultiHooks []Hooks

func (hs MultiHooks) BeforeGenerate(ctx context.Context, info RequestInfo) error {
	for i, h := range hs {
		if err := h.BeforeGenerate(ctx, info); err != nil {
			for j := i - 1; j >= 0; j-- {
				hs[j].AfterGenerate(info, generate.Result{FinishReason: generate.FinishCancelled, Err: err})
			}
			return err
		}
	}
	return nil
}

func (hs MultiHooks) AfterGenerate(info RequestInfo, res generate.Result) {
	for _, h := range hs {
		h.AfterGenerate(info, res)
	}
}
