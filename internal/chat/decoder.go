// Package chat converts OpenAI-style chat requests into model input.
package chat

import (
	"context"
	"fmt"
	"image"

	"golang.org/x/sync/errgroup"

	"vlmd/internal/generate"
	"vlmd/internal/model"
	"vlmd/pkg/types"
)

// ImageResolver loads the image behind a reference.
type ImageResolver interface {
	Resolve(ctx context.Context, ref string) (image.Image, error)
}

// Templater is the part of model.Model the decoder needs.
type Templater interface {
	Template(msgs []model.Message) (*model.Input, error)
	EOSTokenID() int
}

// Decoder turns requests into model input and generation settings.
type Decoder struct {
	Images ImageResolver
	Model  Templater
	// DefaultMaxTokens applies when the request sets no limit.
	DefaultMaxTokens int
	// ImageConcurrency bounds parallel image fetches per request. Zero means 4.
	ImageConcurrency int
}

// Decode validates req, resolves its images, applies the chat template and
// returns the generation config.
func (d *Decoder) Decode(ctx context.Context, req types.ChatCompletionRequest) (*model.Input, generate.Config, error) {
	msgs, err := d.DecodeMessages(ctx, req)
	if err != nil {
		return nil, generate.Config{}, err
	}
	in, err := d.Model.Template(msgs)
	if err != nil {
		return nil, generate.Config{}, &DecodeError{Kind: TemplateError, Err: err}
	}
	cfg := generate.Config{
		MaxNewTokens: d.maxTokens(req),
		DoSample:     false,
		EOSTokenID:   d.Model.EOSTokenID(),
	}
	return in, cfg, nil
}

func (d *Decoder) maxTokens(req types.ChatCompletionRequest) int {
	switch {
	case req.MaxTokens > 0:
		return req.MaxTokens
	case req.MaxCompletionTokens > 0:
		return req.MaxCompletionTokens
	case d.DefaultMaxTokens > 0:
		return d.DefaultMaxTokens
	}
	return generate.DefaultMaxNewTokens
}

type pendingImage struct {
	msg, part int
	ref       string
}

// DecodeMessages normalizes the wire messages, resolving every image part in
// place. Message count and part order are preserved.
func (d *Decoder) DecodeMessages(ctx context.Context, req types.ChatCompletionRequest) ([]model.Message, error) {
	if len(req.Messages) == 0 {
		return nil, &DecodeError{Kind: EmptyMessages, Msg: "messages must not be empty"}
	}
	msgs := make([]model.Message, len(req.Messages))
	var pending []pendingImage
	for i, wm := range req.Messages {
		role, ok := model.ParseRole(wm.Role)
		if !ok {
			return nil, &DecodeError{Kind: TemplateError, Msg: fmt.Sprintf("messages[%d]: unsupported role %q", i, wm.Role)}
		}
		parts := wm.Content.Parts()
		msgs[i] = model.Message{Role: role, Parts: make([]model.Part, len(parts))}
		for j, p := range parts {
			switch p.Type {
			case types.PartTypeText:
				msgs[i].Parts[j] = model.TextPart(p.Text)
			case types.PartTypeImageURL:
				if p.ImageURL == nil || p.ImageURL.URL == "" {
					return nil, &DecodeError{Kind: TemplateError, Msg: fmt.Sprintf("messages[%d].content[%d]: image_url without url", i, j)}
				}
				msgs[i].Parts[j] = model.Part{Kind: model.PartImage}
				pending = append(pending, pendingImage{msg: i, part: j, ref: p.ImageURL.URL})
			default:
				return nil, &DecodeError{Kind: TemplateError, Msg: fmt.Sprintf("messages[%d].content[%d]: unsupported part type %q", i, j, p.Type)}
			}
		}
	}
	if len(pending) == 0 {
		return msgs, nil
	}
	if d.Images == nil {
		return nil, &DecodeError{Kind: ImageUnresolvable, Msg: "image input is not supported"}
	}

	limit := d.ImageConcurrency
	if limit <= 0 {
		limit = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, pi := range pending {
		g.Go(func() error {
			img, err := d.Images.Resolve(gctx, pi.ref)
			if err != nil {
				return &DecodeError{
					Kind: ImageUnresolvable,
					Msg:  fmt.Sprintf("messages[%d].content[%d]", pi.msg, pi.part),
					Err:  err,
				}
			}
			// each goroutine writes a distinct element
			msgs[pi.msg].Parts[pi.part].Image = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return msgs, nil
}
