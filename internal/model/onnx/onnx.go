// Package onnx serves a decoder-only multimodal model exported to ONNX.
//
// A model directory holds model.onnx, tokenizer.json and optionally
// generation_config.json and config.json. Each decoding step runs the whole
// sequence through the graph and reads the scores of the last position, so no
// KV cache inputs are required.
package onnx

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"

	"vlmd/internal/imageio"
	"vlmd/internal/model"
	"vlmd/internal/registry"
)

// Runtimes.
const (
	RuntimeGo  = "GO"
	RuntimeORT = "ORT"
)

// Options configures Open.
type Options struct {
	Dir string
	// ID reported to clients. Defaults to the directory name.
	ID string
	// Runtime selects the graph executor: GO (default) or ORT.
	Runtime string
	// ORTLibraryPath points at libonnxruntime when Runtime is ORT.
	ORTLibraryPath string
	// ImageSize overrides vision_config.image_size when positive.
	ImageSize int
	Logger    zerolog.Logger
}

// Model implements model.Model.
type Model struct {
	id        string
	tk        *tokenizer.Tokenizer
	run       runner
	eos       int
	imageSize int
	pixels    bool
}

// Open loads the model directory. Failures are model.StartupError.
func Open(opts Options) (*Model, error) {
	files, err := registry.Inspect(opts.Dir)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(files.Tokenizer)
	if err != nil {
		return nil, model.Unavailable("read tokenizer", err)
	}
	tk, err := pretrained.FromReader(bytes.NewReader(b))
	if err != nil {
		return nil, model.Unavailable("load tokenizer", err)
	}
	cfg, err := loadModelConfig(files)
	if err != nil {
		return nil, model.Unavailable("read model config", err)
	}

	rt := strings.ToUpper(opts.Runtime)
	if rt == "" {
		rt = RuntimeGo
	}
	var r runner
	switch rt {
	case RuntimeGo:
		r, err = newGoRunner(files.ONNX)
	case RuntimeORT:
		r, err = newORTRunner(files.ONNX, opts.ORTLibraryPath)
	default:
		err = fmt.Errorf("unknown runtime %q", opts.Runtime)
	}
	if err != nil {
		return nil, model.Unavailable("load "+files.ONNX, err)
	}

	m := &Model{
		id:        opts.ID,
		tk:        tk,
		run:       r,
		eos:       cfg.EOSTokenID,
		imageSize: cfg.ImageSize,
	}
	if m.id == "" {
		m.id = files.Name
	}
	if opts.ImageSize > 0 {
		m.imageSize = opts.ImageSize
	}
	if m.eos < 0 {
		id, ok := tk.TokenToId("<eos>")
		if !ok {
			r.close()
			return nil, model.Unavailable("no eos token in generation_config.json or tokenizer", nil)
		}
		m.eos = id
	}
	for _, name := range r.inputNames() {
		if name == inputPixelValues {
			m.pixels = true
		}
	}
	opts.Logger.Info().
		Str("model", m.id).
		Str("runtime", rt).
		Int("eos", m.eos).
		Bool("vision", m.pixels).
		Msg("onnx model loaded")
	return m, nil
}

func (m *Model) ID() string      { return m.id }
func (m *Model) EOSTokenID() int { return m.eos }
func (m *Model) Close() error    { return m.run.close() }

func (m *Model) Template(msgs []model.Message) (*model.Input, error) {
	n := model.CountImages(msgs)
	if n > 0 && !m.pixels {
		return nil, &model.TemplateError{Msg: "model does not accept image input"}
	}
	prompt, err := model.RenderChat(msgs, true)
	if err != nil {
		return nil, err
	}
	enc, err := m.tk.EncodeSingle(prompt, false)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	in := &model.Input{
		Prompt:        prompt,
		TokenIDs:      make([]int64, len(enc.Ids)),
		AttentionMask: make([]int64, len(enc.Ids)),
	}
	for i, id := range enc.Ids {
		in.TokenIDs[i] = int64(id)
		in.AttentionMask[i] = 1
	}
	for _, msg := range msgs {
		for _, p := range msg.Parts {
			if p.Kind == model.PartImage {
				in.Images = append(in.Images, p.Image)
				in.Pixels = append(in.Pixels, imageio.Preprocess(p.Image, m.imageSize))
			}
		}
	}
	return in, nil
}

func (m *Model) Start(ctx context.Context, in *model.Input) (model.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &session{
		m:      m,
		ids:    append([]int64(nil), in.TokenIDs...),
		mask:   append([]int64(nil), in.AttentionMask...),
		pixels: in.Pixels,
	}
	return s, nil
}

type session struct {
	m      *Model
	ids    []int64
	mask   []int64
	pixels []model.PixelTensor
}

func (s *session) Logits(ctx context.Context) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.m.run.run(step{ids: s.ids, mask: s.mask, pixels: s.pixels})
}

func (s *session) Append(tok int) error {
	s.ids = append(s.ids, int64(tok))
	s.mask = append(s.mask, 1)
	return nil
}

func (s *session) Decode(ids []int) (string, error) {
	return s.m.tk.Decode(ids, true), nil
}

func (s *session) Close() error {
	s.ids, s.mask, s.pixels = nil, nil, nil
	return nil
}
