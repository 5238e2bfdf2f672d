package chat

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"vlmd/internal/generate"
	"vlmd/internal/model"
	"vlmd/internal/model/toy"
	"vlmd/pkg/types"
)

type fakeResolver struct {
	mu    sync.Mutex
	imgs  map[string]image.Image
	calls []string
}

func (f *fakeResolver) Resolve(_ context.Context, ref string) (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ref)
	if img, ok := f.imgs[ref]; ok {
		return img, nil
	}
	return nil, errors.New("404 not found")
}

type fakeTemplater struct {
	got []model.Message
	err error
}

func (f *fakeTemplater) Template(msgs []model.Message) (*model.Input, error) {
	f.got = msgs
	if f.err != nil {
		return nil, f.err
	}
	return &model.Input{TokenIDs: []int64{1, 2, 3}}, nil
}

func (f *fakeTemplater) EOSTokenID() int { return 7 }

func user(parts ...types.ContentPart) types.ChatMessage {
	return types.ChatMessage{Role: "user", Content: types.PartsContent(parts...)}
}

func text(s string) types.ContentPart { return types.ContentPart{Type: types.PartTypeText, Text: s} }

func imageRef(u string) types.ContentPart {
	return types.ContentPart{Type: types.PartTypeImageURL, ImageURL: &types.ImageURL{URL: u}}
}

func TestDecodeMessages_TextOnlyKeepsCountAndOrder(t *testing.T) {
	d := &Decoder{Model: &fakeTemplater{}}
	req := types.ChatCompletionRequest{Messages: []types.ChatMessage{
		{Role: "system", Content: types.TextContent("be nice")},
		{Role: "user", Content: types.TextContent("one")},
		{Role: "assistant", Content: types.TextContent("two")},
		user(text("three"), text("four")),
	}}
	msgs, err := d.DecodeMessages(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	require.Equal(t, model.RoleSystem, msgs[0].Role)
	require.Equal(t, "one", msgs[1].Parts[0].Text)
	require.Equal(t, model.RoleAssistant, msgs[2].Role)
	require.Equal(t, []model.Part{model.TextPart("three"), model.TextPart("four")}, msgs[3].Parts)
}

func TestDecode_EmptyMessages(t *testing.T) {
	tpl := &fakeTemplater{}
	_, _, err := (&Decoder{Model: tpl}).Decode(context.Background(), types.ChatCompletionRequest{})
	kind, ok := IsDecodeError(err)
	require.True(t, ok)
	require.Equal(t, EmptyMessages, kind)
	require.Nil(t, tpl.got)
}

func TestDecode_ImagePositionsPreserved(t *testing.T) {
	a := image.NewRGBA(image.Rect(0, 0, 1, 1))
	b := image.NewRGBA(image.Rect(0, 0, 2, 2))
	res := &fakeResolver{imgs: map[string]image.Image{"a.png": a, "b.png": b}}
	tpl := &fakeTemplater{}
	d := &Decoder{Images: res, Model: tpl}
	_, _, err := d.Decode(context.Background(), types.ChatCompletionRequest{Messages: []types.ChatMessage{
		user(imageRef("a.png"), text("between"), imageRef("b.png")),
	}})
	require.NoError(t, err)
	parts := tpl.got[0].Parts
	require.Len(t, parts, 3)
	require.Equal(t, model.PartImage, parts[0].Kind)
	require.Same(t, a, parts[0].Image)
	require.Equal(t, "between", parts[1].Text)
	require.Same(t, b, parts[2].Image)
}

func TestDecode_UnresolvableImage(t *testing.T) {
	res := &fakeResolver{}
	tpl := &fakeTemplater{}
	d := &Decoder{Images: res, Model: tpl}
	_, _, err := d.Decode(context.Background(), types.ChatCompletionRequest{Messages: []types.ChatMessage{
		user(text("look"), imageRef("https://example.invalid/missing.png")),
	}})
	kind, ok := IsDecodeError(err)
	require.True(t, ok, "got %v", err)
	require.Equal(t, ImageUnresolvable, kind)
	require.Contains(t, err.Error(), "messages[0].content[1]")
	require.Nil(t, tpl.got, "template must not run")
	require.Equal(t, []string{"https://example.invalid/missing.png"}, res.calls)
}

func TestDecode_MalformedParts(t *testing.T) {
	d := &Decoder{Images: &fakeResolver{}, Model: &fakeTemplater{}}
	cases := map[string]types.ChatMessage{
		"unknown role":      {Role: "tool", Content: types.TextContent("x")},
		"unknown part type": user(types.ContentPart{Type: "input_audio"}),
		"image without url": user(types.ContentPart{Type: types.PartTypeImageURL}),
	}
	for name, m := range cases {
		_, _, err := d.Decode(context.Background(), types.ChatCompletionRequest{Messages: []types.ChatMessage{m}})
		kind, ok := IsDecodeError(err)
		if !ok || kind != TemplateError {
			t.Fatalf("%s: expected TemplateError, got %v", name, err)
		}
	}
}

func TestDecode_TemplateFailure(t *testing.T) {
	d := &Decoder{Model: &fakeTemplater{err: errors.New("roles must alternate")}}
	_, _, err := d.Decode(context.Background(), types.ChatCompletionRequest{Messages: []types.ChatMessage{user(text("x"))}})
	kind, ok := IsDecodeError(err)
	require.True(t, ok)
	require.Equal(t, TemplateError, kind)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, 400, de.StatusCode())
}

func TestDecode_GenerationConfig(t *testing.T) {
	d := &Decoder{Model: &fakeTemplater{}}
	msgs := []types.ChatMessage{user(text("x"))}

	_, cfg, err := d.Decode(context.Background(), types.ChatCompletionRequest{Messages: msgs})
	require.NoError(t, err)
	require.Equal(t, generate.Config{MaxNewTokens: generate.DefaultMaxNewTokens, EOSTokenID: 7}, cfg)

	_, cfg, _ = d.Decode(context.Background(), types.ChatCompletionRequest{Messages: msgs, MaxTokens: 20})
	require.Equal(t, 20, cfg.MaxNewTokens)

	_, cfg, _ = d.Decode(context.Background(), types.ChatCompletionRequest{Messages: msgs, MaxCompletionTokens: 9})
	require.Equal(t, 9, cfg.MaxNewTokens)

	d.DefaultMaxTokens = 64
	_, cfg, _ = d.Decode(context.Background(), types.ChatCompletionRequest{Messages: msgs})
	require.Equal(t, 64, cfg.MaxNewTokens)
	require.False(t, cfg.DoSample)
}

func TestDecode_WithToyModel(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	d := &Decoder{Images: &fakeResolver{imgs: map[string]image.Image{"cat.png": img}}, Model: toy.New(toy.Options{})}
	in, cfg, err := d.Decode(context.Background(), types.ChatCompletionRequest{Messages: []types.ChatMessage{
		user(imageRef("cat.png"), text("Describe this image in detail.")),
	}, MaxTokens: 20})
	require.NoError(t, err)
	require.Equal(t, toy.EOS, cfg.EOSTokenID)
	require.Len(t, in.Images, 1)
	require.Contains(t, in.Prompt, "<start_of_image>Describe this image in detail.")
}
