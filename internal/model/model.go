// Package model defines the capability the serving pipeline needs from a
// multimodal language model: applying the chat template, tokenizing, and
// scoring the next token of a growing sequence.
package model

import (
	"context"
	"image"
)

// Role of a chat message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole maps a wire role to a Role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleSystem, RoleUser, RoleAssistant:
		return Role(s), true
	}
	return "", false
}

// PartKind discriminates message parts.
type PartKind int

const (
	PartText PartKind = iota
	PartImage
)

func (k PartKind) String() string {
	if k == PartImage {
		return "image"
	}
	return "text"
}

// Part is one element of a message. Text is set for PartText, Image for PartImage.
type Part struct {
	Kind  PartKind
	Text  string
	Image image.Image
}

// TextPart returns a text part.
func TextPart(s string) Part { return Part{Kind: PartText, Text: s} }

// ImagePart returns an image part.
func ImagePart(img image.Image) Part { return Part{Kind: PartImage, Image: img} }

// Message is a normalized chat message. Parts keep their wire order.
type Message struct {
	Role  Role
	Parts []Part
}

// PixelTensor is a preprocessed image in CHW layout.
type PixelTensor struct {
	Channels int
	Height   int
	Width    int
	Data     []float32
}

// Input is the model-ready form of one request. It is owned by the generation
// that consumes it.
type Input struct {
	// Prompt is the rendered chat template, kept for logging and backends that
	// tokenize lazily.
	Prompt        string
	TokenIDs      []int64
	AttentionMask []int64
	Images        []image.Image
	Pixels        []PixelTensor
}

// Model is a loaded model. Implementations must allow Template to be called
// concurrently; Start is only ever called by one generation at a time.
type Model interface {
	ID() string
	// Template applies the chat template with the generation prompt appended
	// and converts the result into model input.
	Template(msgs []Message) (*Input, error)
	// Start binds in to a new decoding session.
	Start(ctx context.Context, in *Input) (Session, error)
	EOSTokenID() int
	Close() error
}

// Session is the per-request decoding state over a growing token sequence.
type Session interface {
	// Logits scores every vocabulary entry as the next token of the sequence.
	Logits(ctx context.Context) ([]float32, error)
	// Append extends the sequence with tok.
	Append(tok int) error
	// Decode converts generated token ids to text, skipping special tokens.
	Decode(ids []int) (string, error)
	Close() error
}
