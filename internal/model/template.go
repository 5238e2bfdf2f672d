package model

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Gemma control tokens.
const (
	BOS          = "<bos>"
	StartOfTurn  = "<start_of_turn>"
	EndOfTurn    = "<end_of_turn>"
	StartOfImage = "<start_of_image>"
)

const gemmaTemplate = `{{- .BOS -}}
{{- range .Turns -}}
<start_of_turn>{{ .Role }}
{{ .Prefix }}{{ range .Parts }}{{ if .Image }}<start_of_image>{{ else }}{{ trim .Text }}{{ end }}{{ end }}<end_of_turn>
{{ end -}}
{{- if .AddGenerationPrompt -}}
<start_of_turn>model
{{ end -}}`

var chatTemplate = template.Must(template.New("gemma").Funcs(template.FuncMap{
	"trim": strings.TrimSpace,
}).Parse(gemmaTemplate))

type turn struct {
	Role   string
	Prefix string
	Parts  []turnPart
}

type turnPart struct {
	Image bool
	Text  string
}

// TemplateError reports a conversation the chat template cannot render.
type TemplateError struct {
	Msg string
}

func (e *TemplateError) Error() string { return "chat template: " + e.Msg }

// RenderChat renders msgs in the Gemma turn format. A leading system message is
// folded into the first user turn. After it, roles must alternate starting with
// user. With addGenerationPrompt the model turn is opened at the end.
func RenderChat(msgs []Message, addGenerationPrompt bool) (string, error) {
	var system string
	if len(msgs) > 0 && msgs[0].Role == RoleSystem {
		for _, p := range msgs[0].Parts {
			if p.Kind != PartText {
				return "", &TemplateError{Msg: "system message may only contain text"}
			}
			system += p.Text
		}
		msgs = msgs[1:]
	}

	turns := make([]turn, 0, len(msgs))
	for i, m := range msgs {
		var role string
		switch m.Role {
		case RoleUser:
			role = "user"
		case RoleAssistant:
			role = "model"
		case RoleSystem:
			return "", &TemplateError{Msg: fmt.Sprintf("message %d: system message must come first", i)}
		default:
			return "", &TemplateError{Msg: fmt.Sprintf("message %d: unsupported role %q", i, m.Role)}
		}
		if (i%2 == 0) != (m.Role == RoleUser) {
			return "", &TemplateError{Msg: "conversation roles must alternate user/assistant/user/assistant/..."}
		}
		t := turn{Role: role, Parts: make([]turnPart, 0, len(m.Parts))}
		for _, p := range m.Parts {
			t.Parts = append(t.Parts, turnPart{Image: p.Kind == PartImage, Text: p.Text})
		}
		turns = append(turns, t)
	}
	if len(turns) == 0 {
		return "", &TemplateError{Msg: "no user message"}
	}
	if strings.TrimSpace(system) != "" {
		turns[0].Prefix = strings.TrimSpace(system) + "\n\n"
	}

	var buf bytes.Buffer
	err := chatTemplate.Execute(&buf, struct {
		BOS                 string
		Turns               []turn
		AddGenerationPrompt bool
	}{BOS, turns, addGenerationPrompt})
	if err != nil {
		return "", &TemplateError{Msg: err.Error()}
	}
	return buf.String(), nil
}

// CountImages returns the number of image parts across msgs.
func CountImages(msgs []Message) int {
	n := 0
	for _, m := range msgs {
		for _, p := range m.Parts {
			if p.Kind == PartImage {
				n++
			}
		}
	}
	return n
}
