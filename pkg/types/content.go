package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MessageContent holds a message's content in either of its wire forms: a plain
// string or an ordered list of parts. A JSON null yields no parts.
type MessageContent struct {
	text    string
	parts   []ContentPart
	isParts bool
	isNull  bool
}

// TextContent returns string-form content.
func TextContent(s string) MessageContent { return MessageContent{text: s} }

// PartsContent returns array-form content.
func PartsContent(parts ...ContentPart) MessageContent {
	return MessageContent{parts: parts, isParts: true}
}

// Parts returns the content as an ordered part list. String content becomes a
// single text part.
func (c MessageContent) Parts() []ContentPart {
	switch {
	case c.isNull:
		return nil
	case c.isParts:
		return c.parts
	default:
		return []ContentPart{{Type: PartTypeText, Text: c.text}}
	}
}

// Text concatenates the text parts.
func (c MessageContent) Text() string {
	if !c.isParts {
		return c.text
	}
	var b bytes.Buffer
	for _, p := range c.parts {
		if p.Type == PartTypeText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*c = MessageContent{}
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		c.isNull = true
		return nil
	case data[0] == '"':
		return json.Unmarshal(data, &c.text)
	case data[0] == '[':
		c.isParts = true
		return json.Unmarshal(data, &c.parts)
	default:
		return fmt.Errorf("content: expected string, array or null")
	}
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	switch {
	case c.isNull:
		return []byte("null"), nil
	case c.isParts:
		if c.parts == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(c.parts)
	default:
		return json.Marshal(c.text)
	}
}
