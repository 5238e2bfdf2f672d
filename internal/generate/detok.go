package generate

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

type decoder interface {
	Decode(ids []int) (string, error)
}

// detokenizer turns a growing token sequence into text increments. It decodes
// the whole sequence each step and emits the part not yet emitted, holding back
// text that ends in an incomplete UTF-8 sequence or a replacement character.
type detokenizer struct {
	ids     []int
	emitted int
}

func (d *detokenizer) next(dec decoder, tok int) (string, error) {
	d.ids = append(d.ids, tok)
	text, err := dec.Decode(d.ids)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(text) <= d.emitted || strings.HasSuffix(text, string(utf8.RuneError)) {
		return "", nil
	}
	pending := text[d.emitted:]
	n := completePrefix(pending)
	d.emitted += n
	return pending[:n], nil
}

// flush returns whatever is still held back, dropping trailing bytes that do
// not form a complete rune.
func (d *detokenizer) flush(dec decoder) (string, error) {
	if len(d.ids) == 0 {
		return "", nil
	}
	text, err := dec.Decode(d.ids)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(text) <= d.emitted {
		return "", nil
	}
	pending := text[d.emitted:]
	d.emitted = len(text)
	for len(pending) > 0 && !utf8.ValidString(pending) {
		pending = pending[:len(pending)-1]
	}
	return pending, nil
}

// completePrefix returns the length of s without a trailing incomplete rune.
func completePrefix(s string) int {
	for i := len(s) - 1; i >= 0 && i >= len(s)-utf8.UTFMax; i-- {
		if utf8.RuneStart(s[i]) {
			if utf8.FullRuneInString(s[i:]) {
				return len(s)
			}
			return i
		}
	}
	return len(s)
}
