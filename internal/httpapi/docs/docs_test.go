package docs

import (
	"strings"
	"testing"

	"github.com/swaggo/swag"
)

func TestDocRegistered(t *testing.T) {
	doc, err := swag.ReadDoc()
	if err != nil {
		t.Fatalf("ReadDoc: %v", err)
	}
	for _, want := range []string{`"/v1/chat/completions"`, `"title": "vlmd API"`, `"/readyz"`} {
		if !strings.Contains(doc, want) {
			t.Fatalf("doc missing %s", want)
		}
	}
}
