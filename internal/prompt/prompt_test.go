package prompt

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yegors/inspect-ocr/internal/inspection"
	"github.com/yegors/inspect-ocr/pkg/logger"
)

func TestRenderEmbeddedNamesEveryField(t *testing.T) {
	p, err := NewRenderer(logger.Nop()).Render("")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, k := range append(append([]string{}, inspection.HeaderFields...), inspection.ItemFields...) {
		if !strings.Contains(p.System, `"`+k+`"`) {
			t.Errorf("system prompt does not mention %q", k)
		}
	}
	if !strings.Contains(p.System, "empty string or 0") {
		t.Error("system prompt lacks the not-found instruction")
	}
	if !strings.Contains(p.User, "JSON only") {
		t.Errorf("user prompt = %q", p.User)
	}
}

func TestSchemaIsValidJSON(t *testing.T) {
	ctx := Context()
	var v map[string]any
	if err := json.Unmarshal([]byte(ctx.Schema), &v); err != nil {
		t.Fatalf("schema is not JSON: %v\n%s", err, ctx.Schema)
	}
	items, ok := v["inspectionItems"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("schema items = %v", v["inspectionItems"])
	}
	if len(items[0].(map[string]any)) != len(inspection.ItemFields) {
		t.Fatalf("schema item has wrong key count")
	}
	if v["companyName"] != "会社名" {
		t.Fatalf("companyName label = %v", v["companyName"])
	}
}

func TestRenderFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.tmpl")
	if err := os.WriteFile(path, []byte("fields:{{range .Items}} {{.Key}}{{end}}"), 0o600); err != nil {
		t.Fatal(err)
	}
	p, err := NewRenderer(logger.Nop()).Render(path)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasPrefix(p.System, "fields: target symbol") {
		t.Fatalf("system = %q", p.System)
	}
}

func TestRenderMissingFile(t *testing.T) {
	if _, err := NewRenderer(logger.Nop()).Render(filepath.Join(t.TempDir(), "nope.tmpl")); err == nil {
		t.Fatal("expected error for missing template")
	}
}
