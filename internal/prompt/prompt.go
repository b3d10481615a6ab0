package prompt

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/yegors/inspect-ocr/internal/inspection"
	"github.com/yegors/inspect-ocr/pkg/logger"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Field is one extractable field and the label printed on the paper form
type Field struct {
	Key   string
	Label string
}

var headerLabels = map[string]string{
	"companyName":   "会社名 (company name)",
	"drawingNumber": "図版番号 (drawing number)",
	"partNumber":    "品番 (part number)",
	"partName":      "品名 (part name)",
	"inspector":     "担当者名 (inspector)",
	"comment":       "コメント (comment)",
}

var itemLabels = map[string]string{
	"target":                "対象 (target)",
	"symbol":                "記号 (symbol)",
	"dimension":             "寸法値 (dimension)",
	"lowerTolerance":        "公差下限 (lower tolerance)",
	"upperTolerance":        "公差上限 (upper tolerance)",
	"minAllowableDimension": "最小許容寸法 (minimum allowable dimension)",
	"quantity":              "個数 (quantity)",
	"measurement1":          "実測計測1回目 (first measurement)",
	"measurement2":          "実測計測2回目 (second measurement)",
	"overallJudgment":       "全体判定 (overall judgment)",
	"judgment1":             "1回目判定 (first judgment)",
	"judgment2":             "2回目判定 (second judgment)",
	"remarks":               "備考 (remarks)",
}

// TemplateContext is the data available to the system prompt template
type TemplateContext struct {
	Header []Field
	Items  []Field
	Schema string
}

// Prompt holds the rendered instruction texts sent with every extraction
type Prompt struct {
	System string
	User   string
}

// Renderer renders the extraction prompts
type Renderer struct {
	logger *logger.Logger
}

// NewRenderer creates a new prompt renderer
func NewRenderer(logger *logger.Logger) *Renderer {
	return &Renderer{logger: logger.Named("prompt")}
}

// Render renders the system prompt from templatePath, or from the embedded
// template when templatePath is empty.
func (r *Renderer) Render(templatePath string) (Prompt, error) {
	systemSrc, err := r.loadTemplate(templatePath, "templates/system.tmpl")
	if err != nil {
		return Prompt{}, err
	}
	userSrc, err := templateFS.ReadFile("templates/user.tmpl")
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to read user prompt: %w", err)
	}

	tmpl, err := template.New("system").Parse(systemSrc)
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to parse prompt template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, Context()); err != nil {
		return Prompt{}, fmt.Errorf("failed to render prompt template: %w", err)
	}

	r.logger.Debug("Rendered extraction prompt",
		logger.String("template", templateOrEmbedded(templatePath)),
		logger.Int("length", buf.Len()))

	return Prompt{
		System: strings.TrimSpace(buf.String()),
		User:   strings.TrimSpace(string(userSrc)),
	}, nil
}

func (r *Renderer) loadTemplate(path, embedded string) (string, error) {
	if path == "" {
		b, err := templateFS.ReadFile(embedded)
		if err != nil {
			return "", fmt.Errorf("failed to read embedded template: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt template %s: %w", path, err)
	}
	return string(b), nil
}

// Context builds the template data from the record field lists
func Context() TemplateContext {
	ctx := TemplateContext{}
	for _, k := range inspection.HeaderFields {
		ctx.Header = append(ctx.Header, Field{Key: k, Label: headerLabels[k]})
	}
	for _, k := range inspection.ItemFields {
		ctx.Items = append(ctx.Items, Field{Key: k, Label: itemLabels[k]})
	}
	ctx.Schema = Schema(ctx.Header, ctx.Items)
	return ctx
}

// Schema writes the example JSON shape the model must return, keeping field order
func Schema(header, items []Field) string {
	var b strings.Builder
	b.WriteString("{\n")
	for _, f := range header {
		fmt.Fprintf(&b, "  %s: %s,\n", quote(f.Key), quote(shortLabel(f.Label)))
	}
	b.WriteString("  \"inspectionItems\": [\n    {\n")
	for i, f := range items {
		sep := ","
		if i == len(items)-1 {
			sep = ""
		}
		fmt.Fprintf(&b, "      %s: %s%s\n", quote(f.Key), quote(shortLabel(f.Label)), sep)
	}
	b.WriteString("    }\n  ]\n}")
	return b.String()
}

// shortLabel drops the parenthesised English gloss
func shortLabel(label string) string {
	if i := strings.Index(label, " ("); i > 0 {
		return label[:i]
	}
	return label
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func templateOrEmbedded(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}
