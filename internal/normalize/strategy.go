package normalize

import (
	"regexp"
	"strings"
)

// Source identifies which strategy produced the parsed record
type Source string

const (
	SourceFencedBlock Source = "fenced_block"
	SourceBraceScan   Source = "brace_scan"
	SourceRawText     Source = "raw_text"
	SourceFallback    Source = "fallback"
)

// Strategy extracts a JSON candidate from a model response.
// Extract is pure and reports false when it finds nothing to offer.
type Strategy struct {
	Source  Source
	Extract func(text string) (string, bool)
}

// DefaultStrategies is the extraction order: fenced block, brace scan, raw text
var DefaultStrategies = []Strategy{
	{Source: SourceFencedBlock, Extract: FencedBlock},
	{Source: SourceBraceScan, Extract: BraceScan},
	{Source: SourceRawText, Extract: RawText},
}

var fencePattern = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)\\s*```")

// FencedBlock returns the inner text of the first ``` block, tagged json or untagged
func FencedBlock(text string) (string, bool) {
	m := fencePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	inner := strings.TrimSpace(m[1])
	return inner, inner != ""
}

// BraceScan returns the first balanced top-level {...} span of text.
// Braces inside JSON string literals are skipped. When no span closes,
// it falls back to the first '{' through the last '}'.
func BraceScan(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}

	end := strings.LastIndexByte(text, '}')
	if end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// RawText offers the whole response, trimmed
func RawText(text string) (string, bool) {
	s := strings.TrimSpace(text)
	return s, s != ""
}
