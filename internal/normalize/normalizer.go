// Package normalize turns free-form vision model output into inspection
// records. Normalize is total: any string in, a structurally valid record out.
package normalize

import (
	"time"

	"github.com/tidwall/gjson"

	"github.com/yegors/inspect-ocr/internal/inspection"
	"github.com/yegors/inspect-ocr/pkg/logger"
)

// Result is a normalized record plus the strategy that produced it
type Result struct {
	Record inspection.Record `json:"record"`
	Source Source            `json:"source"`
}

// IsFallback reports whether the record is the placeholder, not model data
func (r Result) IsFallback() bool {
	return r.Source == SourceFallback
}

// Normalizer converts raw completion text into records
type Normalizer struct {
	strategies []Strategy
	now        func() time.Time
	logger     *logger.Logger
}

// Option configures a Normalizer
type Option func(*Normalizer)

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// WithStrategies replaces the extraction chain
func WithStrategies(strategies ...Strategy) Option {
	return func(n *Normalizer) { n.strategies = strategies }
}

// New creates a normalizer using DefaultStrategies
func New(logger *logger.Logger, opts ...Option) *Normalizer {
	n := &Normalizer{
		strategies: DefaultStrategies,
		now:        time.Now,
		logger:     logger.Named("normalizer"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize tries each strategy in order; the first candidate that parses as
// a JSON object wins. When none does, the fallback record is returned.
func (n *Normalizer) Normalize(raw string) Result {
	for _, s := range n.strategies {
		candidate, ok := s.Extract(raw)
		if !ok {
			continue
		}
		obj, ok := parseObject(candidate)
		if !ok {
			n.logger.Debug("Candidate is not a JSON object",
				logger.String("strategy", string(s.Source)),
				logger.Int("candidate_len", len(candidate)))
			continue
		}

		record := FromObject(obj, n.now())
		n.logger.Debug("Normalized model response",
			logger.String("strategy", string(s.Source)),
			logger.Int("items", len(record.InspectionItems)))
		return Result{Record: record, Source: s.Source}
	}

	n.logger.Warn("Model response held no parsable JSON, using fallback record",
		logger.Int("response_len", len(raw)),
		logger.String("response_excerpt", excerpt(raw, 200)))

	return Result{Record: inspection.Fallback(n.now()), Source: SourceFallback}
}

// FromObject builds a record from a parsed JSON object. Missing fields become
// empty strings and an absent or empty item list becomes one blank item.
// A key repeated within one object takes its last value.
func FromObject(obj gjson.Result, now time.Time) inspection.Record {
	var record inspection.Record
	fields := members(obj)
	for _, key := range inspection.HeaderFields {
		record.SetHeader(key, fieldText(fields[key]))
	}

	if items := fields["inspectionItems"]; items.IsArray() {
		for _, el := range items.Array() {
			var li inspection.LineItem
			if el.IsObject() {
				cols := members(el)
				for _, key := range inspection.ItemFields {
					li.Set(key, fieldText(cols[key]))
				}
			}
			record.InspectionItems = append(record.InspectionItems, li)
		}
	}
	record.EnsureItems()
	record.CreatedAt = now.UTC()
	return record
}

// members indexes an object's values by key; gjson's Get would keep the
// first of duplicate keys
func members(obj gjson.Result) map[string]gjson.Result {
	m := make(map[string]gjson.Result)
	obj.ForEach(func(key, value gjson.Result) bool {
		m[key.String()] = value
		return true
	})
	return m
}

func parseObject(candidate string) (gjson.Result, bool) {
	if !gjson.Valid(candidate) {
		return gjson.Result{}, false
	}
	obj := gjson.Parse(candidate)
	if !obj.IsObject() {
		return gjson.Result{}, false
	}
	return obj, true
}

// fieldText keeps strings and the literal text of numbers; null, booleans,
// objects and arrays carry no display value.
func fieldText(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Number:
		return v.Raw
	default:
		return ""
	}
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
