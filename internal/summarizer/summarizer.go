// Package summarizer reduces a window of historical records into the
// context digest that goes into the reasoning prompt.
package summarizer

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tsawler/prose/v3"

	"github.com/vthunder/plantbud/internal/types"
)

// NoHistory is the narrative of a digest built from no records
const NoHistory = "No historical context available."

const (
	defaultRecentTrend = 3
	minPatternRunes    = 4
)

// Summarizer builds digests. It is safe for concurrent use.
type Summarizer struct {
	thresholds  Thresholds
	recentTrend int
}

// New creates a summarizer bound to validated thresholds
func New(th Thresholds) (*Summarizer, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	return &Summarizer{thresholds: th, recentTrend: defaultRecentTrend}, nil
}

// Thresholds returns the configured comfort ranges
func (s *Summarizer) Thresholds() Thresholds {
	return s.thresholds
}

// Summarize builds a digest, tagging it "recent" when there are records
func (s *Summarizer) Summarize(records []types.HistoricalRecord) types.ContextDigest {
	src := types.SourceRecent
	if len(records) == 0 {
		src = types.SourceNone
	}
	return s.SummarizeFrom(records, src)
}

// SummarizeFrom builds a digest from records supplied by src. Records are
// expected oldest first. The result is never nil-valued.
func (s *Summarizer) SummarizeFrom(records []types.HistoricalRecord, src types.DigestSource) types.ContextDigest {
	if len(records) == 0 {
		return types.ContextDigest{
			Narrative:       NoHistory,
			StructuredTrend: []string{},
			CommonPatterns:  []string{},
			Source:          types.SourceNone,
		}
	}

	trend := make([]string, 0, len(records))
	for _, r := range records {
		trend = append(trend, healthLabel(r))
	}
	last := records[len(records)-1]
	patterns := CommonPatterns(records)

	var b strings.Builder
	fmt.Fprintf(&b, "Historical Data Summary (%d entries, source: %s):\n", len(records), src)
	fmt.Fprintf(&b, "Health Progression: %s\n", strings.Join(trend, " -> "))

	b.WriteString("Recent Trend:\n")
	start := len(records) - s.recentTrend
	if start < 0 {
		start = 0
	}
	for _, r := range records[start:] {
		b.WriteString("- ")
		b.WriteString(s.describe(r))
		b.WriteString("\n")
	}

	if last.RecommendedAction != "" {
		fmt.Fprintf(&b, "Last Recommendation: %s\n", last.RecommendedAction)
	} else {
		b.WriteString("Last Recommendation: none recorded\n")
	}
	if len(patterns) > 0 {
		fmt.Fprintf(&b, "Common Patterns: %s\n", strings.Join(patterns, ", "))
	}

	return types.ContextDigest{
		Narrative:          strings.TrimRight(b.String(), "\n"),
		StructuredTrend:    trend,
		LastRecommendation: last.RecommendedAction,
		CommonPatterns:     patterns,
		Source:             src,
		RecordCount:        len(records),
	}
}

func (s *Summarizer) describe(r types.HistoricalRecord) string {
	parts := []string{
		fmt.Sprintf("%s %s: %s", r.Timestamp.Format("2006-01-02 15:04"), r.SubjectID, healthLabel(r)),
	}
	if r.GrowthTrend != "" {
		parts = append(parts, "Growth: "+r.GrowthTrend)
	}
	if reason := FirstSentence(r.Reasoning); reason != "" {
		parts = append(parts, "Reason: "+reason)
	}
	env := s.Assess(types.EnvironmentReading{Temperature: r.Temperature, Humidity: r.Humidity})
	parts = append(parts, "Environment: "+env.String())
	return strings.Join(parts, ". ")
}

func healthLabel(r types.HistoricalRecord) string {
	if h := strings.TrimSpace(r.Health); h != "" {
		return h
	}
	return "unknown"
}

// CommonPatterns counts whitespace tokens of each record's health label and
// keeps those longer than three runes seen more than once, most frequent
// first, ties in first-seen order.
func CommonPatterns(records []types.HistoricalRecord) []string {
	counts := make(map[string]int)
	var order []string
	for _, r := range records {
		for _, tok := range strings.Fields(r.Health) {
			tok = strings.ToLower(strings.TrimFunc(tok, func(c rune) bool {
				return !unicode.IsLetter(c) && !unicode.IsDigit(c)
			}))
			if utf8.RuneCountInString(tok) < minPatternRunes {
				continue
			}
			if counts[tok] == 0 {
				order = append(order, tok)
			}
			counts[tok]++
		}
	}

	out := make([]string, 0, len(order))
	for _, tok := range order {
		if counts[tok] > 1 {
			out = append(out, tok)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return counts[out[i]] > counts[out[j]]
	})
	return out
}

// FirstSentence returns the first sentence of text
func FirstSentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	doc, err := prose.NewDocument(text)
	if err != nil {
		return text
	}
	sentences := doc.Sentences()
	if len(sentences) == 0 {
		return text
	}
	return strings.TrimSpace(sentences[0].Text)
}
