package consolidate

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/leep66666/smart-job-assistant-backend/internal/transcript"
)

type Method string

const (
	MethodModel    Method = "model"
	MethodFallback Method = "fallback"
)

// Streaming recognizers emit very short fragments (lone punctuation,
// hesitation noise) that carry no answer content.
const minContentRunes = 3

// Answer is the single consolidated text produced for a session.
type Answer struct {
	Text                string
	Method              Method
	SourceFragmentCount int
}

// Model merges an ordered list of fragment texts into one deduplicated
// answer. An error or empty result means the model is unavailable and the
// caller falls back.
type Model interface {
	Consolidate(ctx context.Context, texts []string) (string, error)
}

type Consolidator struct {
	model   Model
	timeout time.Duration
}

// NewConsolidator builds a consolidator. A nil model disables the
// model-based path entirely; only the deterministic fallback runs.
func NewConsolidator(model Model, timeout time.Duration) *Consolidator {
	return &Consolidator{model: model, timeout: timeout}
}

// Consolidate never fails outward: whatever the remote model does, the
// caller gets an answer, possibly with empty text.
func (c *Consolidator) Consolidate(ctx context.Context, fragments []transcript.Fragment) Answer {
	input := filterNoise(transcript.SelectConsolidationInput(fragments))
	if len(input) == 0 {
		return Answer{Text: "", Method: MethodFallback, SourceFragmentCount: 0}
	}
	if len(input) == 1 {
		return Answer{Text: input[0].Text, Method: MethodFallback, SourceFragmentCount: 1}
	}

	if c.model != nil {
		texts := make([]string, 0, len(input))
		for _, f := range input {
			texts = append(texts, f.Text)
		}
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		merged, err := c.model.Consolidate(callCtx, texts)
		cancel()
		switch {
		case err != nil:
			slog.Warn("consolidation model unavailable; using fallback", "error", err, "fragment_count", len(input))
		case strings.TrimSpace(merged) == "":
			slog.Warn("consolidation model returned empty text; using fallback", "fragment_count", len(input))
		default:
			return Answer{Text: strings.TrimSpace(merged), Method: MethodModel, SourceFragmentCount: len(input)}
		}
	}

	return Answer{Text: longestFragment(input).Text, Method: MethodFallback, SourceFragmentCount: len(input)}
}

// longestFragment is the deterministic stopgap used when the model is
// unavailable: the fragment with the most content runes wins, ties broken
// by earliest sequence number. It trades quality for availability.
func longestFragment(fragments []transcript.Fragment) transcript.Fragment {
	best := fragments[0]
	bestLen := contentRunes(best.Text)
	for _, f := range fragments[1:] {
		if n := contentRunes(f.Text); n > bestLen || (n == bestLen && f.Sequence < best.Sequence) {
			best = f
			bestLen = n
		}
	}
	return best
}

func filterNoise(fragments []transcript.Fragment) []transcript.Fragment {
	out := fragments[:0:0]
	for _, f := range fragments {
		if contentRunes(f.Text) >= minContentRunes {
			out = append(out, f)
		}
	}
	return out
}

// contentRunes counts letters and digits only, so punctuation-only
// corrections never beat real speech.
func contentRunes(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
