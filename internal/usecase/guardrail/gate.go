// Package guardrail implements the query gate that runs before any
// retrieval work. Verdicts are value objects, never errors: a blocked
// query is a well-formed answer, not a failure.
package guardrail

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/wabenzi/prethrift/internal/domain/query"
	"github.com/wabenzi/prethrift/internal/domain/verdict"
)

// DefaultThreshold is the minimum fashion-vocabulary token ratio a query
// must reach to count as on-topic.
const DefaultThreshold = 0.2

// Config carries the curated vocabulary the gate matches against.
type Config struct {
	// Vocabulary is every phrase that counts as fashion language. Phrases
	// are tokenized on load so multi-word entries match per token.
	Vocabulary []string
	// Polysemy maps terms with several fashion senses to their candidate
	// interpretations, most frequent first.
	Polysemy map[string][]string
	// Threshold is the minimum vocabulary ratio; zero means DefaultThreshold.
	Threshold float64
}

// Gate decides whether a query enters the pipeline. It is pure: no
// network, no clock, and identical input yields an identical verdict.
type Gate struct {
	vocab     map[string]struct{}
	polysemy  map[string][]string
	threshold float64
}

// New builds a gate from curated lexicon data.
func New(cfg Config) *Gate {
	vocab := make(map[string]struct{})
	for _, phrase := range cfg.Vocabulary {
		for _, tok := range tokenize(phrase) {
			vocab[tok] = struct{}{}
		}
	}

	polysemy := make(map[string][]string, len(cfg.Polysemy))
	for term, interps := range cfg.Polysemy {
		term = strings.ToLower(term)
		polysemy[term] = append([]string(nil), interps...)
		// Polysemous terms are fashion vocabulary in every sense.
		vocab[term] = struct{}{}
	}

	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	return &Gate{vocab: vocab, polysemy: polysemy, threshold: threshold}
}

// Check gates one query. Ambiguity always blocks: force only downgrades
// an off-topic verdict, and the off-topic reason survives the override.
func (g *Gate) Check(req *query.Request) verdict.Verdict {
	tokens := tokenize(req.Text())

	if len(tokens) == 0 {
		if req.ImageRef() != "" {
			// Image-driven query; there is no text to gate.
			return verdict.OK()
		}
		return verdict.Ambiguous("query is empty; describe the garment you are looking for", nil)
	}

	if term, interps, ok := g.findUndisambiguated(tokens); ok {
		return verdict.Ambiguous(
			fmt.Sprintf("%q has several fashion senses; add context or pick one", term),
			interps,
		)
	}

	if ratio := g.vocabRatio(tokens); ratio < g.threshold {
		v := verdict.OffTopic(fmt.Sprintf(
			"query does not look like a fashion search (vocabulary ratio %.2f, needs %.2f)",
			ratio, g.threshold))
		if req.Force() {
			return v.Override()
		}
		return v
	}

	return verdict.OK()
}

// findUndisambiguated returns the first polysemous token, in query order,
// that no other distinct vocabulary token pins down. Repeating the term
// is not context: "jacket jacket" stays ambiguous.
func (g *Gate) findUndisambiguated(tokens []string) (string, []string, bool) {
	for _, tok := range tokens {
		interps, ok := g.polysemy[tok]
		if !ok {
			continue
		}
		if !g.hasContext(tokens, tok) {
			return tok, interps, true
		}
	}
	return "", nil, false
}

// hasContext reports whether any token other than term itself is fashion
// vocabulary.
func (g *Gate) hasContext(tokens []string, term string) bool {
	for _, tok := range tokens {
		if tok == term {
			continue
		}
		if _, ok := g.vocab[tok]; ok {
			return true
		}
	}
	return false
}

func (g *Gate) vocabRatio(tokens []string) float64 {
	hits := 0
	for _, tok := range tokens {
		if _, ok := g.vocab[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}

// tokenize lowercases and splits on anything that is not a letter, digit,
// or internal hyphen, so "t-shirt" and "all-season" survive whole.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})

	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "-")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
