package ontology

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/wabenzi/prethrift/internal/domain/attribute"
)

// Baseline confidences for the keyword pass. Exact value mentions score
// highest, loose associations lowest.
const (
	exactConfidence   = 0.7
	synonymConfidence = 0.6
	relatedConfidence = 0.5
)

// Config carries the lexicon sections the rule pass compiles.
type Config struct {
	// Families maps each attribute family to its recognized canonical values.
	Families map[string][]string
	// Synonyms maps surface forms to canonical values.
	Synonyms map[string]string
	// Related maps loosely associated phrases to canonical values.
	Related map[string]string
	// CategoryPriority breaks category ties; earlier entries win.
	CategoryPriority []string
}

// matcher is one compiled phrase. The assignment it emits is prebuilt and
// validated, so the hot path only copies it.
type matcher struct {
	phrase     []string
	assignment attribute.Assignment
}

// Ruleset is the deterministic keyword extractor compiled from the lexicon.
// Extraction is pure: same text in, byte-identical assignments out.
type Ruleset struct {
	matchers []matcher
	priority map[string]int
}

// NewRuleset compiles the lexicon into phrase matchers. Families outside the
// closed taxonomy and dangling synonym or related targets are build errors.
func NewRuleset(cfg Config) (*Ruleset, error) {
	valueFamily := make(map[string]attribute.Family)
	familyNames := make([]string, 0, len(cfg.Families))
	for name := range cfg.Families {
		familyNames = append(familyNames, name)
	}
	sort.Strings(familyNames)

	var matchers []matcher
	for _, name := range familyNames {
		family := attribute.Family(name)
		if !family.IsValid() {
			return nil, fmt.Errorf("lexicon family %q is outside the taxonomy", name)
		}
		for _, value := range cfg.Families[name] {
			m, err := newMatcher(family, value, value, exactConfidence)
			if err != nil {
				return nil, err
			}
			matchers = append(matchers, m)
			valueFamily[m.assignment.Value()] = family
		}
	}

	for _, table := range []struct {
		surfaces   map[string]string
		confidence float64
		kind       string
	}{
		{cfg.Synonyms, synonymConfidence, "synonym"},
		{cfg.Related, relatedConfidence, "related term"},
	} {
		for _, surface := range sortedKeys(table.surfaces) {
			canonical := strings.ToLower(table.surfaces[surface])
			family, ok := valueFamily[canonical]
			if !ok {
				return nil, fmt.Errorf("%s %q maps to unknown value %q", table.kind, surface, canonical)
			}
			m, err := newMatcher(family, surface, canonical, table.confidence)
			if err != nil {
				return nil, err
			}
			matchers = append(matchers, m)
		}
	}

	priority := make(map[string]int, len(cfg.CategoryPriority))
	for i, value := range cfg.CategoryPriority {
		priority[strings.ToLower(value)] = i
	}

	return &Ruleset{matchers: matchers, priority: priority}, nil
}

func newMatcher(family attribute.Family, surface, canonical string, confidence float64) (matcher, error) {
	phrase := tokenize(surface)
	if len(phrase) == 0 {
		return matcher{}, fmt.Errorf("empty phrase for family %q", family)
	}
	a, err := attribute.New(family, canonical, confidence, attribute.SourceRule)
	if err != nil {
		return matcher{}, err
	}
	return matcher{phrase: phrase, assignment: a}, nil
}

// candidate is a matched phrase with the token position where it starts.
type candidate struct {
	m   matcher
	pos int
}

// Extract runs the keyword pass over text, keeping at most one assignment
// per family. Output is canonically ordered.
func (r *Ruleset) Extract(text string) []attribute.Assignment {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	best := make(map[attribute.Family]candidate)
	for _, m := range r.matchers {
		pos, ok := findPhrase(tokens, m.phrase)
		if !ok {
			continue
		}
		c := candidate{m: m, pos: pos}
		prev, seen := best[m.assignment.Family()]
		if !seen || r.better(c, prev) {
			best[m.assignment.Family()] = c
		}
	}

	out := make([]attribute.Assignment, 0, len(best))
	for _, c := range best {
		out = append(out, c.m.assignment)
	}
	attribute.Sort(out)
	return out
}

// better reports whether a should replace b as its family's winner. The
// chain is confidence, category priority, text position, then value, which
// leaves no room for map-iteration nondeterminism.
func (r *Ruleset) better(a, b candidate) bool {
	ca, cb := a.m.assignment.Confidence(), b.m.assignment.Confidence()
	if ca != cb {
		return ca > cb
	}
	if a.m.assignment.Family() == attribute.FamilyCategory {
		pa, pb := r.priorityOf(a.m.assignment.Value()), r.priorityOf(b.m.assignment.Value())
		if pa != pb {
			return pa < pb
		}
	}
	if a.pos != b.pos {
		return a.pos < b.pos
	}
	return a.m.assignment.Value() < b.m.assignment.Value()
}

func (r *Ruleset) priorityOf(value string) int {
	if idx, ok := r.priority[value]; ok {
		return idx
	}
	return len(r.priority)
}

// findPhrase returns the first token index where phrase occurs in tokens.
func findPhrase(tokens, phrase []string) (int, bool) {
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		match := true
		for j, p := range phrase {
			if tokens[i+j] != p {
				match = false
				break
			}
		}
		if match {
			return i, true
		}
	}
	return 0, false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// tokenize lowercases text and splits it into word tokens. Hyphens stay
// inside tokens so "t-shirt" survives as one term.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	tokens := fields[:0]
	for _, f := range fields {
		if f = strings.Trim(f, "-"); f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
