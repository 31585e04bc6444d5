package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// defaultLexiconYAML is the shipped vocabulary, compiled into the binary so
// the embeddable client works without a config directory. Deployments
// override it with config/lexicon.yaml.
//
//go:embed lexicon.yaml
var defaultLexiconYAML []byte

// Lexicon is the fashion vocabulary driving the guardrail gate and the
// rule-based attribute extractor. It ships as data so merchandising can tune
// terms without a redeploy.
type Lexicon struct {
	// Families maps each attribute family to its recognized values.
	Families map[string][]string `yaml:"families"`
	// Synonyms maps surface forms to canonical values (e.g. "trousers" -> "pants").
	Synonyms map[string]string `yaml:"synonyms"`
	// Related maps loosely associated phrases to canonical values. Matches
	// through this table carry lower extraction confidence than synonyms.
	Related map[string]string `yaml:"related"`
	// Polysemy maps terms with several plausible readings to their candidate
	// interpretations, ordered by historical query frequency.
	Polysemy map[string][]string `yaml:"polysemy"`
	// CategoryPriority breaks ties when a text mentions several categories;
	// earlier entries win.
	CategoryPriority []string `yaml:"category_priority"`
	// ExtraVocabulary lists fashion terms that count toward the on-topic
	// ratio but do not map to any attribute family.
	ExtraVocabulary []string `yaml:"extra_vocabulary"`
}

// LoadLexicon reads the vocabulary from a YAML file by name (without path).
func LoadLexicon(filename string) (Lexicon, error) {
	path := findConfigPath(filename)

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Lexicon{}, fmt.Errorf("failed to read lexicon %s: %w", path, err)
	}

	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return Lexicon{}, fmt.Errorf("failed to parse lexicon: %w", err)
	}

	if err := lex.Validate(); err != nil {
		return Lexicon{}, fmt.Errorf("invalid lexicon: %w", err)
	}

	return lex, nil
}

// MustLoadLexicon loads the vocabulary or panics.
func MustLoadLexicon(filename string) Lexicon {
	lex, err := LoadLexicon(filename)
	if err != nil {
		panic(err)
	}
	return lex
}

// DefaultLexicon returns the compiled-in vocabulary. It panics only if the
// embedded data is broken, which the package tests guard against.
func DefaultLexicon() Lexicon {
	var lex Lexicon
	if err := yaml.Unmarshal(defaultLexiconYAML, &lex); err != nil {
		panic("invalid embedded lexicon: " + err.Error())
	}
	if err := lex.Validate(); err != nil {
		panic("invalid embedded lexicon: " + err.Error())
	}
	return lex
}

// VocabularyTerms flattens the lexicon into the term list the query gate
// counts as fashion language: canonical values, their surface forms, and the
// extra vocabulary. Polysemous terms are handled by the gate itself.
func (l *Lexicon) VocabularyTerms() []string {
	var terms []string
	for _, values := range l.Families {
		terms = append(terms, values...)
	}
	for surface := range l.Synonyms {
		terms = append(terms, surface)
	}
	for surface := range l.Related {
		terms = append(terms, surface)
	}
	return append(terms, l.ExtraVocabulary...)
}

// Validate checks the lexicon for internal consistency.
func (l *Lexicon) Validate() error {
	if len(l.Families) == 0 {
		return fmt.Errorf("families is required")
	}
	values := make(map[string]bool)
	for family, list := range l.Families {
		if len(list) == 0 {
			return fmt.Errorf("family %q has no values", family)
		}
		for _, v := range list {
			values[v] = true
		}
	}
	for surface, canonical := range l.Synonyms {
		if !values[canonical] {
			return fmt.Errorf("synonym %q maps to unknown value %q", surface, canonical)
		}
	}
	for surface, canonical := range l.Related {
		if !values[canonical] {
			return fmt.Errorf("related term %q maps to unknown value %q", surface, canonical)
		}
	}
	for term, interpretations := range l.Polysemy {
		if len(interpretations) < 2 {
			return fmt.Errorf("polysemous term %q needs at least 2 interpretations, got %d",
				term, len(interpretations))
		}
	}
	return nil
}
