package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultFields is the reference vocabulary for mill test certificates.
var DefaultFields = []string{
	"FLANGE NO",
	"HEAT NO",
	"PLATE NO",
	"PRODUCT NO",
	"PART NO",
	"TEST CERTIFICATE NO",
}

// valueClass is what a fixed-schema field value may contain.
const valueClass = `([A-Z0-9\-/]+)`

// FieldRule pairs a field name with the pattern that extracts its value.
// Pattern must contain exactly one capture group.
type FieldRule struct {
	Name    string `mapstructure:"name" yaml:"name"`
	Pattern string `mapstructure:"pattern" yaml:"pattern"`
}

// Vocabulary is an ordered set of extraction rules.
type Vocabulary []FieldRule

// NewVocabulary builds rules for names. Patterns in overrides replace the
// generated rule for the matching field.
func NewVocabulary(names []string, overrides map[string]string) (Vocabulary, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("field vocabulary must not be empty")
	}

	patched := make(map[string]string, len(overrides))
	for k, v := range overrides {
		patched[NormalizeLabel(k)] = v
	}

	seen := make(map[string]bool, len(names))
	vocab := make(Vocabulary, 0, len(names))
	for _, raw := range names {
		name := NormalizeLabel(raw)
		if name == "" {
			return nil, fmt.Errorf("field vocabulary contains a blank name")
		}
		if seen[name] {
			continue
		}
		seen[name] = true

		pattern, ok := patched[name]
		if !ok {
			pattern = LabelPattern(name)
		}
		vocab = append(vocab, FieldRule{Name: name, Pattern: pattern})
	}
	return vocab, nil
}

// DefaultVocabulary returns the rules for DefaultFields.
func DefaultVocabulary() Vocabulary {
	v, _ := NewVocabulary(DefaultFields, nil)
	return v
}

// LabelPattern generates the default rule for a label: its words separated
// by optional whitespace, an optional ':' or '-' separator, then the value.
func LabelPattern(label string) string {
	return `(?i)` + labelWords(label) + `\s*[:\-]?\s*` + valueClass
}

// labelWords quotes the words of label and joins them with optional
// whitespace, so "HEAT NO" also reads "HEATNO" and "HEAT\tNO".
func labelWords(label string) string {
	words := strings.Fields(label)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(words, `\s*`)
}

// Names returns the field names in vocabulary order.
func (v Vocabulary) Names() []string {
	names := make([]string, len(v))
	for i, r := range v {
		names[i] = r.Name
	}
	return names
}

// Contains reports whether name is a vocabulary field.
func (v Vocabulary) Contains(name string) bool {
	name = NormalizeLabel(name)
	for _, r := range v {
		if r.Name == name {
			return true
		}
	}
	return false
}

type compiledRule struct {
	name string
	re   *regexp.Regexp
}

// FieldExtractor applies a vocabulary to page text.
type FieldExtractor struct {
	rules []compiledRule
	names []string
}

// NewFieldExtractor compiles every rule in vocab.
func NewFieldExtractor(vocab Vocabulary) (*FieldExtractor, error) {
	if len(vocab) == 0 {
		return nil, fmt.Errorf("field vocabulary must not be empty")
	}
	fe := &FieldExtractor{
		rules: make([]compiledRule, 0, len(vocab)),
		names: vocab.Names(),
	}
	for _, r := range vocab {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("field %q: invalid pattern: %w", r.Name, err)
		}
		if re.NumSubexp() != 1 {
			return nil, fmt.Errorf("field %q: pattern must have exactly one capture group, has %d",
				r.Name, re.NumSubexp())
		}
		fe.rules = append(fe.rules, compiledRule{name: r.Name, re: re})
	}
	return fe, nil
}

// NewDiscoveryExtractor extracts the rest of the line after "label:".
func NewDiscoveryExtractor(label string) (*FieldExtractor, error) {
	name := NormalizeLabel(label)
	if name == "" {
		return nil, fmt.Errorf("discovered label must not be blank")
	}
	return NewFieldExtractor(Vocabulary{{
		Name:    name,
		Pattern: `(?i)` + regexp.QuoteMeta(name) + `\s*:\s*([^\n]+)`,
	}})
}

// Fields returns the record keys this extractor produces.
func (fe *FieldExtractor) Fields() []string {
	return append([]string(nil), fe.names...)
}

// Extract returns a complete record for text. Fields without a match
// hold NotAvailable.
func (fe *FieldExtractor) Extract(text string) FieldRecord {
	rec := FieldRecord{
		Values: make(map[string]string, len(fe.rules)),
		order:  fe.names,
	}
	for _, r := range fe.rules {
		value := NotAvailable
		if m := r.re.FindStringSubmatch(text); m != nil {
			if v := strings.TrimSpace(m[1]); v != "" {
				value = v
			}
		}
		rec.Values[r.name] = value
	}
	return rec
}
