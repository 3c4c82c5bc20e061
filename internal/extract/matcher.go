package extract

import (
	"regexp"
	"strings"
)

// Matcher decides whether a page's text satisfies a query.
type Matcher interface {
	Match(text string) bool
}

// NewMatcher builds the matcher for q. The query is validated without a
// vocabulary; callers that enforce one validate first.
func NewMatcher(q Query) (Matcher, error) {
	if err := q.Validate(nil); err != nil {
		return nil, err
	}
	value := strings.TrimSpace(q.Value)

	switch q.Mode {
	case MatchText:
		return substringMatcher{re: literal(value)}, nil
	case MatchLine:
		return lineMatcher{re: literal(value)}, nil
	default:
		// Anything may sit between the separator and the value on the
		// same line.
		re := regexp.MustCompile(`(?i)` + labelWords(q.Field) + `\s*[:\-]\s*.*` + regexp.QuoteMeta(value))
		return fieldMatcher{re: re}, nil
	}
}

func literal(s string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(s))
}

type fieldMatcher struct{ re *regexp.Regexp }

func (m fieldMatcher) Match(text string) bool { return m.re.MatchString(text) }

type substringMatcher struct{ re *regexp.Regexp }

func (m substringMatcher) Match(text string) bool { return m.re.MatchString(text) }

type lineMatcher struct{ re *regexp.Regexp }

func (m lineMatcher) Match(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if m.re.MatchString(strings.TrimRight(line, "\r")) {
			return true
		}
	}
	return false
}
