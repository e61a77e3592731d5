package resolver

import (
	"regexp"
	"sync"
)

// Extractor pulls named parameters out of unstructured model output.
type Extractor interface {
	// Extract returns the value for each name it finds. Missing names are
	// absent from the result.
	Extract(text string, names []string) map[string]string
}

// RegexExtractor matches `name["\s:]+value` where value is a double-quoted
// string or a bare token. Bare tokens also stop at JSON punctuation
// ({ } [ ] :), and name must not follow a word character.
type RegexExtractor struct {
	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{patterns: map[string]*regexp.Regexp{}}
}

func (e *RegexExtractor) Extract(text string, names []string) map[string]string {
	out := map[string]string{}
	for _, name := range names {
		m := e.pattern(name).FindStringSubmatch(text)
		if m == nil {
			continue
		}
		value := m[1]
		if value == "" {
			value = m[2]
		}
		if value == "" {
			continue
		}
		out[name] = value
	}
	return out
}

func (e *RegexExtractor) pattern(name string) *regexp.Regexp {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.patterns == nil {
		e.patterns = map[string]*regexp.Regexp{}
	}
	if re, ok := e.patterns[name]; ok {
		return re
	}
	// The separator is lazy so a quoted value is preferred over stopping at
	// the opening quote.
	re := regexp.MustCompile(`(?:^|[^A-Za-z0-9_])` + regexp.QuoteMeta(name) + `["\s:]+?(?:"([^"]*)"|([^\s,"'{}\[\]:]+))`)
	e.patterns[name] = re
	return re
}
