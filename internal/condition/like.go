package condition

import (
	"regexp"
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

// patternCache holds compiled LIKE patterns keyed by their folded source
type patternCache struct {
	mu       sync.Mutex
	compiled map[string]*regexp.Regexp
	fold     cases.Caser
}

func newPatternCache() *patternCache {
	return &patternCache{
		compiled: make(map[string]*regexp.Regexp),
		fold:     cases.Fold(),
	}
}

// match applies a LIKE pattern to a value. '%' matches any run of
// characters, '_' exactly one, and the whole value must match. Both sides are
// case folded first.
func (c *patternCache) match(pattern, value interface{}) bool {
	if value == nil {
		return false
	}
	re := c.get(text(pattern))
	return re.MatchString(c.foldString(text(value)))
}

func (c *patternCache) get(pattern string) *regexp.Regexp {
	c.mu.Lock()
	defer c.mu.Unlock()

	folded := c.fold.String(pattern)
	if re, ok := c.compiled[folded]; ok {
		return re
	}
	re := regexp.MustCompile(translate(folded))
	c.compiled[folded] = re
	return re
}

func (c *patternCache) foldString(s string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fold.String(s)
}

// translate rewrites SQL wildcards as an anchored regular expression
func translate(pattern string) string {
	var b strings.Builder
	b.WriteString(`(?s)^`)
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(`.*`)
		case '_':
			b.WriteString(`.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString(`$`)
	return b.String()
}
