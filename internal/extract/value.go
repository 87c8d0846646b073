package extract

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
)

// Schema patterns are authored for a .NET regex engine; regexp2 accepts the
// same syntax (lookarounds, named groups, Unicode \w).
const matchTimeout = 2 * time.Second

type patternCache struct {
	mu sync.Mutex
	m  map[string]*regexp2.Regexp
}

func (c *patternCache) get(pattern string) (*regexp2.Regexp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if re, ok := c.m[pattern]; ok {
		return re, nil
	}
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = matchTimeout
	if c.m == nil {
		c.m = make(map[string]*regexp2.Regexp)
	}
	c.m[pattern] = re
	return re, nil
}

// fieldValue picks the value out of zone OCR text: the first capture group of
// pattern when it matches, else keyword extraction on field.
func (c *patternCache) fieldValue(text, pattern, field string) string {
	if pattern != "" {
		re, err := c.get(pattern)
		if err != nil {
			slog.Warn("Invalid zone pattern, using keyword extraction", "field", field, "pattern", pattern, "error", err)
		} else if v, ok := captureOne(re, text); ok {
			return v
		}
	}
	return c.keywordValue(text, field)
}

// keywordValue finds keyword in text and returns the word characters after
// it, allowing one ':', '-' or '=' separator. When nothing follows on the
// keyword's line, the trimmed text after the next line break is returned.
func (c *patternCache) keywordValue(text, keyword string) string {
	if keyword == "" {
		return ""
	}
	re, err := c.get(regexp2.Escape(keyword) + `\s*[:\-=]?\s*([\w\s]*)`)
	if err != nil {
		return ""
	}
	m, err := re.FindStringMatch(text)
	if err != nil || m == nil {
		return ""
	}
	if v := strings.TrimSpace(m.GroupByNumber(1).String()); v != "" {
		return v
	}

	// Match indexes count runes.
	runes := []rune(text)
	for i := m.Index; i < len(runes); i++ {
		if runes[i] == '\n' {
			return strings.TrimSpace(string(runes[i:]))
		}
	}
	return ""
}

// lineValue is the whole-page lookup: everything after field on its line.
func (c *patternCache) lineValue(text, field string) (string, bool) {
	re, err := c.get(regexp2.Escape(field) + `(.*)`)
	if err != nil {
		return "", false
	}
	v, ok := captureOne(re, text)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// captureOne returns group 1 of the first match, or the whole match for
// patterns without groups.
func captureOne(re *regexp2.Regexp, text string) (string, bool) {
	m, err := re.FindStringMatch(text)
	if err != nil {
		slog.Warn("Pattern match failed", "pattern", re.String(), "error", err)
		return "", false
	}
	if m == nil {
		return "", false
	}
	if g := m.GroupByNumber(1); g != nil {
		return g.String(), true
	}
	return m.String(), true
}

func describeZone(field, name string) string {
	if name == "" || name == field {
		return field
	}
	return fmt.Sprintf("%s (%s)", field, name)
}
