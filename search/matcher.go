package search

import (
	"fmt"
	"slices"
	"strings"
)

// Hit is one matching line inside a single document.
type Hit struct {
	Location string
	Text     string
}

// LineMatcher applies the AND semantics of a Query to document text.
type LineMatcher struct {
	keywords []Keyword
	tokens   bool // at least one keyword needs whole-token matching
}

// NewLineMatcher creates a matcher for q.
func NewLineMatcher(q Query) *LineMatcher {
	lm := &LineMatcher{keywords: q.Keywords}
	for _, k := range q.Keywords {
		if !k.Phrase {
			lm.tokens = true
		}
	}
	return lm
}

// ContainsAll is the cheap whole-document reject: every keyword must occur
// as a substring of the normalized text.
func (lm *LineMatcher) ContainsAll(text string) bool {
	return lm.containsAllNormalized(normalize(text))
}

func (lm *LineMatcher) containsAllNormalized(norm string) bool {
	for _, k := range lm.keywords {
		if !strings.Contains(norm, k.Text) {
			return false
		}
	}
	return true
}

// MatchLine reports whether a single line satisfies every keyword.
func (lm *LineMatcher) MatchLine(line string) bool {
	norm := normalize(line)
	if !lm.containsAllNormalized(norm) {
		return false
	}
	if !lm.tokens {
		return true
	}

	fields := strings.Fields(norm)
	for _, k := range lm.keywords {
		if k.Phrase {
			continue
		}
		if !slices.Contains(fields, k.Text) {
			return false
		}
	}
	return true
}

// lineHit is a matching line with its 1-based number.
type lineHit struct {
	n    int
	text string
}

// scan runs the whole-text pre-check, then returns every matching line.
func (lm *LineMatcher) scan(text string) []lineHit {
	if !lm.ContainsAll(text) {
		return nil
	}

	var hits []lineHit
	for i, line := range strings.Split(text, "\n") {
		if lm.MatchLine(line) {
			hits = append(hits, lineHit{n: i + 1, text: strings.TrimSpace(line)})
		}
	}
	return hits
}

// MatchText returns one "Line N" hit per matching line of text.
func (lm *LineMatcher) MatchText(text string) []Hit {
	lines := lm.scan(text)
	if len(lines) == 0 {
		return nil
	}
	hits := make([]Hit, len(lines))
	for i, l := range lines {
		hits[i] = Hit{Location: fmt.Sprintf("Line %d", l.n), Text: l.text}
	}
	return hits
}
