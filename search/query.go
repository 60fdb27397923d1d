package search

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxKeywords is the largest number of keywords one query may AND together.
const MaxKeywords = 2

var (
	ErrEmptyQuery      = errors.New("empty search query")
	ErrTooManyKeywords = errors.New("too many keywords")
)

var quotedRegex = regexp.MustCompile(`"([^"]*)"`)

// Keyword is one lower-cased search term. Quoted keywords are phrases and
// match as a substring of the whitespace-normalized line. An unquoted keyword
// must appear as a whole whitespace-delimited token.
type Keyword struct {
	Text   string
	Phrase bool
}

// Query is an AND of one or two keywords.
type Query struct {
	Keywords []Keyword
}

// ParseQuery builds a Query from the raw argument text of /search. Every
// double-quoted substring becomes one keyword; without quotes the whole text
// is a single keyword.
func ParseQuery(args string) (Query, error) {
	var raw []string
	m := quotedRegex.FindAllStringSubmatch(args, -1)
	quoted := len(m) > 0
	if quoted {
		for _, sub := range m {
			raw = append(raw, sub[1])
		}
	} else {
		raw = []string{args}
	}

	var q Query
	for _, r := range raw {
		text := normalize(r)
		if text == "" {
			continue
		}
		q.Keywords = append(q.Keywords, Keyword{Text: text, Phrase: quoted})
	}

	switch {
	case len(q.Keywords) == 0:
		return Query{}, ErrEmptyQuery
	case len(q.Keywords) > MaxKeywords:
		return Query{}, ErrTooManyKeywords
	}
	return q, nil
}

// String joins the keyword texts for headers and logs.
func (q Query) String() string {
	parts := make([]string, len(q.Keywords))
	for i, k := range q.Keywords {
		parts[i] = k.Text
	}
	return strings.Join(parts, "' '")
}

// lower folds s to lower case. A Caser keeps state, so one is built per call.
func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

// normalize lower-cases s and collapses whitespace runs to single spaces.
func normalize(s string) string {
	return strings.Join(strings.Fields(lower(s)), " ")
}
