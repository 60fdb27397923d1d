package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name string
		args string
		want []Keyword
	}{
		{"bare word", "Cat", []Keyword{{Text: "cat"}}},
		{"quoted word", `"Cat"`, []Keyword{{Text: "cat", Phrase: true}}},
		{"two quoted words", `"cat" "DOG"`, []Keyword{{Text: "cat", Phrase: true}, {Text: "dog", Phrase: true}}},
		{"quoted phrase", `"Big   Cat"`, []Keyword{{Text: "big cat", Phrase: true}}},
		{"phrase and word", `"big cat" "sat"`, []Keyword{{Text: "big cat", Phrase: true}, {Text: "sat", Phrase: true}}},
		{"bare remainder is one token", "the  cat", []Keyword{{Text: "the cat"}}},
		{"text outside quotes ignored", `find "cat" please`, []Keyword{{Text: "cat", Phrase: true}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q, err := ParseQuery(tc.args)
			require.NoError(t, err)
			assert.Equal(t, tc.want, q.Keywords)
		})
	}
}

func TestParseQuery_Errors(t *testing.T) {
	tests := []struct {
		args string
		want error
	}{
		{"", ErrEmptyQuery},
		{"   ", ErrEmptyQuery},
		{`""`, ErrEmptyQuery},
		{`"a" "b" "c"`, ErrTooManyKeywords},
	}
	for _, tc := range tests {
		_, err := ParseQuery(tc.args)
		assert.ErrorIs(t, err, tc.want, tc.args)
	}
}

func TestQuery_String(t *testing.T) {
	q, err := ParseQuery(`"cat" "dog"`)
	require.NoError(t, err)
	assert.Equal(t, "cat' 'dog", q.String())
}
