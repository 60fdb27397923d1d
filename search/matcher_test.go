package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustMatcher(t *testing.T, args string) *LineMatcher {
	t.Helper()
	q, err := ParseQuery(args)
	require.NoError(t, err)
	return NewLineMatcher(q)
}

func TestLineMatcher_MatchLine(t *testing.T) {
	tests := []struct {
		name string
		args string
		line string
		want bool
	}{
		{"token case-insensitive", "cat", "The Cat sat", true},
		{"token not a substring match", "cat", "concatenate strings", false},
		{"token with punctuation is a different token", "cat", "a cat, a dog", false},
		{"phrase across whitespace runs", `"big cat"`, "the  BIG\tcat sat", true},
		{"phrase is a substring", `"g ca"`, "big cat", true},
		{"quoted word is a substring", `"cat"`, "concatenate strings", true},
		{"quoted word ignores punctuation", `"cat"`, "a cat, a dog", true},
		{"bare words never span tokens", "cat sat", "The Cat sat", false},
		{"phrase absent", `"cat dog"`, "The Cat sat", false},
		{"AND both present", `"cat" "sat"`, "The Cat sat", true},
		{"AND one missing", `"cat" "dog"`, "The Cat sat", false},
		{"AND phrase and token", `"the cat" "sat"`, "The Cat sat", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, mustMatcher(t, tc.args).MatchLine(tc.line))
		})
	}
}

func TestLineMatcher_MatchText(t *testing.T) {
	lm := mustMatcher(t, "cat")
	text := "first line\r\n  The Cat sat  \r\nno match here\r\ncat\n"

	hits := lm.MatchText(text)
	assert.Equal(t, []Hit{
		{Location: "Line 2", Text: "The Cat sat"},
		{Location: "Line 4", Text: "cat"},
	}, hits)
}

func TestLineMatcher_PreCheckRejects(t *testing.T) {
	lm := mustMatcher(t, `"cat" "dog"`)
	assert.False(t, lm.ContainsAll("only a cat here"))
	assert.Nil(t, lm.MatchText("only a cat here\nand more cat"))
}

func TestLineMatcher_KeywordsOnDifferentLines(t *testing.T) {
	lm := mustMatcher(t, `"cat" "dog"`)
	// Passes the whole-document check but no single line holds both.
	assert.True(t, lm.ContainsAll("a cat\na dog"))
	assert.Empty(t, lm.MatchText("a cat\na dog"))
}

// Every returned line must contain all keywords.
func TestLineMatcher_ANDProperty(t *testing.T) {
	lm := mustMatcher(t, `"alpha" "beta"`)
	text := "alpha beta\nalpha\nbeta\nbeta gamma alpha\ngamma"
	hits := lm.MatchText(text)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Contains(t, h.Text, "alpha")
		assert.Contains(t, h.Text, "beta")
	}
}
