package server

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/moshix/searchserver/format"
	"github.com/moshix/searchserver/search"
	"github.com/moshix/searchserver/stats"
)

type stubSearcher struct {
	mu      sync.Mutex
	res     search.Result
	err     error
	queries []search.Query
}

func (s *stubSearcher) Execute(_ context.Context, q search.Query) (search.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	return s.res, s.err
}

type countingRecorder struct {
	mu       sync.Mutex
	opened   int
	closed   int
	messages int
	commands []string
}

func (r *countingRecorder) SessionOpened() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened++
}

func (r *countingRecorder) SessionClosed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
}

func (r *countingRecorder) Message() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages++
}

func (r *countingRecorder) Command(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, name)
}

func newTestDispatcher(t *testing.T, s Searcher, videos string) (*Dispatcher, *stats.Stats, *countingRecorder) {
	t.Helper()
	st := stats.New()
	rec := &countingRecorder{}
	d := NewDispatcher(DispatcherOptions{
		Searcher:   s,
		VideosFile: videos,
		Stats:      st,
		Recorder:   rec,
		Formatter:  format.New(false, 25, "test"),
	})
	return d, st, rec
}

func TestDispatch_UnknownCommand(t *testing.T) {
	d, st, rec := newTestDispatcher(t, &stubSearcher{}, "")

	r := d.Dispatch(context.Background(), "/bogus", zap.NewNop())
	assert.Equal(t, "Error: Unknown command. Type /help for a list of commands.", r.Text)
	assert.False(t, r.Close)
	snap := st.Snapshot()
	for _, c := range stats.Counters {
		assert.Zero(t, snap.Commands[c], c)
	}
	assert.Zero(t, snap.TotalCommands)
	assert.Empty(t, rec.commands)
}

func TestDispatch_MissingArguments(t *testing.T) {
	s := &stubSearcher{}
	d, st, _ := newTestDispatcher(t, s, "")

	r := d.Dispatch(context.Background(), "/search   ", zap.NewNop())
	assert.Equal(t, "Error: Usage: /search <keyword>", r.Text)

	r = d.Dispatch(context.Background(), "/videosearch", zap.NewNop())
	assert.Equal(t, "Error: Usage: /videosearch <keyword>", r.Text)

	assert.Empty(t, s.queries)
	assert.Zero(t, st.Snapshot().Commands[stats.Search])
	assert.Zero(t, st.Snapshot().Commands[stats.VideoSearch])
}

func TestDispatch_Search(t *testing.T) {
	s := &stubSearcher{res: search.Result{
		Outcome: search.Matches,
		Records: []search.MatchRecord{{Path: "a.txt", Location: "Line 1", Text: "The Cat sat"}},
	}}
	d, st, rec := newTestDispatcher(t, s, "")

	r := d.Dispatch(context.Background(), "/search Cat", zap.NewNop())
	assert.Contains(t, r.Text, "Files containing the keyword 'cat':")
	assert.Contains(t, r.Text, "The Cat sat")

	require.Len(t, s.queries, 1)
	assert.Equal(t, []search.Keyword{{Text: "cat"}}, s.queries[0].Keywords)
	assert.Equal(t, 1, st.Snapshot().Commands[stats.Search])
	assert.Equal(t, []string{"search"}, rec.commands)
}

func TestDispatch_SearchQuoted(t *testing.T) {
	s := &stubSearcher{}
	d, _, _ := newTestDispatcher(t, s, "")

	r := d.Dispatch(context.Background(), `/search "big  Cat" "sat"`, zap.NewNop())
	assert.Equal(t, "No files found containing the keyword 'big cat' 'sat'.", r.Text)
	require.Len(t, s.queries, 1)
	assert.Equal(t, []search.Keyword{{Text: "big cat", Phrase: true}, {Text: "sat", Phrase: true}}, s.queries[0].Keywords)

	r = d.Dispatch(context.Background(), `/search "a" "b" "c"`, zap.NewNop())
	assert.Contains(t, r.Text, "Too many keywords")
	assert.Len(t, s.queries, 1)
}

func TestDispatch_MalformedQueryIsNotCounted(t *testing.T) {
	s := &stubSearcher{}
	d, st, rec := newTestDispatcher(t, s, "")

	r := d.Dispatch(context.Background(), `/search "a" "b" "c"`, zap.NewNop())
	assert.Equal(t, `Error: Too many keywords. Usage: /search "<keyword1>" "<keyword2>"`, r.Text)

	r = d.Dispatch(context.Background(), `/search ""`, zap.NewNop())
	assert.Equal(t, "Error: Usage: /search <keyword>", r.Text)

	r = d.Dispatch(context.Background(), `/search "  " ""`, zap.NewNop())
	assert.Equal(t, "Error: Usage: /search <keyword>", r.Text)

	assert.Empty(t, s.queries)
	assert.Zero(t, st.Snapshot().Commands[stats.Search])
	assert.Empty(t, rec.commands)

	d.Dispatch(context.Background(), `/search "a" "b"`, zap.NewNop())
	assert.Equal(t, 1, st.Snapshot().Commands[stats.Search])
	assert.Equal(t, []string{"search"}, rec.commands)
}

func TestDispatch_SearchFailure(t *testing.T) {
	d, _, _ := newTestDispatcher(t, &stubSearcher{err: errors.New("boom")}, "")

	r := d.Dispatch(context.Background(), "/search cat", zap.NewNop())
	assert.Equal(t, "Error: Search failed. Please try again later.", r.Text)
}

func TestDispatch_TooManyResults(t *testing.T) {
	d, _, _ := newTestDispatcher(t, &stubSearcher{res: search.Result{Outcome: search.TooMany}}, "")

	r := d.Dispatch(context.Background(), "/search cat", zap.NewNop())
	assert.Equal(t, "Too many search results found. Stopping search.", r.Text)
}

func TestDispatch_VideoSearch(t *testing.T) {
	catalog := filepath.Join(t.TempDir(), "videos.txt")
	require.NoError(t, os.WriteFile(catalog, []byte("Moon landing\nCat videos\ncat facts\n"), 0o644))
	d, st, _ := newTestDispatcher(t, &stubSearcher{}, catalog)

	r := d.Dispatch(context.Background(), "/videosearch CAT", zap.NewNop())
	assert.Contains(t, r.Text, "Lines containing the keyword 'cat' in "+catalog+":")
	assert.Contains(t, r.Text, "2          Cat videos")
	assert.Contains(t, r.Text, "3          cat facts")
	assert.NotContains(t, r.Text, "Moon")
	assert.Equal(t, 1, st.Snapshot().Commands[stats.VideoSearch])

	r = d.Dispatch(context.Background(), "/videosearch dog", zap.NewNop())
	assert.Equal(t, "No lines found containing the keyword 'dog' in "+catalog+".", r.Text)
}

func TestDispatch_CaseInsensitiveNames(t *testing.T) {
	d, st, _ := newTestDispatcher(t, &stubSearcher{}, "")

	r := d.Dispatch(context.Background(), "/LOGOFF", zap.NewNop())
	assert.True(t, r.Close)
	assert.Equal(t, "Logging off...", r.Text)

	r = d.Dispatch(context.Background(), "/Help", zap.NewNop())
	assert.Contains(t, r.Text, "Available commands:")
	assert.False(t, r.Close)

	snap := st.Snapshot()
	assert.Equal(t, 1, snap.Commands[stats.Logoff])
	assert.Equal(t, 1, snap.Commands[stats.Help])
}

func TestDispatch_StatsAndUptime(t *testing.T) {
	d, st, _ := newTestDispatcher(t, &stubSearcher{}, "")
	st.ClientConnected()

	r := d.Dispatch(context.Background(), "/stats", zap.NewNop())
	assert.Contains(t, r.Text, "Current Clients           1")
	assert.Contains(t, r.Text, "Server Statistics (Version test):")

	r = d.Dispatch(context.Background(), "/uptime", zap.NewNop())
	assert.Contains(t, r.Text, "Server Uptime (Version test):")
	assert.Contains(t, r.Text, "Uptime               00:00:")
}
