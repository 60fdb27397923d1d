package server

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/moshix/searchserver/format"
	"github.com/moshix/searchserver/search"
	"github.com/moshix/searchserver/stats"
)

// Searcher runs a parsed query over the corpus.
type Searcher interface {
	Execute(ctx context.Context, q search.Query) (search.Result, error)
}

// Reply is the rendered response to one line. Close ends the session once
// the reply has been written.
type Reply struct {
	Text  string
	Close bool
}

type command struct {
	counter stats.Counter
	usage   string                   // non-empty when arguments are required
	check   func(args string) string // error message for malformed arguments
	run     func(ctx context.Context, args string, act *zap.Logger) Reply
}

// Dispatcher maps the first word of a command line to its handler.
type Dispatcher struct {
	commands   map[string]command
	searcher   Searcher
	videosFile string
	stats      *stats.Stats
	recorder   Recorder
	fmt        *format.Formatter
	log        *zap.Logger
}

// DispatcherOptions holds the collaborators of a Dispatcher.
type DispatcherOptions struct {
	Searcher   Searcher
	VideosFile string
	Stats      *stats.Stats
	Recorder   Recorder
	Formatter  *format.Formatter
	Logger     *zap.Logger
}

// NewDispatcher builds the command table.
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	d := &Dispatcher{
		searcher:   opts.Searcher,
		videosFile: opts.VideosFile,
		stats:      opts.Stats,
		recorder:   opts.Recorder,
		fmt:        opts.Formatter,
		log:        opts.Logger,
	}
	if d.recorder == nil {
		d.recorder = nopRecorder{}
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}

	d.commands = map[string]command{
		"/help":        {counter: stats.Help, run: d.help},
		"/search":      {counter: stats.Search, usage: "Usage: /search <keyword>", check: checkQuery, run: d.search},
		"/videosearch": {counter: stats.VideoSearch, usage: "Usage: /videosearch <keyword>", run: d.videoSearch},
		"/logoff":      {counter: stats.Logoff, run: d.logoff},
		"/stats":       {counter: stats.StatsCmd, run: d.showStats},
		"/uptime":      {counter: stats.Uptime, run: d.uptime},
	}
	return d
}

// Dispatch runs one command line. Unknown commands, missing arguments and
// malformed arguments produce an error reply without touching the
// per-command counters.
func (d *Dispatcher) Dispatch(ctx context.Context, line string, act *zap.Logger) Reply {
	name, args, _ := strings.Cut(strings.TrimSpace(line), " ")
	args = strings.TrimSpace(args)

	cmd, ok := d.commands[strings.ToLower(name)]
	if !ok {
		return Reply{Text: d.fmt.Error("Unknown command. Type /help for a list of commands.")}
	}
	if cmd.usage != "" && args == "" {
		return Reply{Text: d.fmt.Error(cmd.usage)}
	}
	if cmd.check != nil {
		if msg := cmd.check(args); msg != "" {
			return Reply{Text: d.fmt.Error(msg)}
		}
	}

	d.stats.Inc(cmd.counter)
	d.recorder.Command(string(cmd.counter))
	return cmd.run(ctx, args, act)
}

func (d *Dispatcher) help(context.Context, string, *zap.Logger) Reply {
	return Reply{Text: d.fmt.Help()}
}

func (d *Dispatcher) search(ctx context.Context, args string, act *zap.Logger) Reply {
	act.Info("Search command with keyword: " + args)

	q, err := search.ParseQuery(args)
	if err != nil {
		return Reply{Text: d.fmt.Error(queryError(err))}
	}

	res, err := d.searcher.Execute(ctx, q)
	if err != nil {
		d.log.Error("search failed", zap.String("query", q.String()), zap.Error(err))
		return Reply{Text: d.fmt.Error("Search failed. Please try again later.")}
	}
	return Reply{Text: d.fmt.SearchResult(q.String(), res)}
}

func checkQuery(args string) string {
	if _, err := search.ParseQuery(args); err != nil {
		return queryError(err)
	}
	return ""
}

func queryError(err error) string {
	if errors.Is(err, search.ErrTooManyKeywords) {
		return `Too many keywords. Usage: /search "<keyword1>" "<keyword2>"`
	}
	return "Usage: /search <keyword>"
}

func (d *Dispatcher) videoSearch(_ context.Context, args string, act *zap.Logger) Reply {
	act.Info("Video search command with keyword: " + args)

	found, err := search.SearchVideos(d.videosFile, args)
	if err != nil {
		d.log.Error("video search failed", zap.String("file", d.videosFile), zap.Error(err))
		return Reply{Text: d.fmt.Error("Video search failed. Please try again later.")}
	}
	return Reply{Text: d.fmt.VideoResult(strings.ToLower(args), d.videosFile, found)}
}

func (d *Dispatcher) logoff(context.Context, string, *zap.Logger) Reply {
	return Reply{Text: d.fmt.Logoff(), Close: true}
}

func (d *Dispatcher) showStats(context.Context, string, *zap.Logger) Reply {
	return Reply{Text: d.fmt.Stats(d.stats.Snapshot())}
}

func (d *Dispatcher) uptime(context.Context, string, *zap.Logger) Reply {
	return Reply{Text: d.fmt.Uptime(d.stats.Snapshot())}
}
