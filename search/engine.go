package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/moshix/searchserver/config"
)

// Outcome classifies a finished search.
type Outcome int

const (
	Empty Outcome = iota
	Matches
	TooMany
)

// String returns the label used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case Matches:
		return "matches"
	case TooMany:
		return "too_many"
	default:
		return "empty"
	}
}

// MatchRecord is one hit: the file relative to the search root, the location
// inside it and the matched line in its original case.
type MatchRecord struct {
	Path     string
	Location string
	Text     string
}

// Result is the outcome of one search. Records is set only for Matches and
// keeps directory-walk order.
type Result struct {
	Outcome Outcome
	Records []MatchRecord
}

// Observer receives per-file and per-search measurements.
type Observer interface {
	ObserveFile(kind config.Kind, err error)
	ObserveSearch(outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveFile(config.Kind, error)      {}
func (nopObserver) ObserveSearch(string, time.Duration) {}

// Options configures a SearchEngine.
type Options struct {
	Root       string
	MaxResults int
	SkipDirs   []string
	Registry   *Registry
	Observer   Observer
	Logger     *zap.Logger
}

// SearchEngine fans a query out over every file under the root using the
// shared worker pool.
type SearchEngine struct {
	root       string
	maxResults int
	walker     *FileWalker
	registry   *Registry
	pool       *Pool
	observer   Observer
	log        *zap.Logger
}

// NewSearchEngine creates an engine that submits its file tasks to pool.
func NewSearchEngine(opts Options, pool *Pool) *SearchEngine {
	se := &SearchEngine{
		root:       opts.Root,
		maxResults: opts.MaxResults,
		walker:     NewFileWalker(opts.SkipDirs),
		registry:   opts.Registry,
		pool:       pool,
		observer:   opts.Observer,
		log:        opts.Logger,
	}
	if se.observer == nil {
		se.observer = nopObserver{}
	}
	if se.log == nil {
		se.log = zap.NewNop()
	}
	if se.registry == nil {
		se.registry = NewRegistry(PDFMatcher{Fallback: true, Log: se.log})
	}
	return se
}

// Root returns the directory being searched.
func (se *SearchEngine) Root() string { return se.root }

// maxPendingFiles bounds how many submitted files may wait for the collector
// before the walk blocks.
const maxPendingFiles = 64

// fileResult is what one file task hands back to the collector.
type fileResult struct {
	records []MatchRecord
}

// Execute runs q over the whole tree. Task results are merged in submission
// order. Once more than maxResults records have been merged the search
// returns TooMany at once: no further files are submitted, and tasks already
// queued still run but their results are dropped.
func (se *SearchEngine) Execute(ctx context.Context, q Query) (Result, error) {
	start := time.Now()
	res, err := se.execute(ctx, q)
	outcome := res.Outcome.String()
	if err != nil {
		outcome = "error"
	}
	se.observer.ObserveSearch(outcome, time.Since(start))
	return res, err
}

func (se *SearchEngine) execute(ctx context.Context, q Query) (Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lm := NewLineMatcher(q)
	futures := make(chan chan fileResult, maxPendingFiles)

	var walkErr error
	go func() {
		defer close(futures)
		walkErr = se.walker.Walk(ctx, se.root, func(path, rel string) error {
			kind, dm := se.registry.For(path)
			fut := make(chan fileResult, 1)
			if err := se.pool.Submit(ctx, func() {
				fut <- se.matchFile(path, rel, kind, dm, lm)
			}); err != nil {
				return err
			}
			select {
			case futures <- fut:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	var records []MatchRecord
	for fut := range futures {
		fr := <-fut
		records = append(records, fr.records...)
		if len(records) > se.maxResults {
			cancel()
			return Result{Outcome: TooMany}, nil
		}
	}

	if walkErr != nil {
		if errors.Is(walkErr, ErrPoolClosed) {
			return Result{}, walkErr
		}
		return Result{}, fmt.Errorf("search %s: %w", se.root, walkErr)
	}
	if len(records) == 0 {
		return Result{Outcome: Empty}, nil
	}
	return Result{Outcome: Matches, Records: records}, nil
}

// matchFile is the task boundary: any error or panic from a matcher is
// logged and counts as zero matches for that file.
func (se *SearchEngine) matchFile(path, rel string, kind config.Kind, dm DocumentMatcher, lm *LineMatcher) (fr fileResult) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("matcher panic: %v", r)
			se.log.Warn("file skipped", zap.String("path", rel), zap.String("kind", string(kind)), zap.Error(err))
			se.observer.ObserveFile(kind, err)
			fr = fileResult{}
		}
	}()

	hits, err := dm.Match(path, lm)
	se.observer.ObserveFile(kind, err)
	if err != nil {
		se.log.Warn("file skipped", zap.String("path", rel), zap.String("kind", string(kind)), zap.Error(err))
		return fileResult{}
	}

	records := make([]MatchRecord, len(hits))
	for i, h := range hits {
		records[i] = MatchRecord{Path: rel, Location: h.Location, Text: h.Text}
	}
	return fileResult{records: records}
}
