// Package stats keeps the process-wide session and command counters that
// back /stats and /uptime.
package stats

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Counter identifies one of the per-command counters.
type Counter string

const (
	Help        Counter = "help"
	Search      Counter = "search"
	VideoSearch Counter = "videosearch"
	Logoff      Counter = "logoff"
	StatsCmd    Counter = "stats"
	Uptime      Counter = "uptime"
)

// Counters lists the per-command counters in display order.
var Counters = []Counter{Help, Search, VideoSearch, Logoff, StatsCmd, Uptime}

// Snapshot is a consistent copy of every counter taken under one lock.
type Snapshot struct {
	ActiveClients int
	TotalClients  int
	TotalMessages int
	TotalCommands int
	Commands      map[Counter]int
	Started       time.Time
	Uptime        time.Duration
}

// CommandNames returns the counter names sorted as in Counters, followed by
// any unexpected names alphabetically.
func (s Snapshot) CommandNames() []Counter {
	out := make([]Counter, 0, len(s.Commands))
	seen := make(map[Counter]bool, len(Counters))
	for _, c := range Counters {
		if _, ok := s.Commands[c]; ok {
			out = append(out, c)
			seen[c] = true
		}
	}
	var extra []Counter
	for c := range s.Commands {
		if !seen[c] {
			extra = append(extra, c)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

// Stats aggregates counters shared by every session.
type Stats struct {
	mu       sync.Mutex
	now      func() time.Time
	started  time.Time
	active   int
	total    int
	messages int
	commands int
	perCmd   map[Counter]int
}

// New creates a Stats whose uptime starts now.
func New() *Stats {
	return NewWithClock(time.Now)
}

// NewWithClock creates a Stats using now as its time source.
func NewWithClock(now func() time.Time) *Stats {
	s := &Stats{
		now:    now,
		perCmd: make(map[Counter]int, len(Counters)),
	}
	s.started = now()
	for _, c := range Counters {
		s.perCmd[c] = 0
	}
	return s
}

// ClientConnected records a new session.
func (s *Stats) ClientConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active++
	s.total++
}

// ClientDisconnected records the end of a session.
func (s *Stats) ClientDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active > 0 {
		s.active--
	}
}

// Message records one received line.
func (s *Stats) Message() {
	s.mu.Lock()
	s.messages++
	s.mu.Unlock()
}

// Command records one line that starts with a slash.
func (s *Stats) Command() {
	s.mu.Lock()
	s.commands++
	s.mu.Unlock()
}

// Inc bumps the per-command counter c.
func (s *Stats) Inc(c Counter) {
	s.mu.Lock()
	s.perCmd[c]++
	s.mu.Unlock()
}

// Snapshot returns a copy of all counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmds := make(map[Counter]int, len(s.perCmd))
	for k, v := range s.perCmd {
		cmds[k] = v
	}
	return Snapshot{
		ActiveClients: s.active,
		TotalClients:  s.total,
		TotalMessages: s.messages,
		TotalCommands: s.commands,
		Commands:      cmds,
		Started:       s.started,
		Uptime:        s.now().Sub(s.started),
	}
}

// FormatUptime renders d as HH:MM:SS. Hours keep growing past 24.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}
