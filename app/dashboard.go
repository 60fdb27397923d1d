package app

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"github.com/moshix/searchserver/config"
	"github.com/moshix/searchserver/stats"
)

// Styles (shared with the version output in cli.go)
var (
	appStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7aa2f7"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7aa2f7"))

	subHeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7dcfff")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a9b1d6"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9ece6a")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e0af68")).
			Bold(true)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#565f89"))
)

// Source supplies the live numbers the dashboard renders.
type Source struct {
	Stats      *stats.Stats
	QueueDepth func() int
	Workers    int
	Root       string
	Listeners  []string // e.g. "telnet 0.0.0.0:8023"
	Version    string
}

type model struct {
	src     Source
	snap    stats.Snapshot
	queue   int
	usage   string
	sampler *usageSampler
	stop    context.CancelFunc

	width    int
	height   int
	quitting bool
}

func newModel(src Source, stop context.CancelFunc) model {
	return model{src: src, sampler: &usageSampler{}, stop: stop}
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg { return tickMsg(time.Now()) }
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			if m.stop != nil {
				m.stop()
			}
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		m.snap = m.src.Stats.Snapshot()
		if m.src.QueueDepth != nil {
			m.queue = m.src.QueueDepth()
		}
		m.usage = m.sampler.text()
		return m, tick()
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}
	width := m.width
	if width <= 0 {
		width = 100
	}

	var header []string
	header = append(header, "")
	header = append(header, headerStyle.Render(fmt.Sprintf(" searchserver v%s", m.src.Version)))
	header = append(header, "")
	if len(m.src.Listeners) > 0 {
		header = append(header, subHeaderStyle.Render("📡 Listening: "+strings.Join(m.src.Listeners, " • ")))
	}
	target := fmt.Sprintf("📁 Corpus: %s (%s)", m.src.Root, config.GetFileTypeDescription())
	header = append(header, lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Render(target))

	engine := fmt.Sprintf("⚙️ Engine: Workers %d • Queue %d%s", m.src.Workers, m.queue, m.usage)
	header = append(header, lipgloss.NewStyle().Foreground(lipgloss.Color("#bb9af7")).Render(engine))

	rows := []string{
		metricRow("Current Clients", m.snap.ActiveClients),
		metricRow("Total Clients", m.snap.TotalClients),
		metricRow("Total Messages", m.snap.TotalMessages),
		metricRow("Total Commands", m.snap.TotalCommands),
		separatorStyle.Render(strings.Repeat("─", 32)),
	}
	for _, c := range m.snap.CommandNames() {
		rows = append(rows, metricRow("/"+string(c), m.snap.Commands[c]))
	}
	rows = append(rows,
		separatorStyle.Render(strings.Repeat("─", 32)),
		metricRow("Uptime", stats.FormatUptime(m.snap.Uptime)),
	)
	if !m.snap.Started.IsZero() {
		rows = append(rows, metricRow("Started", humanize.Time(m.snap.Started)))
	}

	box := appStyle.Width(width - 4).Render(strings.Join(rows, "\n"))
	footer := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Render("🔚 'q' stop server")

	return strings.Join(header, "\n") + "\n" + box + "\n" + footer
}

func metricRow(name string, value any) string {
	v := fmt.Sprint(value)
	if n, ok := value.(int); ok && n > 0 {
		v = successStyle.Render(humanize.Comma(int64(n)))
	}
	return infoStyle.Render(fmt.Sprintf("%-18s", name)) + " " + v
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// usageSampler derives CPU load from successive rusage samples.
type usageSampler struct {
	lastWall time.Time
	lastProc time.Duration
	have     bool
}

func (s *usageSampler) sample() (heap, rss uint64, cpu float64) {
	var ru unix.Rusage
	_ = unix.Getrusage(unix.RUSAGE_SELF, &ru)
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	heap = ms.HeapAlloc
	rss = uint64(ru.Maxrss) * 1024 // KB to bytes

	now := time.Now()
	proc := time.Duration(ru.Utime.Nano() + ru.Stime.Nano())
	if s.have {
		if wall := now.Sub(s.lastWall); wall > 0 {
			cpu = max((proc-s.lastProc).Seconds()/wall.Seconds()*100, 0)
		}
	}
	s.lastWall = now
	s.lastProc = proc
	s.have = true
	return heap, rss, cpu
}

func (s *usageSampler) text() string {
	heap, rss, cpu := s.sample()
	return fmt.Sprintf(" • Heap %s • RSS %s • CPU %5.1f%%", humanize.IBytes(heap), humanize.IBytes(rss), cpu)
}
