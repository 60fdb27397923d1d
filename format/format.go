// Package format renders command responses as \r\n separated text with ANSI
// colors, including the paginated search result tables.
package format

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// LineSep terminates every line sent to a client.
const LineSep = "\r\n"

// Formatter builds every response string. Styles are rendered through a
// renderer with a fixed profile because the output goes to a remote peer,
// not to the local terminal.
type Formatter struct {
	green  lipgloss.Style
	blue   lipgloss.Style
	cyan   lipgloss.Style
	yellow lipgloss.Style
	red    lipgloss.Style

	pageSize int
	version  string
}

// New creates a Formatter. With color disabled every style renders plain
// text.
func New(color bool, pageSize int, version string) *Formatter {
	r := lipgloss.NewRenderer(io.Discard)
	if color {
		r.SetColorProfile(termenv.ANSI)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	r.SetHasDarkBackground(true)

	if pageSize < 1 {
		pageSize = 25
	}
	return &Formatter{
		green:    r.NewStyle().Foreground(lipgloss.Color("2")),
		blue:     r.NewStyle().Foreground(lipgloss.Color("4")),
		cyan:     r.NewStyle().Foreground(lipgloss.Color("6")),
		yellow:   r.NewStyle().Foreground(lipgloss.Color("3")),
		red:      r.NewStyle().Foreground(lipgloss.Color("1")),
		pageSize: pageSize,
		version:  version,
	}
}

// render styles one line. lipgloss pads multi-line input to a block, so
// callers must never pass text containing newlines.
func render(s lipgloss.Style, line string) string {
	return s.Render(line)
}

// lines joins rendered lines with LineSep.
func lines(ls ...string) string {
	return strings.Join(ls, LineSep)
}

// Paginate groups body lines into pages of pageSize and prefixes every page
// with header. Pages are joined with LineSep.
func Paginate(header string, body []string, pageSize int) string {
	if pageSize < 1 {
		pageSize = 1
	}
	pages := make([]string, 0, (len(body)+pageSize-1)/pageSize)
	for i := 0; i < len(body); i += pageSize {
		end := min(i+pageSize, len(body))
		pages = append(pages, header+LineSep+strings.Join(body[i:end], LineSep))
	}
	return strings.Join(pages, LineSep)
}

// Welcome is the banner sent when a session starts.
func (f *Formatter) Welcome(transport string) string {
	return render(f.green, fmt.Sprintf("Welcome to the %s server! Version: %s", transport, f.version))
}

// Error is the uniform usage error line.
func (f *Formatter) Error(msg string) string {
	return render(f.red, "Error: "+msg)
}

// Logoff acknowledges /logoff.
func (f *Formatter) Logoff() string {
	return render(f.yellow, "Logging off...")
}

// ResponseTime is the footer appended to every response.
func (f *Formatter) ResponseTime(d time.Duration) string {
	return render(f.cyan, fmt.Sprintf("Response time: %.4f seconds", d.Seconds()))
}

// Echo returns a non-command line unchanged.
func (f *Formatter) Echo(line string) string {
	return line
}

type helpEntry struct {
	usage string
	desc  string
}

var helpEntries = []helpEntry{
	{"/help", "Show this help message"},
	{"/search <keyword>", "Search files in the specified directory for a keyword"},
	{"/videosearch <keyword>", "Search for lines containing the keyword in the video catalog"},
	{"/logoff", "Log off from the server"},
	{"/stats", "Show server statistics"},
	{"/uptime", "Show server uptime and start time"},
}

// Help lists the available commands.
func (f *Formatter) Help() string {
	out := []string{
		render(f.blue, "Available commands:"),
		render(f.blue, fmt.Sprintf("%-24s %s", "Command", "Description")),
		strings.Repeat("-", 40),
	}
	for _, e := range helpEntries {
		out = append(out, render(f.blue, fmt.Sprintf("%-24s", e.usage))+" "+e.desc)
	}
	out = append(out, fmt.Sprintf("%-24s %s", "", `Quote phrases, up to two terms: /search "big cat" "sat"`))
	return lines(out...)
}
