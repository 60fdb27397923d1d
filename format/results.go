package format

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/moshix/searchserver/search"
	"github.com/moshix/searchserver/stats"
)

const startTimeLayout = "2006-01-02 15:04:05"

// SearchResult renders a corpus search. keyword is shown as typed by the
// client.
func (f *Formatter) SearchResult(keyword string, res search.Result) string {
	switch res.Outcome {
	case search.TooMany:
		return render(f.red, "Too many search results found. Stopping search.")
	case search.Empty:
		return render(f.red, fmt.Sprintf("No files found containing the keyword '%s'.", keyword))
	}

	header := lines(
		render(f.green, fmt.Sprintf("Files containing the keyword '%s':", keyword)),
		render(f.green, fmt.Sprintf("%-5s %-43s %-10s %s", "No.", "File", "Location", "Content")),
		strings.Repeat("-", 100),
	)
	body := make([]string, len(res.Records))
	for i, r := range res.Records {
		body[i] = fmt.Sprintf("%-5s %s %s %s",
			fmt.Sprintf("%d.", i+1),
			render(f.blue, fmt.Sprintf("%-43s", r.Path)),
			render(f.yellow, fmt.Sprintf("%-10s", r.Location)),
			r.Text,
		)
	}
	return Paginate(header, body, f.pageSize)
}

// VideoResult renders a video catalog search.
func (f *Formatter) VideoResult(keyword, catalog string, found []search.VideoLine) string {
	if len(found) == 0 {
		return render(f.red, fmt.Sprintf("No lines found containing the keyword '%s' in %s.", keyword, catalog))
	}

	header := lines(
		render(f.green, fmt.Sprintf("Lines containing the keyword '%s' in %s:", keyword, catalog)),
		render(f.green, fmt.Sprintf("%-10s %-50s", "Location", "Content")),
		strings.Repeat("-", 55),
	)
	body := make([]string, len(found))
	for i, l := range found {
		body[i] = render(f.yellow, fmt.Sprintf("%-10d %s", l.Number, l.Text))
	}
	return Paginate(header, body, f.pageSize)
}

func (f *Formatter) metricRow(width int, name string, value any) string {
	return render(f.green, fmt.Sprintf("%-*s %v", width, name, value))
}

// uptimeRows are shared by /uptime and /stats.
func (f *Formatter) uptimeRows(width int, snap stats.Snapshot) []string {
	return []string{
		f.metricRow(width, "Uptime", stats.FormatUptime(snap.Uptime)),
		f.metricRow(width, "Start Time", snap.Started.Format(startTimeLayout)),
	}
}

// Uptime renders /uptime.
func (f *Formatter) Uptime(snap stats.Snapshot) string {
	const width = 20
	out := []string{
		render(f.green, fmt.Sprintf("Server Uptime (Version %s):", f.version)),
		render(f.green, fmt.Sprintf("%-*s %s", width, "Metric", "Value")),
		strings.Repeat("-", 50),
	}
	out = append(out, f.uptimeRows(width, snap)...)
	out = append(out, f.metricRow(width, "Started",
		humanize.RelTime(snap.Started, snap.Started.Add(snap.Uptime), "ago", "from now")))
	return lines(out...)
}

// Stats renders /stats.
func (f *Formatter) Stats(snap stats.Snapshot) string {
	const width = 25
	out := []string{
		render(f.blue, fmt.Sprintf("Server Statistics (Version %s):", f.version)),
		render(f.green, fmt.Sprintf("%-*s %s", width, "Metric", "Value")),
		strings.Repeat("-", 35),
		f.metricRow(width, "Current Clients", snap.ActiveClients),
		f.metricRow(width, "Total Clients", snap.TotalClients),
		f.metricRow(width, "Total Messages", snap.TotalMessages),
		f.metricRow(width, "Search Commands", snap.Commands[stats.Search]),
		f.metricRow(width, "Video Search Commands", snap.Commands[stats.VideoSearch]),
		f.metricRow(width, "Total Commands", snap.TotalCommands),
	}
	out = append(out, f.uptimeRows(width, snap)...)
	return lines(out...)
}
