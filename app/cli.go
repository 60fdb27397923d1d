package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// Version renders the one-line version banner.
func Version(version string) string {
	return successStyle.Render("searchserver v" + version)
}

// Usage renders the styled summary shown above cobra's flag list.
func Usage(version string) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("searchserver v"+version) + "\n\n")
	b.WriteString(subHeaderStyle.Render("COMMANDS (over telnet or ssh)") + "\n")
	for _, l := range []string{
		"  /help                   Show the command list",
		`  /search <keyword>       AND search, quote phrases: /search "big cat" "sat"`,
		"  /videosearch <keyword>  Search the video catalog",
		"  /stats, /uptime         Server counters",
		"  /logoff                 Close the session",
	} {
		b.WriteString(infoStyle.Render(l) + "\n")
	}
	return b.String()
}

// Warn renders a startup warning.
func Warn(msg string) string {
	return warningStyle.Render("⚠ " + msg)
}

// Run shows the dashboard until the user quits or ctx ends. Quitting from
// the dashboard calls stop.
func Run(ctx context.Context, src Source, stop context.CancelFunc) error {
	p := tea.NewProgram(newModel(src, stop), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
