package tui

import (
	"fmt"
	"io"

	"github.com/aretw0/balupi/pkg/domain"
	"github.com/muesli/termenv"
)

// PrintBanner writes the startup banner.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"  _           _             _ ", "#34d399"},
		{" | |__   __ _| |_   _ _ __ (_)", "#2dd4bf"},
		{" | '_ \\ / _` | | | | | '_ \\| |", "#22d3ee"},
		{" | |_) | (_| | | |_| | |_) | |", "#38bdf8"},
		{" |_.__/ \\__,_|_|\\__,_| .__/|_|", "#60a5fa"},
		{"                     |_|      ", "#818cf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintf(w, " %s\n\n", termenv.String("v"+version).Faint())
}

// StateColor is the hex colour used to render a host state.
func StateColor(s domain.HostState) string {
	switch s {
	case domain.StateOnline:
		return "#22c55e"
	case domain.StateBooting, domain.StateShuttingDown:
		return "#eab308"
	case domain.StateOffline:
		return "#ef4444"
	default:
		return "#9ca3af"
	}
}

// StateLabel renders a host state in its colour, or plain when the
// terminal has no colour support.
func StateLabel(s domain.HostState) string {
	p := termenv.ColorProfile()
	return termenv.String(string(s)).Foreground(p.Color(StateColor(s))).Bold().String()
}
