package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"item-highlighter/internal/engine"
	"item-highlighter/internal/keylist"

	"github.com/charmbracelet/lipgloss"
)

var (
	okStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	failStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	dimStyle  = lipgloss.NewStyle().Faint(true)
	tagStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// renderResult prints one status line, green on success and red on failure.
func renderResult(w io.Writer, res engine.Result) {
	if !res.OK {
		fmt.Fprintf(w, "%s %s: %s\n", failStyle.Render("FAILED"), res.Op, res.Reason)
		return
	}

	detail := res.Path
	if res.Op == engine.OpHighlight {
		detail = fmt.Sprintf("%s (%d rewritten, %d already tagged)", res.Path, res.Stats.Rewritten, res.Stats.Skipped)
	}
	fmt.Fprintf(w, "%s %s %s %s\n", okStyle.Render("OK"), res.Op, detail, dimStyle.Render(res.Elapsed.Round(time.Millisecond).String()))
}

// renderLists prints one row per key list.
func renderLists(w io.Writer, files []keylist.File, hasBackup bool) {
	width := 0
	for _, f := range files {
		width = max(width, len(f.Name()))
	}
	name := lipgloss.NewStyle().Width(width + 2)

	for _, f := range files {
		box := "[ ]"
		if f.Enabled {
			box = okStyle.Render("[x]")
		}
		fmt.Fprintf(w, "%s %s%s %s\n",
			box,
			name.Render(f.Name()),
			tagStyle.Render(fmt.Sprintf("EM%d", f.Tag)),
			dimStyle.Render(fmt.Sprintf("(%d)", f.Lines)),
		)
	}

	backup := "no backup"
	if hasBackup {
		backup = "backup present"
	}
	fmt.Fprintln(w, dimStyle.Render(strings.Repeat("-", width+12)))
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%d lists, %d enabled, %s", len(files), len(keylist.Enabled(files)), backup)))
}

// renderStale notes saved settings that no longer match a list file.
func renderStale(w io.Writer, names []string) {
	for _, n := range names {
		fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("saved settings for missing list %s", n)))
	}
}
