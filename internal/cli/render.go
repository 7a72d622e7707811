package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/specialistvlad/stepgrid/internal/node"
	"github.com/specialistvlad/stepgrid/internal/pipeline"
	"github.com/specialistvlad/stepgrid/internal/step"
)

var (
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorCached  = lipgloss.Color("#20B9B4")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#2C4A54")
)

// styles are created per writer so colors are only emitted to terminals.
type styles struct {
	title   lipgloss.Style
	muted   lipgloss.Style
	status  map[node.Status]lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title: r.NewStyle().Bold(true),
		muted: r.NewStyle().Foreground(colorMuted),
		status: map[node.Status]lipgloss.Style{
			node.StatusSuccess: r.NewStyle().Foreground(colorSuccess),
			node.StatusCached:  r.NewStyle().Foreground(colorCached),
			node.StatusFailed:  r.NewStyle().Foreground(colorError),
			node.StatusSkipped: r.NewStyle().Foreground(colorWarning),
			node.StatusPending: r.NewStyle().Foreground(colorMuted),
		},
		success: r.NewStyle().Bold(true).Foreground(colorSuccess),
		failure: r.NewStyle().Bold(true).Foreground(colorError),
	}
}

func (s styles) forStatus(st node.Status) lipgloss.Style {
	if style, ok := s.status[st]; ok {
		return style
	}
	return s.muted
}

type summaryRow struct {
	step     string
	status   node.Status
	duration string
	attempts string
	detail   string
}

// renderRun prints one line per step followed by the run verdict.
func renderRun(w io.Writer, run *pipeline.Run) {
	st := newStyles(w)
	rows := summaryRows(run)

	nameWidth := len("STEP")
	for _, r := range rows {
		nameWidth = max(nameWidth, len(r.step))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, st.title.Render(fmt.Sprintf("Run %s of %s", run.ID, run.Pipeline)))
	fmt.Fprintln(w, st.muted.Render(fmt.Sprintf("%-*s  %-8s  %9s  %8s  %s", nameWidth, "STEP", "STATUS", "DURATION", "ATTEMPTS", "DETAIL")))
	for _, r := range rows {
		status := st.forStatus(r.status).Render(fmt.Sprintf("%-8s", r.status))
		fmt.Fprintf(w, "%-*s  %s  %9s  %8s  %s\n", nameWidth, r.step, status, r.duration, r.attempts, r.detail)
	}

	verdict := st.success.Render("✓ succeeded")
	switch {
	case run.Cancelled:
		verdict = st.failure.Render("✗ cancelled")
	case !run.Success:
		verdict = st.failure.Render("✗ failed")
	}
	fmt.Fprintf(w, "%s in %s, cache hit rate %.0f%%\n", verdict, run.Duration.Round(time.Millisecond), run.CacheHitRate()*100)
	if run.Err != nil {
		fmt.Fprintln(w, st.failure.Render(run.Err.Error()))
	}
}

// summaryRows lists the finished steps in completion order, then the
// steps that never ran by name.
func summaryRows(run *pipeline.Run) []summaryRow {
	rows := make([]summaryRow, 0, len(run.Statuses))
	seen := make(map[string]bool, len(run.Results))
	for _, res := range run.Results {
		seen[res.Step] = true
		row := summaryRow{
			step:     res.Step,
			status:   res.Status,
			duration: res.Duration.Round(time.Millisecond).String(),
			attempts: fmt.Sprint(res.Attempts),
		}
		if res.Err != nil {
			row.detail = firstLine(res.Err.Error())
		}
		rows = append(rows, row)
	}

	var rest []string
	for name := range run.Statuses {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		rows = append(rows, summaryRow{step: name, status: run.Statuses[name], duration: "-", attempts: "-"})
	}
	return rows
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// renderGraph prints steps in execution order with their assets.
func renderGraph(w io.Writer, name string, order []*step.Step) {
	st := newStyles(w)
	fmt.Fprintln(w, st.title.Render(fmt.Sprintf("Pipeline %s (%d steps)", name, len(order))))
	for i, s := range order {
		fmt.Fprintf(w, "%3d. %s\n", i+1, s.Name())
		if in := s.Inputs(); len(in) > 0 {
			fmt.Fprintln(w, st.muted.Render("       inputs:  "+strings.Join(in, ", ")))
		}
		if out := s.Outputs(); len(out) > 0 {
			fmt.Fprintln(w, st.muted.Render("       outputs: "+strings.Join(out, ", ")))
		}
	}
}

// renderCacheEntries prints the entry count per step, sorted by name.
func renderCacheEntries(w io.Writer, counts map[string]int) {
	st := newStyles(w)
	names := make([]string, 0, len(counts))
	total := 0
	for name, n := range counts {
		names = append(names, name)
		total += n
	}
	sort.Strings(names)

	fmt.Fprintln(w, st.title.Render(fmt.Sprintf("%d cached entries", total)))
	for _, name := range names {
		fmt.Fprintf(w, "  %-24s %d\n", name, counts[name])
	}
}
