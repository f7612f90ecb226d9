// Package display renders search results and ingestion summaries for the terminal.
package display

import (
	"fmt"
	"io"
	"strings"

	"mailcorpus/internal/ingest"
	"mailcorpus/internal/search"

	"github.com/charmbracelet/lipgloss"
)

var (
	Muted    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	Dim      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
	Bold     = lipgloss.NewStyle().Bold(true)
	Success  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	Warn     = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))
	ErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
	Label    = lipgloss.NewStyle().Foreground(lipgloss.Color("#2563eb"))
)

// Truncate shortens s to maxLen runes, adding an ellipsis if needed.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// SuccessMsg prints a green checkmark + message.
func SuccessMsg(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, Success.Render("✓")+" "+fmt.Sprintf(format, args...))
}

// ErrorMsg prints a red X + message.
func ErrorMsg(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, ErrStyle.Render("✗")+" "+fmt.Sprintf(format, args...))
}

func score(s *float64) string {
	if s == nil {
		return "  -  "
	}
	return fmt.Sprintf("%.3f", *s)
}

// SearchResults prints one block per result in backend order.
func SearchResults(w io.Writer, query string, results []search.Result) {
	if len(results) == 0 {
		fmt.Fprintf(w, "No results for %q.\n", query)
		return
	}
	fmt.Fprintln(w, Bold.Render(fmt.Sprintf("%d results for %q", len(results), query)))
	fmt.Fprintln(w)

	for i, r := range results {
		subject := r.Subject
		if subject == "" {
			subject = "(no subject)"
		}
		fmt.Fprintf(w, "%s %s  %s\n", Muted.Render(fmt.Sprintf("%2d.", i+1)), Dim.Render(score(r.Score)), Bold.Render(Truncate(subject, 80)))

		meta := []string{}
		if r.Sender != "" {
			meta = append(meta, r.Sender)
		}
		if r.Date != "" {
			meta = append(meta, r.Date)
		}
		meta = append(meta, r.ID)
		fmt.Fprintf(w, "    %s\n", Dim.Render(strings.Join(meta, "  ·  ")))

		if len(r.Categories) > 0 {
			labels := make([]string, 0, len(r.Categories))
			for _, c := range r.Categories {
				labels = append(labels, Label.Render("#"+c))
			}
			fmt.Fprintf(w, "    %s\n", strings.Join(labels, " "))
		}
		if r.Snippet != "" {
			fmt.Fprintf(w, "    %s\n", Truncate(strings.Join(strings.Fields(r.Snippet), " "), 120))
		}
		fmt.Fprintln(w)
	}
}

// IngestSummary prints the counters of one ingestion batch and the failed sources.
func IngestSummary(w io.Writer, s *ingest.Summary) {
	fmt.Fprintln(w, Bold.Render("Ingestion summary"))
	fmt.Fprintf(w, "  parsed      %d\n", s.Parsed)
	fmt.Fprintf(w, "  inserted    %s\n", Success.Render(fmt.Sprint(s.Added.Inserted)))
	fmt.Fprintf(w, "  duplicates  %s\n", Dim.Render(fmt.Sprint(s.Added.Duplicates)))
	if s.Added.MissingID > 0 {
		fmt.Fprintf(w, "  missing id  %s\n", Warn.Render(fmt.Sprint(s.Added.MissingID)))
	}
	if s.Synthetic > 0 {
		fmt.Fprintf(w, "  no msg-id   %s\n", Warn.Render(fmt.Sprint(s.Synthetic)))
	}
	if s.Rejected > 0 {
		fmt.Fprintf(w, "  rejected    %s\n", Warn.Render(fmt.Sprint(s.Rejected)))
	}
	if s.Indexed > 0 {
		fmt.Fprintf(w, "  indexed     %d\n", s.Indexed)
	}
	if s.Failed == 0 {
		return
	}
	fmt.Fprintf(w, "  failed      %s\n", ErrStyle.Render(fmt.Sprint(s.Failed)))
	for _, it := range s.Items {
		if it.Err != nil {
			fmt.Fprintf(w, "    %s %s\n", Muted.Render(it.Path), Dim.Render(it.Err.Error()))
		}
	}
}
