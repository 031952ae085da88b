package ui

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/geolist/internal/models"
	"github.com/desertthunder/geolist/internal/tasks"
	"github.com/dustin/go-humanize"
)

// maxErrorLines caps how many distinct error messages the summary lists.
const maxErrorLines = 5

// RenderSummary formats run statistics for the terminal.
func RenderSummary(result *tasks.RunResult) string {
	if result == nil {
		return styles.error.Render("No result available")
	}

	s := result.Stats
	var b strings.Builder

	b.WriteString(styles.title.Render(fmt.Sprintf("Resolved %s artists from %s tracks in %s",
		humanize.Comma(int64(s.Total)), humanize.Comma(int64(s.Tracks)), result.Duration.Round(time.Millisecond))))
	b.WriteString("\n")

	row := func(label string, n int, status models.OriginStatus) {
		b.WriteString(fmt.Sprintf("  %-12s %s", label, styles.Status(status).Render(humanize.Comma(int64(n)))))
		if s.Total > 0 {
			b.WriteString(styles.muted.Render(fmt.Sprintf(" (%.1f%%)", 100*float64(n)/float64(s.Total))))
		}
		b.WriteString("\n")
	}
	row("success", s.Success, models.StatusSuccess)
	row("not found", s.NotFound, models.StatusNotFound)
	row("ambiguous", s.Ambiguous, models.StatusAmbiguous)
	row("error", s.Error, models.StatusError)

	b.WriteString(styles.muted.Render(fmt.Sprintf("  %s from cache, %s requests", humanize.Comma(int64(s.FromCache)), humanize.Comma(int64(s.Requests)))))
	b.WriteString("\n")

	if s.Success > 0 {
		b.WriteString(styles.muted.Render(fmt.Sprintf("  missing among resolved: city %d, area %d, country %d", s.NoCity, s.NoArea, s.NoCountry)))
		b.WriteString("\n")
	}

	if len(s.Errors) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.warning.Render("Errors:"))
		b.WriteString("\n")
		for i, msg := range topErrors(s.Errors) {
			if i == maxErrorLines {
				b.WriteString(styles.muted.Render(fmt.Sprintf("  … and %d more", len(s.Errors)-maxErrorLines)))
				b.WriteString("\n")
				break
			}
			b.WriteString(fmt.Sprintf("  %s × %s\n", humanize.Comma(int64(s.Errors[msg])), msg))
		}
	}

	for _, path := range result.Outputs {
		b.WriteString(styles.success.Render("✓ "))
		b.WriteString(fmt.Sprintf("Wrote %s\n", path))
	}

	return strings.TrimRight(b.String(), "\n")
}

// topErrors orders error messages by frequency, then text.
func topErrors(errs map[string]int) []string {
	msgs := make([]string, 0, len(errs))
	for msg := range errs {
		msgs = append(msgs, msg)
	}
	slices.SortFunc(msgs, func(a, b string) int {
		if errs[a] != errs[b] {
			return errs[b] - errs[a]
		}
		return strings.Compare(a, b)
	})
	return msgs
}
