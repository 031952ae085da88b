// Package ui renders pipeline runs in the terminal.
//
// [RenderSummary] formats a finished run's statistics with the lipgloss palette and is used for plain CLI output.
//
// [Run] shows a live progress display built on bubbletea's Elm architecture:
//   - a spinner and phase label for the current [tasks.Phase]
//   - a progress bar for paged fetches and origin lookups
//   - an optional log of recent lookups, colored by status (toggle with l)
//
// Progress updates flow through a channel from the [tasks.Pipeline], the same non-blocking channel the
// plain CLI ignores. Quitting (q, esc, ctrl+c) cancels the run; the display exits on its own once the
// run completes and leaves the summary on screen.
package ui
