package output

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/weirdgate/weirdgate/internal/core"
	"github.com/weirdgate/weirdgate/internal/core/engine"
)

// TableFormatter renders results as an ASCII table, or as a Markdown table
// when Markdown is set.
type TableFormatter struct {
	Markdown bool
}

// FormatWindows renders one row per tracked window.
func (f *TableFormatter) FormatWindows(entries []core.WindowEntry) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Weird", "Context", "Count", "Window Start", "Last Seen"})

	for _, entry := range entries {
		t.AppendRow(table.Row{
			entry.Name,
			entry.Scope,
			entry.Window.Count,
			formatTime(entry.Window.WindowStart),
			formatTime(entry.Window.LastSeen),
		})
	}
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d windows", len(entries)), "", ""})

	return f.render(t), nil
}

// FormatSettings renders the effective settings as key/value rows.
func (f *TableFormatter) FormatSettings(report *SettingsReport) (string, error) {
	if report == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Setting", "Value"})
	t.AppendRow(table.Row{"threshold", report.Settings.Threshold})
	t.AppendRow(table.Row{"rate", report.Settings.Rate})
	t.AppendRow(table.Row{"window", report.Settings.WindowDuration.String()})
	t.AppendRow(table.Row{"normalize_pairs", strconv.FormatBool(report.NormalizePairs)})
	t.AppendRow(table.Row{"exemptions", formatNames(report.Exemptions)})
	t.AppendRow(table.Row{"global", formatNames(report.Global)})
	if report.Source != "" {
		t.AppendFooter(table.Row{"source", report.Source})
	}

	return f.render(t), nil
}

// FormatSimulation renders one row per burst followed by the totals.
func (f *TableFormatter) FormatSimulation(report *engine.SimulationReport) (string, error) {
	if report == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Offset", "Weird", "Context", "Raised", "Passed", "Window Count", "Window Start"})

	for _, burst := range report.Bursts {
		t.AppendRow(table.Row{
			burst.Offset.String(),
			burst.Name,
			burst.Context,
			burst.Raised,
			burst.Passed,
			burst.WindowCount,
			burst.WindowStart.String(),
		})
	}
	t.AppendFooter(table.Row{"", "", "total", report.Raised, report.Passed, "", ""})
	t.SetCaption("threshold=%d rate=%d window=%s",
		report.Settings.Threshold, report.Settings.Rate, report.Settings.WindowDuration)

	return f.render(t), nil
}

func (f *TableFormatter) render(t table.Writer) string {
	if f.Markdown {
		return t.RenderMarkdown()
	}
	return t.Render()
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format(time.RFC3339)
}
