// Package format provides console rendering for analysis results and upload
// history. It adapts to the terminal width and supports color output.
package format

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"

	"github.com/Tarrifer/chemical-equipment-visualizer/pkg/api"
)

// barPalette is the fixed bar color sequence, cycled by bar index.
var barPalette = []text.Color{
	text.FgRed,
	text.FgBlue,
	text.FgYellow,
	text.FgCyan,
	text.FgMagenta,
	text.FgHiYellow,
}

// ConsoleFormatter renders analysis output in terminal-friendly tables and
// bar charts.
type ConsoleFormatter struct {
	// MaxBarWidth constrains the chart bar length in cells. If 0, a dynamic
	// width is chosen based on terminal width (with a sane minimum).
	MaxBarWidth int

	// MaxLabelColWidth constrains the equipment type label column.
	// If 0, a dynamic width is chosen.
	MaxLabelColWidth int

	// EnableColors toggles ANSI color output for chart bars.
	EnableColors bool
}

// NewConsoleFormatter creates a formatter with sensible defaults.
func NewConsoleFormatter() *ConsoleFormatter {
	return &ConsoleFormatter{
		MaxBarWidth:      0,
		MaxLabelColWidth: 0,
		EnableColors:     true,
	}
}

// RenderSummary writes the four aggregate metrics of an analysis result as a
// two-column table. Values are printed as the service reported them, without
// client-side rounding.
func (f *ConsoleFormatter) RenderSummary(res *api.UploadResult, writer io.Writer) error {
	if res == nil {
		return fmt.Errorf("nil result")
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(writer)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateRows = false
	tw.Style().Options.SeparateColumns = false
	tw.Style().Options.DrawBorder = true

	tw.AppendHeader(table.Row{"Metric", "Value"})
	tw.AppendRow(table.Row{"Total Equipment", fmt.Sprintf("%v", res.TotalEquipment)})
	tw.AppendRow(table.Row{"Average Flowrate", fmt.Sprintf("%v", res.AverageFlowrate)})
	tw.AppendRow(table.Row{"Average Pressure", fmt.Sprintf("%v", res.AveragePressure)})
	tw.AppendRow(table.Row{"Average Temperature", fmt.Sprintf("%v", res.AverageTemperature)})
	tw.Render()
	return nil
}

// RenderChart writes a horizontal bar chart of the equipment type
// distribution. Bars appear in the order the service reported the types,
// scaled so the largest count fills the available width.
func (f *ConsoleFormatter) RenderChart(res *api.UploadResult, writer io.Writer) error {
	if res == nil {
		return fmt.Errorf("nil result")
	}
	if len(res.TypeDistribution) == 0 {
		_, err := fmt.Fprintln(writer, "No equipment type data")
		return err
	}

	labelWidth := f.labelColWidth(res.TypeDistribution)
	barWidth := f.barWidth(writer, labelWidth)
	maxCount := res.TypeDistribution.MaxCount()

	if _, err := fmt.Fprintln(writer, "Equipment Type Distribution"); err != nil {
		return fmt.Errorf("failed writing chart title: %w", err)
	}
	for i, tc := range res.TypeDistribution {
		length := 0
		if maxCount > 0 && tc.Count > 0 {
			length = tc.Count * barWidth / maxCount
			if length < 1 {
				length = 1
			}
		}
		bar := f.color(strings.Repeat("█", length), barPalette[i%len(barPalette)])
		label := truncateRunes(tc.Label, labelWidth)
		if _, err := fmt.Fprintf(writer, "  %-*s %s %d\n", labelWidth, label, bar, tc.Count); err != nil {
			return fmt.Errorf("failed writing chart bar for %s: %w", tc.Label, err)
		}
	}
	return nil
}

// RenderHistory writes the recent uploads as a table, in the order the
// service returned them. An empty history renders a placeholder line rather
// than an empty table.
func (f *ConsoleFormatter) RenderHistory(entries []api.HistoryEntry, writer io.Writer) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(writer, "No history available")
		return err
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(writer)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateRows = false
	tw.Style().Options.SeparateColumns = false
	tw.Style().Options.DrawBorder = true

	tw.AppendHeader(table.Row{"Uploaded", "Total", "Flowrate", "Pressure", "Temperature", "Types"})
	for _, e := range entries {
		tw.AppendRow(table.Row{
			e.UploadedAt,
			fmt.Sprintf("%v", e.TotalEquipment),
			fmt.Sprintf("%v", e.AverageFlowrate),
			fmt.Sprintf("%v", e.AveragePressure),
			fmt.Sprintf("%v", e.AverageTemperature),
			strings.Join(e.TypeDistribution.Labels(), ", "),
		})
	}
	tw.Render()
	return nil
}

// labelColWidth picks a label column width from the data, bounded by the
// configured maximum.
func (f *ConsoleFormatter) labelColWidth(dist api.Distribution) int {
	maxLen := 0
	for _, tc := range dist {
		if l := utf8.RuneCountInString(tc.Label); l > maxLen {
			maxLen = l
		}
	}
	if f.MaxLabelColWidth > 0 && maxLen > f.MaxLabelColWidth {
		return f.MaxLabelColWidth
	}
	if maxLen < 4 {
		return 4
	}
	return maxLen
}

// barWidth picks the maximum bar length, leaving room for the label column
// and count suffix.
func (f *ConsoleFormatter) barWidth(w io.Writer, labelWidth int) int {
	if f.MaxBarWidth > 0 {
		return f.MaxBarWidth
	}
	width := detectTerminalWidth(w)
	if width <= 0 {
		width = 80
	}
	// indent + label + spaces + count suffix
	bar := width - labelWidth - 10
	if bar < 10 {
		bar = 10
	}
	return bar
}

// detectTerminalWidth attempts to get terminal width if writer is a file (stdout/stderr).
func detectTerminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			return width
		}
	}
	// Try stdout as fallback
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		return width
	}
	return -1
}

// truncateRunes truncates a string to (max) runes with ellipsis.
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	var b strings.Builder
	count := 0
	for _, r := range s {
		if count >= max-1 {
			break
		}
		b.WriteRune(r)
		count++
	}
	b.WriteRune('…')
	return b.String()
}

func (f *ConsoleFormatter) color(s string, c text.Color) string {
	if !f.EnableColors {
		return s
	}
	return text.Colors{c}.Sprint(s)
}
