package format

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Tarrifer/chemical-equipment-visualizer/pkg/api"
)

func sampleResult() *api.UploadResult {
	return &api.UploadResult{
		TotalEquipment:     12,
		AverageFlowrate:    50.2,
		AveragePressure:    3.1,
		AverageTemperature: 88.0,
		TypeDistribution: api.Distribution{
			{Label: "Pump", Count: 5},
			{Label: "Valve", Count: 7},
		},
	}
}

func expectContains(t *testing.T, out, want, msg string) {
	t.Helper()
	if !strings.Contains(out, want) {
		t.Errorf("%s\noutput:\n%s", msg, out)
	}
}

func TestRenderSummaryVerbatimValues(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter()
	f.EnableColors = false

	if err := f.RenderSummary(sampleResult(), &buf); err != nil {
		t.Fatalf("RenderSummary returned error: %v", err)
	}

	out := buf.String()
	expectContains(t, out, "12", "total equipment missing")
	expectContains(t, out, "50.2", "average flowrate missing")
	expectContains(t, out, "3.1", "average pressure missing")
	// 88.0 decodes to a float that formats without a trailing zero.
	expectContains(t, out, "88", "average temperature missing")
	expectContains(t, out, "Total Equipment", "metric label missing")
}

func TestRenderSummaryNilResult(t *testing.T) {
	var buf bytes.Buffer
	if err := NewConsoleFormatter().RenderSummary(nil, &buf); err == nil {
		t.Error("expected error for nil result")
	}
}

func TestRenderChartPreservesServiceOrder(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter()
	f.EnableColors = false
	f.MaxBarWidth = 20

	if err := f.RenderChart(sampleResult(), &buf); err != nil {
		t.Fatalf("RenderChart returned error: %v", err)
	}

	out := buf.String()
	pumpIdx := strings.Index(out, "Pump")
	valveIdx := strings.Index(out, "Valve")
	if pumpIdx < 0 || valveIdx < 0 {
		t.Fatalf("missing chart labels:\n%s", out)
	}
	if pumpIdx > valveIdx {
		t.Errorf("expected Pump before Valve:\n%s", out)
	}
	expectContains(t, out, "5", "Pump count suffix missing")
	expectContains(t, out, "7", "Valve count suffix missing")
}

func TestRenderChartScalesBars(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter()
	f.EnableColors = false
	f.MaxBarWidth = 14

	res := &api.UploadResult{
		TypeDistribution: api.Distribution{
			{Label: "Reactor", Count: 7},
			{Label: "Pump", Count: 1},
		},
	}
	if err := f.RenderChart(res, &buf); err != nil {
		t.Fatalf("RenderChart returned error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected title plus two bars, got %d lines:\n%s", len(lines), buf.String())
	}
	bigBar := strings.Count(lines[1], "█")
	smallBar := strings.Count(lines[2], "█")
	if bigBar != 14 {
		t.Errorf("largest count should fill the bar width: got %d", bigBar)
	}
	if smallBar != 2 {
		t.Errorf("expected proportional bar of 2 cells, got %d", smallBar)
	}
}

func TestRenderChartEmptyDistribution(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter()
	f.EnableColors = false

	res := &api.UploadResult{TotalEquipment: 0}
	if err := f.RenderChart(res, &buf); err != nil {
		t.Fatalf("RenderChart returned error: %v", err)
	}
	expectContains(t, buf.String(), "No equipment type data", "empty distribution placeholder missing")
}

func TestRenderHistoryTable(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter()
	f.EnableColors = false

	entries := []api.HistoryEntry{
		{
			UploadedAt:         "2026-08-28 10:15",
			TotalEquipment:     12,
			AverageFlowrate:    50.2,
			AveragePressure:    3.1,
			AverageTemperature: 88.0,
			TypeDistribution:   api.Distribution{{Label: "Pump", Count: 5}, {Label: "Valve", Count: 7}},
		},
		{
			UploadedAt:     "2026-08-27 09:00",
			TotalEquipment: 3,
		},
	}
	if err := f.RenderHistory(entries, &buf); err != nil {
		t.Fatalf("RenderHistory returned error: %v", err)
	}

	out := buf.String()
	expectContains(t, out, "2026-08-28 10:15", "first entry timestamp missing")
	expectContains(t, out, "Pump, Valve", "type labels missing")
	first := strings.Index(out, "2026-08-28 10:15")
	second := strings.Index(out, "2026-08-27 09:00")
	if first > second {
		t.Errorf("expected service order preserved:\n%s", out)
	}
}

func TestRenderHistoryEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewConsoleFormatter().RenderHistory(nil, &buf); err != nil {
		t.Fatalf("RenderHistory returned error: %v", err)
	}
	expectContains(t, buf.String(), "No history available", "empty history placeholder missing")
}
