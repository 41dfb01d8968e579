package output

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weirdgate/weirdgate/internal/core"
	"github.com/weirdgate/weirdgate/internal/core/engine"
)

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("md")
	require.NoError(t, err)
	require.Equal(t, FormatMarkdown, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func sampleWindows() []core.WindowEntry {
	start := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	return []core.WindowEntry{
		core.NewWindowEntry(
			core.NewSamplingKey("bad_checksum", core.ConnectionContext("C1")),
			core.SamplingWindow{Count: 42, WindowStart: start, LastSeen: start.Add(time.Minute)},
		),
		core.NewWindowEntry(
			core.NewSamplingKey("dns_unmatched_reply", core.NoContext()),
			core.SamplingWindow{Count: 3, WindowStart: start},
		),
	}
}

func TestFormatWindows(t *testing.T) {
	entries := sampleWindows()

	rendered, err := NewFormatter(FormatTable).FormatWindows(entries)
	require.NoError(t, err)
	require.Contains(t, rendered, "WEIRD")
	require.Contains(t, rendered, "bad_checksum")
	require.Contains(t, rendered, "conn:C1")
	require.Contains(t, rendered, "2026-03-15T12:01:00Z")
	require.Contains(t, rendered, "2 WINDOWS")

	markdown, err := NewFormatter(FormatMarkdown).FormatWindows(entries)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(markdown, "| Weird |"))
	require.Contains(t, markdown, "| dns_unmatched_reply |")

	jsonRendered, err := NewFormatter(FormatJSON).FormatWindows(entries)
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(jsonRendered), &decoded))
	require.Len(t, decoded, 2)
	require.Equal(t, "conn:C1", decoded[0]["context"])
}

func TestFormatWindowsEmptyJSON(t *testing.T) {
	rendered, err := NewFormatter(FormatJSON).FormatWindows(nil)
	require.NoError(t, err)
	require.Equal(t, "[]", rendered)
}

func TestFormatSettings(t *testing.T) {
	report := &SettingsReport{
		Settings:       engine.Settings{Threshold: 10, Rate: 100, WindowDuration: 5 * time.Second},
		NormalizePairs: true,
		Exemptions:     []string{"DNS_RR_unknown_type"},
		Source:         "store",
	}

	rendered, err := NewFormatter(FormatTable).FormatSettings(report)
	require.NoError(t, err)
	require.Contains(t, rendered, "threshold")
	require.Contains(t, rendered, "5s")
	require.Contains(t, rendered, "DNS_RR_unknown_type")
	require.Contains(t, rendered, "(none)")

	jsonRendered, err := NewFormatter(FormatJSON).FormatSettings(report)
	require.NoError(t, err)
	require.Contains(t, jsonRendered, "\"normalize_pairs\": true")
	require.Contains(t, jsonRendered, "\"source\": \"store\"")
}

func TestFormatSimulation(t *testing.T) {
	report, err := engine.Simulate(
		engine.Options{Settings: engine.Settings{Threshold: 10, Rate: 10, WindowDuration: 5 * time.Second}},
		[]engine.Burst{
			{Offset: 0, Count: 30, Name: "DNS_RR_unknown_type"},
			{Offset: 2 * time.Second, Count: 30, Name: "DNS_RR_unknown_type"},
		},
	)
	require.NoError(t, err)

	rendered, err := NewFormatter(FormatTable).FormatSimulation(&report)
	require.NoError(t, err)
	require.Contains(t, rendered, "DNS_RR_unknown_type")
	require.Contains(t, rendered, "TOTAL")
	require.Contains(t, rendered, "15")
	require.Contains(t, rendered, "threshold=10 rate=10 window=5s")

	jsonRendered, err := NewFormatter(FormatJSON).FormatSimulation(&report)
	require.NoError(t, err)
	require.Contains(t, jsonRendered, "\"passed\": 15")
}

func TestNilReports(t *testing.T) {
	for _, format := range []Format{FormatTable, FormatJSON, FormatMarkdown} {
		f := NewFormatter(format)
		rendered, err := f.FormatSettings(nil)
		require.NoError(t, err)
		require.Empty(t, rendered)
		rendered, err = f.FormatSimulation(nil)
		require.NoError(t, err)
		require.Empty(t, rendered)
	}
}
