package output

import (
	"fmt"
	"strings"

	"github.com/weirdgate/weirdgate/internal/core"
	"github.com/weirdgate/weirdgate/internal/core/engine"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// SettingsReport is the effective sampling configuration and where it came
// from.
type SettingsReport struct {
	Settings       engine.Settings `json:"settings"`
	NormalizePairs bool            `json:"normalize_pairs"`
	Exemptions     []string        `json:"exemptions"`
	Global         []string        `json:"global"`
	Source         string          `json:"source,omitempty"`
}

// Formatter renders sampling state.
type Formatter interface {
	FormatWindows(entries []core.WindowEntry) (string, error)
	FormatSettings(report *SettingsReport) (string, error)
	FormatSimulation(report *engine.SimulationReport) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &TableFormatter{Markdown: true}
	default:
		return &TableFormatter{}
	}
}

func formatNames(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}
