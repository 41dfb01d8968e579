package output

import (
	"encoding/json"

	"github.com/weirdgate/weirdgate/internal/core"
	"github.com/weirdgate/weirdgate/internal/core/engine"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatWindows renders window entries as a JSON array.
func (f *JSONFormatter) FormatWindows(entries []core.WindowEntry) (string, error) {
	if entries == nil {
		entries = []core.WindowEntry{}
	}
	return f.marshal(entries)
}

// FormatSettings renders a settings report as JSON.
func (f *JSONFormatter) FormatSettings(report *SettingsReport) (string, error) {
	if report == nil {
		return "", nil
	}
	return f.marshal(report)
}

// FormatSimulation renders a simulation report as JSON.
func (f *JSONFormatter) FormatSimulation(report *engine.SimulationReport) (string, error) {
	if report == nil {
		return "", nil
	}
	return f.marshal(report)
}

func (f *JSONFormatter) marshal(v any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
