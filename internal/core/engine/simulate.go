package engine

import (
	"fmt"
	"time"

	"github.com/weirdgate/weirdgate/internal/core"
)

// Burst is a run of identical weirds raised at a single instant, Offset
// after the start of a simulation.
type Burst struct {
	Offset  time.Duration
	Count   int
	Name    string
	Context core.Context
}

// BurstResult is the outcome of one burst.
type BurstResult struct {
	Offset      time.Duration `json:"offset"`
	Name        string        `json:"name"`
	Context     string        `json:"context"`
	Raised      int           `json:"raised"`
	Passed      int           `json:"passed"`
	WindowCount uint64        `json:"window_count"`
	WindowStart time.Duration `json:"window_start"`
}

// SimulationReport summarizes a simulated run.
type SimulationReport struct {
	Settings Settings      `json:"settings"`
	Bursts   []BurstResult `json:"bursts"`
	Raised   int           `json:"raised"`
	Passed   int           `json:"passed"`
}

// Simulate replays bursts in order against a fresh engine built from opts,
// driving its clock from the burst offsets. opts.Clock is ignored.
func Simulate(opts Options, bursts []Burst) (SimulationReport, error) {
	start := time.Unix(0, 0).UTC()
	now := start
	opts.Clock = func() time.Time { return now }

	e, err := New(opts)
	if err != nil {
		return SimulationReport{}, err
	}

	report := SimulationReport{
		Settings: e.Settings(),
		Bursts:   make([]BurstResult, 0, len(bursts)),
	}
	for i, burst := range bursts {
		if burst.Offset < 0 {
			return SimulationReport{}, fmt.Errorf("%w: burst %d has negative offset", core.ErrInvalidArgument, i+1)
		}
		if burst.Count < 0 {
			return SimulationReport{}, fmt.Errorf("%w: burst %d has negative count", core.ErrInvalidArgument, i+1)
		}

		now = start.Add(burst.Offset)
		result := BurstResult{
			Offset:  burst.Offset,
			Name:    burst.Name,
			Context: burst.Context.String(),
			Raised:  burst.Count,
		}
		for n := 0; n < burst.Count; n++ {
			if e.ShouldEmit(burst.Name, burst.Context) {
				result.Passed++
			}
		}
		if w, ok := e.Ledger().Window(e.Key(burst.Name, burst.Context)); ok {
			result.WindowCount = w.Count
			result.WindowStart = w.WindowStart.Sub(start)
		}

		report.Raised += result.Raised
		report.Passed += result.Passed
		report.Bursts = append(report.Bursts, result)
	}
	return report, nil
}
