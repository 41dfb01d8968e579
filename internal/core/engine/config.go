package engine

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/weirdgate/weirdgate/internal/core"
)

// Defaults applied when no configuration is supplied.
const (
	DefaultThreshold      uint64 = 25
	DefaultRate           uint64 = 1000
	DefaultWindowDuration        = 10 * time.Minute
)

// SamplingConfig holds the threshold, rate and window duration read on every
// decision. Each field is read and written atomically; setters take effect
// on the next decision for every key.
type SamplingConfig struct {
	threshold atomic.Uint64
	rate      atomic.Uint64
	window    atomic.Int64
}

// Settings is a point-in-time copy of SamplingConfig.
type Settings struct {
	Threshold      uint64        `json:"threshold"`
	Rate           uint64        `json:"rate"`
	WindowDuration time.Duration `json:"window_duration"`
}

// Validate reports whether s could be applied to a SamplingConfig.
func (s Settings) Validate() error {
	if s.Rate == 0 {
		return fmt.Errorf("%w: rate must be at least 1", core.ErrInvalidArgument)
	}
	if s.WindowDuration < 0 {
		return fmt.Errorf("%w: window duration must not be negative", core.ErrInvalidArgument)
	}
	return nil
}

// NewSamplingConfig returns a config initialized from s.
func NewSamplingConfig(s Settings) (*SamplingConfig, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	c := &SamplingConfig{}
	c.threshold.Store(s.Threshold)
	c.rate.Store(s.Rate)
	c.window.Store(int64(s.WindowDuration))
	return c, nil
}

// DefaultSettings returns the built-in sampling settings.
func DefaultSettings() Settings {
	return Settings{
		Threshold:      DefaultThreshold,
		Rate:           DefaultRate,
		WindowDuration: DefaultWindowDuration,
	}
}

func (c *SamplingConfig) SetThreshold(n uint64) {
	c.threshold.Store(n)
}

func (c *SamplingConfig) GetThreshold() uint64 {
	return c.threshold.Load()
}

// SetRate rejects zero and leaves the current rate unchanged in that case.
func (c *SamplingConfig) SetRate(n uint64) error {
	if n == 0 {
		return fmt.Errorf("%w: rate must be at least 1", core.ErrInvalidArgument)
	}
	c.rate.Store(n)
	return nil
}

func (c *SamplingConfig) GetRate() uint64 {
	return c.rate.Load()
}

// SetWindowDuration accepts any non-negative duration. Zero resets the
// window whenever time has advanced since the previous occurrence.
func (c *SamplingConfig) SetWindowDuration(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: window duration must not be negative", core.ErrInvalidArgument)
	}
	c.window.Store(int64(d))
	return nil
}

func (c *SamplingConfig) GetWindowDuration() time.Duration {
	return time.Duration(c.window.Load())
}

// Snapshot copies the current values.
func (c *SamplingConfig) Snapshot() Settings {
	return Settings{
		Threshold:      c.GetThreshold(),
		Rate:           c.GetRate(),
		WindowDuration: c.GetWindowDuration(),
	}
}

// Apply validates s as a whole before storing any field.
func (c *SamplingConfig) Apply(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	c.threshold.Store(s.Threshold)
	c.rate.Store(s.Rate)
	c.window.Store(int64(s.WindowDuration))
	return nil
}
