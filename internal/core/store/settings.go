package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/weirdgate/weirdgate/internal/core/engine"
)

// Setting keys persisted in sampling_settings.
const (
	SettingThreshold      = "threshold"
	SettingRate           = "rate"
	SettingWindow         = "window"
	SettingNormalizePairs = "normalize_pairs"
	SettingExemptions     = "exemptions"
	SettingGlobal         = "global"
)

// Overrides are runtime changes to sampling settings that outlive a restart.
// Nil fields were never overridden.
type Overrides struct {
	Threshold      *uint64        `json:"threshold,omitempty"`
	Rate           *uint64        `json:"rate,omitempty"`
	Window         *time.Duration `json:"window,omitempty"`
	NormalizePairs *bool          `json:"normalize_pairs,omitempty"`
	Exemptions     []string       `json:"exemptions,omitempty"`
	Global         []string       `json:"global,omitempty"`
}

// IsEmpty reports whether no field is set.
func (o Overrides) IsEmpty() bool {
	return o.Threshold == nil && o.Rate == nil && o.Window == nil &&
		o.NormalizePairs == nil && o.Exemptions == nil && o.Global == nil
}

// CaptureOverride records only the named setting of e, so that settings
// nobody changed keep following the config file.
func CaptureOverride(e *engine.Engine, setting string) (Overrides, error) {
	settings := e.Settings()
	var o Overrides
	switch setting {
	case SettingThreshold:
		o.Threshold = &settings.Threshold
	case SettingRate:
		o.Rate = &settings.Rate
	case SettingWindow:
		o.Window = &settings.WindowDuration
	case SettingNormalizePairs:
		normalize := e.NormalizePairs()
		o.NormalizePairs = &normalize
	case SettingExemptions:
		o.Exemptions = e.GetExemptionList()
	case SettingGlobal:
		o.Global = e.GetGlobalList()
	default:
		return Overrides{}, fmt.Errorf("unknown sampling setting %q", setting)
	}
	return o, nil
}

// ApplyTo layers o over the current settings of e. Numeric settings are
// validated together; if they are rejected nothing is changed.
func (o Overrides) ApplyTo(e *engine.Engine) error {
	settings := e.Settings()
	if o.Threshold != nil {
		settings.Threshold = *o.Threshold
	}
	if o.Rate != nil {
		settings.Rate = *o.Rate
	}
	if o.Window != nil {
		settings.WindowDuration = *o.Window
	}
	if err := e.ApplySettings(settings); err != nil {
		return err
	}

	if o.NormalizePairs != nil {
		e.SetNormalizePairs(*o.NormalizePairs)
	}
	if o.Exemptions != nil {
		e.SetExemptionList(o.Exemptions)
	}
	if o.Global != nil {
		e.SetGlobalList(o.Global)
	}
	return nil
}

// SaveOverrides upserts every set field of o.
func (s *Store) SaveOverrides(ctx context.Context, o Overrides) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	values := map[string]string{}
	if o.Threshold != nil {
		values[SettingThreshold] = strconv.FormatUint(*o.Threshold, 10)
	}
	if o.Rate != nil {
		values[SettingRate] = strconv.FormatUint(*o.Rate, 10)
	}
	if o.Window != nil {
		values[SettingWindow] = o.Window.String()
	}
	if o.NormalizePairs != nil {
		values[SettingNormalizePairs] = strconv.FormatBool(*o.NormalizePairs)
	}
	for key, names := range map[string][]string{SettingExemptions: o.Exemptions, SettingGlobal: o.Global} {
		if names == nil {
			continue
		}
		encoded, err := json.Marshal(names)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		values[key] = string(encoded)
	}

	now := time.Now().UTC().Unix()
	for key, value := range values {
		if _, err := s.DB.ExecContext(ctx, `
			INSERT INTO sampling_settings (key, value, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				updated_at = excluded.updated_at
		`, key, value, now); err != nil {
			return fmt.Errorf("store setting %s: %w", key, err)
		}
	}
	return nil
}

// LoadOverrides reads persisted overrides. Unknown keys are ignored.
func (s *Store) LoadOverrides(ctx context.Context) (Overrides, error) {
	if s == nil || s.DB == nil {
		return Overrides{}, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT key, value FROM sampling_settings`)
	if err != nil {
		return Overrides{}, fmt.Errorf("load settings: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	var o Overrides
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Overrides{}, fmt.Errorf("scan settings: %w", err)
		}
		if err := o.set(key, value); err != nil {
			return Overrides{}, fmt.Errorf("setting %s: %w", key, err)
		}
	}
	if err := rows.Err(); err != nil {
		return Overrides{}, fmt.Errorf("load settings: %w", err)
	}
	return o, nil
}

// ClearOverrides deletes every persisted override.
func (s *Store) ClearOverrides(ctx context.Context) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM sampling_settings`)
	if err != nil {
		return 0, fmt.Errorf("clear settings: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear settings: %w", err)
	}
	return affected, nil
}

func (o *Overrides) set(key, value string) error {
	switch key {
	case SettingThreshold:
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		o.Threshold = &n
	case SettingRate:
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		o.Rate = &n
	case SettingWindow:
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		o.Window = &d
	case SettingNormalizePairs:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		o.NormalizePairs = &b
	case SettingExemptions:
		names := []string{}
		if err := json.Unmarshal([]byte(value), &names); err != nil {
			return err
		}
		o.Exemptions = names
	case SettingGlobal:
		names := []string{}
		if err := json.Unmarshal([]byte(value), &names); err != nil {
			return err
		}
		o.Global = names
	}
	return nil
}
