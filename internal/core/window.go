package core

import "time"

// SamplingWindow captures per-key counting state.
type SamplingWindow struct {
	Count       uint64    `json:"count"`
	WindowStart time.Time `json:"window_start"`
	LastSeen    time.Time `json:"last_seen"`
}

// WindowEntry pairs a key with its window, used for snapshots.
type WindowEntry struct {
	Key    SamplingKey    `json:"-"`
	Name   string         `json:"name"`
	Scope  string         `json:"context"`
	Window SamplingWindow `json:"window"`
}

// NewWindowEntry fills the flattened name/context fields from key.
func NewWindowEntry(key SamplingKey, window SamplingWindow) WindowEntry {
	return WindowEntry{
		Key:    key,
		Name:   key.Name,
		Scope:  key.Context.String(),
		Window: window,
	}
}
