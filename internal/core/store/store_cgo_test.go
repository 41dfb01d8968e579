//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weirdgate/weirdgate/internal/config"
	"github.com/weirdgate/weirdgate/internal/core"
)

func openMemoryStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestOpenMemoryStore(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{
		Driver: "libsql",
		Path:   ":memory:",
	}

	store, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, store)
	require.Equal(t, "libsql", store.Driver())
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Close())
}

func TestWindowsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)

	start := time.Date(2025, 3, 1, 12, 0, 0, 1500, time.UTC)
	entries := []core.WindowEntry{
		core.NewWindowEntry(core.NewSamplingKey("dns_unmatched_reply", core.ConnectionContext("C1")), core.SamplingWindow{
			Count: 42, WindowStart: start, LastSeen: start.Add(time.Second),
		}),
		core.NewWindowEntry(core.NewSamplingKey("bad_checksum", core.NoContext()), core.SamplingWindow{
			Count: 3, WindowStart: start, LastSeen: start,
		}),
		core.NewWindowEntry(core.NewSamplingKey("dns_truncated", core.ObjectContext("F7")), core.SamplingWindow{
			Count: 1, WindowStart: start, LastSeen: start,
		}),
	}
	require.NoError(t, store.SaveWindows(ctx, entries))

	loaded, err := store.LoadWindows(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	require.Equal(t, "bad_checksum", loaded[0].Name)
	require.Equal(t, entries[2].Key, loaded[1].Key)
	require.Equal(t, entries[0].Key, loaded[2].Key)
	require.Equal(t, uint64(42), loaded[2].Window.Count)
	require.True(t, start.Equal(loaded[2].Window.WindowStart))

	count, err := store.CountWindows(ctx, WindowQuery{Prefix: "dns_"})
	require.NoError(t, err)
	require.Equal(t, 2, count)

	// A second snapshot replaces the first.
	require.NoError(t, store.SaveWindows(ctx, entries[:1]))
	count, err = store.CountWindows(ctx, WindowQuery{All: true})
	require.NoError(t, err)
	require.Equal(t, 1, count)

	removed, err := store.ResetWindows(ctx, WindowQuery{Name: "dns_unmatched_reply"})
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	listed, err := store.ListWindows(ctx, WindowQuery{All: true})
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestWindowPrefixMatchesLiterally(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)

	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	window := core.SamplingWindow{Count: 1, WindowStart: start, LastSeen: start}
	var entries []core.WindowEntry
	for _, name := range []string{"DNS_x", "DNSXy", "dns_z", "DNS_RR_bad"} {
		entries = append(entries, core.NewWindowEntry(core.NewSamplingKey(name, core.NoContext()), window))
	}
	require.NoError(t, store.SaveWindows(ctx, entries))

	listed, err := store.ListWindows(ctx, WindowQuery{Prefix: "DNS_"})
	require.NoError(t, err)
	names := make([]string, 0, len(listed))
	for _, entry := range listed {
		names = append(names, entry.Name)
	}
	require.Equal(t, []string{"DNS_RR_bad", "DNS_x"}, names)

	count, err := store.CountWindows(ctx, WindowQuery{Prefix: "dns%"})
	require.NoError(t, err)
	require.Zero(t, count)

	removed, err := store.ResetWindows(ctx, WindowQuery{Prefix: "DNS_"})
	require.NoError(t, err)
	require.Equal(t, int64(2), removed)

	remaining, err := store.CountWindows(ctx, WindowQuery{All: true})
	require.NoError(t, err)
	require.Equal(t, 2, remaining)
}

func TestOverridesRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)

	empty, err := store.LoadOverrides(ctx)
	require.NoError(t, err)
	require.True(t, empty.IsEmpty())

	rate := uint64(50)
	window := 90 * time.Second
	normalize := false
	require.NoError(t, store.SaveOverrides(ctx, Overrides{
		Rate:           &rate,
		Window:         &window,
		NormalizePairs: &normalize,
		Exemptions:     []string{},
		Global:         []string{"truncated_header"},
	}))

	loaded, err := store.LoadOverrides(ctx)
	require.NoError(t, err)
	require.Nil(t, loaded.Threshold)
	require.Equal(t, uint64(50), *loaded.Rate)
	require.Equal(t, 90*time.Second, *loaded.Window)
	require.False(t, *loaded.NormalizePairs)
	require.NotNil(t, loaded.Exemptions)
	require.Empty(t, loaded.Exemptions)
	require.Equal(t, []string{"truncated_header"}, loaded.Global)

	cleared, err := store.ClearOverrides(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(5), cleared)
}
