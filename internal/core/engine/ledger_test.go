package engine

import (
	"fmt"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weirdgate/weirdgate/internal/core"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T, s Settings, opts LedgerOptions) *Ledger {
	t.Helper()
	cfg, err := NewSamplingConfig(s)
	require.NoError(t, err)
	return NewLedger(cfg, opts)
}

func countPasses(l *Ledger, key core.SamplingKey, n int, at time.Time) int {
	passed := 0
	for i := 0; i < n; i++ {
		if l.Decide(key, at) == core.DecisionPass {
			passed++
		}
	}
	return passed
}

func TestLedgerBurstFormula(t *testing.T) {
	cases := []struct {
		threshold uint64
		rate      uint64
		n         int
	}{
		{threshold: 25, rate: 1000, n: 10},
		{threshold: 25, rate: 1000, n: 25},
		{threshold: 25, rate: 1000, n: 2100},
		{threshold: 10, rate: 10, n: 30},
		{threshold: 0, rate: 3, n: 10},
		{threshold: 5, rate: 1, n: 40},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("T%d_R%d_N%d", tc.threshold, tc.rate, tc.n), func(t *testing.T) {
			l := newTestLedger(t, Settings{Threshold: tc.threshold, Rate: tc.rate, WindowDuration: time.Hour}, LedgerOptions{})
			key := core.NewSamplingKey("bad_checksum", core.NoContext())

			over := tc.n - int(tc.threshold)
			if over < 0 {
				over = 0
			}
			want := min(tc.n, int(tc.threshold)) + over/int(tc.rate)

			require.Equal(t, want, countPasses(l, key, tc.n, epoch))
		})
	}
}

func TestLedgerWindowReset(t *testing.T) {
	l := newTestLedger(t, Settings{Threshold: 10, Rate: 10, WindowDuration: 5 * time.Second}, LedgerOptions{})
	key := core.NewSamplingKey("dns_unmatched_reply", core.ConnectionContext("C1"))

	require.Equal(t, 12, countPasses(l, key, 30, epoch))
	require.Equal(t, 3, countPasses(l, key, 30, epoch.Add(2*time.Second)))
	require.Equal(t, 12, countPasses(l, key, 30, epoch.Add(7*time.Second)))

	w, ok := l.Window(key)
	require.True(t, ok)
	require.Equal(t, uint64(30), w.Count)
	require.Equal(t, epoch.Add(7*time.Second), w.WindowStart)
}

func TestLedgerResetIsStrictlyGreater(t *testing.T) {
	l := newTestLedger(t, Settings{Threshold: 1, Rate: 1000, WindowDuration: 5 * time.Second}, LedgerOptions{})
	key := core.NewSamplingKey("weird", core.NoContext())

	require.Equal(t, core.DecisionPass, l.Decide(key, epoch))
	require.Equal(t, core.DecisionSuppress, l.Decide(key, epoch.Add(5*time.Second)))
	require.Equal(t, core.DecisionPass, l.Decide(key, epoch.Add(5*time.Second+time.Nanosecond)))
}

func TestLedgerZeroDuration(t *testing.T) {
	l := newTestLedger(t, Settings{Threshold: 1, Rate: 1000, WindowDuration: 0}, LedgerOptions{})
	key := core.NewSamplingKey("weird", core.NoContext())

	require.Equal(t, core.DecisionPass, l.Decide(key, epoch))
	require.Equal(t, core.DecisionSuppress, l.Decide(key, epoch))
	require.Equal(t, core.DecisionPass, l.Decide(key, epoch.Add(time.Millisecond)))
}

func TestLedgerZeroThreshold(t *testing.T) {
	l := newTestLedger(t, Settings{Threshold: 0, Rate: 4, WindowDuration: time.Hour}, LedgerOptions{})
	key := core.NewSamplingKey("weird", core.NoContext())

	var decisions []core.Decision
	for i := 0; i < 8; i++ {
		decisions = append(decisions, l.Decide(key, epoch))
	}
	require.Equal(t, []core.Decision{
		core.DecisionSuppress, core.DecisionSuppress, core.DecisionSuppress, core.DecisionPass,
		core.DecisionSuppress, core.DecisionSuppress, core.DecisionSuppress, core.DecisionPass,
	}, decisions)
}

func TestLedgerKeysAreIndependent(t *testing.T) {
	l := newTestLedger(t, Settings{Threshold: 2, Rate: 1000, WindowDuration: time.Hour}, LedgerOptions{})
	a := netip.MustParseAddr("10.0.0.1")
	b := netip.MustParseAddr("10.0.0.2")

	first := core.NewSamplingKey("weird", core.EndpointPairContext(a, b))
	reversed := core.NewSamplingKey("weird", core.EndpointPairContext(b, a))
	other := core.NewSamplingKey("other", core.EndpointPairContext(a, b))

	require.Equal(t, 2, countPasses(l, first, 5, epoch))
	require.Equal(t, 2, countPasses(l, reversed, 5, epoch))
	require.Equal(t, 2, countPasses(l, other, 5, epoch))
	require.Equal(t, 3, l.Len())
}

func TestLedgerEvictsLeastRecentlyUpdated(t *testing.T) {
	l := newTestLedger(t, Settings{Threshold: 1, Rate: 1000, WindowDuration: time.Hour}, LedgerOptions{Shards: 1, MaxKeys: 2})
	evicted := 0
	l.OnEvict = func(n int) { evicted += n }

	a := core.NewSamplingKey("a", core.NoContext())
	b := core.NewSamplingKey("b", core.NoContext())
	c := core.NewSamplingKey("c", core.NoContext())

	l.Decide(a, epoch)
	l.Decide(b, epoch)
	l.Decide(a, epoch)
	l.Decide(c, epoch)

	require.Equal(t, 2, l.Len())
	require.Equal(t, 1, evicted)
	_, ok := l.Window(b)
	require.False(t, ok)

	w, ok := l.Window(a)
	require.True(t, ok)
	require.Equal(t, uint64(2), w.Count)
}

func TestLedgerSweep(t *testing.T) {
	l := newTestLedger(t, DefaultSettings(), LedgerOptions{})
	stale := core.NewSamplingKey("stale", core.NoContext())
	fresh := core.NewSamplingKey("fresh", core.NoContext())

	l.Decide(stale, epoch)
	l.Decide(fresh, epoch)
	l.Decide(fresh, epoch.Add(50*time.Minute))

	require.Equal(t, 0, l.Sweep(epoch.Add(time.Hour), 0))
	require.Equal(t, 1, l.Sweep(epoch.Add(time.Hour), 30*time.Minute))

	_, ok := l.Window(stale)
	require.False(t, ok)
	w, ok := l.Window(fresh)
	require.True(t, ok)
	require.Equal(t, uint64(2), w.Count)
}

func TestLedgerSnapshotRestore(t *testing.T) {
	l := newTestLedger(t, Settings{Threshold: 3, Rate: 1000, WindowDuration: time.Hour}, LedgerOptions{})
	conn := core.NewSamplingKey("conn_weird", core.ConnectionContext("C9"))
	global := core.NewSamplingKey("global_weird", core.NoContext())

	countPasses(l, conn, 5, epoch)
	countPasses(l, global, 2, epoch)

	entries := l.Snapshot("")
	require.Len(t, entries, 2)
	require.Equal(t, "conn_weird", entries[0].Name)
	require.Equal(t, "conn:C9", entries[0].Scope)
	require.Equal(t, uint64(5), entries[0].Window.Count)

	require.Len(t, l.Snapshot("global"), 1)

	restored := newTestLedger(t, Settings{Threshold: 3, Rate: 1000, WindowDuration: time.Hour}, LedgerOptions{})
	restored.Restore(entries)
	require.Equal(t, 2, restored.Len())

	// The restored window continues counting where it left off.
	require.Equal(t, core.DecisionSuppress, restored.Decide(conn, epoch.Add(time.Minute)))
	require.Equal(t, core.DecisionPass, restored.Decide(global, epoch.Add(time.Minute)))

	restored.Reset()
	require.Equal(t, 0, restored.Len())
}

func TestLedgerConcurrentDecisions(t *testing.T) {
	l := newTestLedger(t, Settings{Threshold: 10, Rate: 100, WindowDuration: time.Hour}, LedgerOptions{Shards: 4})
	key := core.NewSamplingKey("hot", core.NoContext())

	const workers = 8
	const perWorker = 500

	var mu sync.Mutex
	passed := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := countPasses(l, key, perWorker, epoch)
			mu.Lock()
			passed += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	w, ok := l.Window(key)
	require.True(t, ok)
	require.Equal(t, uint64(workers*perWorker), w.Count)
	require.Equal(t, 10+(workers*perWorker-10)/100, passed)
}

func TestHashKeyIsStableAndSeparatesContexts(t *testing.T) {
	a := netip.MustParseAddr("10.0.0.1")
	b := netip.MustParseAddr("10.0.0.2")
	pair := core.NewSamplingKey("w", core.EndpointPairContext(a, b))

	require.Equal(t, hashKey(pair), hashKey(core.NewSamplingKey("w", core.EndpointPairContext(a, b))))
	require.NotEqual(t, hashKey(pair), hashKey(core.NewSamplingKey("w", core.EndpointPairContext(b, a))))
	require.NotEqual(t,
		hashKey(core.NewSamplingKey("w", core.ConnectionContext("X"))),
		hashKey(core.NewSamplingKey("w", core.ObjectContext("X"))))
	require.NotEqual(t,
		hashKey(core.NewSamplingKey("w", core.EndpointPairContext(a, netip.Addr{}))),
		hashKey(core.NewSamplingKey("w", core.EndpointPairContext(netip.Addr{}, a))))
}

func BenchmarkLedgerDecide(b *testing.B) {
	cfg, err := NewSamplingConfig(DefaultSettings())
	require.NoError(b, err)
	l := NewLedger(cfg, LedgerOptions{})
	key := core.NewSamplingKey("DNS_RR_unknown_type", core.ConnectionContext("CHhAvVGS1DHFjwGM9"))

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.Decide(key, epoch)
	}
}
