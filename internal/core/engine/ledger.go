package engine

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/weirdgate/weirdgate/internal/core"
)

// Ledger bounds defaults.
const (
	DefaultShards  = 64
	DefaultMaxKeys = 1_000_000
)

// Ledger maps sampling keys to counting windows and makes the pass/suppress
// decision. Keys are spread over shards, each guarded by its own lock, so
// unrelated keys rarely contend. Each shard is an LRU bounded to its share of
// MaxKeys; when full, the least recently updated window in that shard is
// dropped.
type Ledger struct {
	config *SamplingConfig
	shards []*ledgerShard

	// OnEvict, if set, is called with the number of windows dropped to make
	// room for a new key. It runs under a shard lock and must not call back
	// into the ledger.
	OnEvict func(n int)
}

type ledgerShard struct {
	mu      sync.Mutex
	windows *simplelru.LRU[core.SamplingKey, *core.SamplingWindow]
}

// LedgerOptions sizes a ledger.
type LedgerOptions struct {
	Shards  int
	MaxKeys int
}

// NewLedger creates a ledger reading its parameters from cfg.
func NewLedger(cfg *SamplingConfig, opts LedgerOptions) *Ledger {
	shards := opts.Shards
	if shards <= 0 {
		shards = DefaultShards
	}
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	if shards > maxKeys {
		shards = maxKeys
	}
	perShard := (maxKeys + shards - 1) / shards

	l := &Ledger{
		config: cfg,
		shards: make([]*ledgerShard, shards),
	}
	for i := range l.shards {
		// Size is always positive here, so NewLRU cannot fail.
		windows, _ := simplelru.NewLRU[core.SamplingKey, *core.SamplingWindow](perShard, nil)
		l.shards[i] = &ledgerShard{windows: windows}
	}
	return l
}

// Decide records one occurrence of key at now and returns whether it passes.
//
// A window that has lasted longer than the configured duration restarts at
// now with a zero count. The first threshold occurrences in a window pass;
// after that one in every rate occurrences passes.
func (l *Ledger) Decide(key core.SamplingKey, now time.Time) core.Decision {
	threshold := l.config.GetThreshold()
	rate := l.config.GetRate()
	duration := l.config.GetWindowDuration()

	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows.Get(key)
	if !ok {
		w = &core.SamplingWindow{WindowStart: now}
		if evicted := s.windows.Add(key, w); evicted && l.OnEvict != nil {
			l.OnEvict(1)
		}
	}

	if now.Sub(w.WindowStart) > duration {
		w.WindowStart = now
		w.Count = 0
	}

	w.Count++
	w.LastSeen = now

	return verdict(w.Count, threshold, rate)
}

func verdict(count, threshold, rate uint64) core.Decision {
	if count <= threshold {
		return core.DecisionPass
	}
	if rate == 0 {
		rate = 1
	}
	if (count-threshold)%rate == 0 {
		return core.DecisionPass
	}
	return core.DecisionSuppress
}

// Window returns a copy of the window tracked for key without touching its
// recency.
func (l *Ledger) Window(key core.SamplingKey) (core.SamplingWindow, bool) {
	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows.Peek(key)
	if !ok {
		return core.SamplingWindow{}, false
	}
	return *w, true
}

// Len returns the number of tracked windows.
func (l *Ledger) Len() int {
	total := 0
	for _, s := range l.shards {
		s.mu.Lock()
		total += s.windows.Len()
		s.mu.Unlock()
	}
	return total
}

// Snapshot copies every tracked window whose name has the given prefix,
// ordered by key.
func (l *Ledger) Snapshot(prefix string) []core.WindowEntry {
	entries := []core.WindowEntry{}
	for _, s := range l.shards {
		s.mu.Lock()
		for _, key := range s.windows.Keys() {
			if prefix != "" && !strings.HasPrefix(key.Name, prefix) {
				continue
			}
			if w, ok := s.windows.Peek(key); ok {
				entries = append(entries, core.NewWindowEntry(key, *w))
			}
		}
		s.mu.Unlock()
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].Scope < entries[j].Scope
	})
	return entries
}

// Restore loads windows from a snapshot, replacing any tracked window with
// the same key.
func (l *Ledger) Restore(entries []core.WindowEntry) {
	for _, entry := range entries {
		w := entry.Window
		s := l.shardFor(entry.Key)
		s.mu.Lock()
		if evicted := s.windows.Add(entry.Key, &w); evicted && l.OnEvict != nil {
			l.OnEvict(1)
		}
		s.mu.Unlock()
	}
}

// Sweep drops windows that have not been updated for longer than idle and
// returns how many were dropped. It never changes the count of a window it
// keeps.
func (l *Ledger) Sweep(now time.Time, idle time.Duration) int {
	if idle <= 0 {
		return 0
	}
	removed := 0
	for _, s := range l.shards {
		s.mu.Lock()
		for _, key := range s.windows.Keys() {
			w, ok := s.windows.Peek(key)
			if ok && now.Sub(w.LastSeen) > idle {
				s.windows.Remove(key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Reset drops every tracked window.
func (l *Ledger) Reset() {
	for _, s := range l.shards {
		s.mu.Lock()
		s.windows.Purge()
		s.mu.Unlock()
	}
}

func (l *Ledger) shardFor(key core.SamplingKey) *ledgerShard {
	if len(l.shards) == 1 {
		return l.shards[0]
	}
	return l.shards[hashKey(key)%uint64(len(l.shards))]
}

var digestPool = sync.Pool{New: func() any { return xxhash.New() }}

func hashKey(key core.SamplingKey) uint64 {
	d := digestPool.Get().(*xxhash.Digest)
	defer digestPool.Put(d)
	d.Reset()

	_, _ = d.WriteString(key.Name)
	var sep [2]byte
	sep[1] = byte(key.Context.Kind)
	_, _ = d.Write(sep[:])
	if key.Context.A.IsValid() {
		a := key.Context.A.As16()
		_, _ = d.Write(a[:])
	}
	_, _ = d.Write(sep[:1])
	if key.Context.B.IsValid() {
		b := key.Context.B.As16()
		_, _ = d.Write(b[:])
	}
	_, _ = d.WriteString(key.Context.ID)
	return d.Sum64()
}
