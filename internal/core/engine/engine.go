package engine

import (
	"sync/atomic"
	"time"

	"github.com/weirdgate/weirdgate/internal/core"
)

// Options configures a new Engine.
type Options struct {
	Settings       Settings
	Exemptions     []string
	GlobalNames    []string
	NormalizePairs bool
	Shards         int
	MaxKeys        int

	// Clock defaults to time.Now, whose monotonic reading keeps window
	// comparisons immune to wall-clock steps.
	Clock func() time.Time

	// OnDecision, if set, observes every decision, including exempt passes.
	OnDecision func(name string, decision core.Decision, exempt bool)
}

// Engine combines the exemption list, sampling config and ledger into the
// single pass/suppress decision made for every raised weird.
type Engine struct {
	config     *SamplingConfig
	exemptions *NameSet
	global     *NameSet
	ledger     *Ledger
	normalize  atomic.Bool

	Clock      func() time.Time
	OnDecision func(name string, decision core.Decision, exempt bool)
}

// New builds an engine. It fails only if opts.Settings is invalid.
func New(opts Options) (*Engine, error) {
	cfg, err := NewSamplingConfig(opts.Settings)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:     cfg,
		exemptions: NewNameSet(opts.Exemptions...),
		global:     NewNameSet(opts.GlobalNames...),
		ledger:     NewLedger(cfg, LedgerOptions{Shards: opts.Shards, MaxKeys: opts.MaxKeys}),
		Clock:      opts.Clock,
		OnDecision: opts.OnDecision,
	}
	e.normalize.Store(opts.NormalizePairs)
	return e, nil
}

// ShouldEmit decides whether a weird raised now should be emitted.
func (e *Engine) ShouldEmit(name string, c core.Context) bool {
	return e.ShouldEmitAt(name, c, e.now())
}

// ShouldEmitAt decides whether a weird raised at now should be emitted.
// Exempt names always pass and never create or update ledger state.
func (e *Engine) ShouldEmitAt(name string, c core.Context, now time.Time) bool {
	return e.Evaluate(name, c, now).Decision == core.DecisionPass
}

// Verdict is a decision together with the bucket it was counted against.
type Verdict struct {
	Key      core.SamplingKey
	Decision core.Decision
	Exempt   bool
}

// Evaluate makes the decision ShouldEmitAt makes and reports the key used.
// For exempt names Key is the bucket the weird would have used; it was not
// charged.
func (e *Engine) Evaluate(name string, c core.Context, now time.Time) Verdict {
	key := e.Key(name, c)
	if e.exemptions.Contains(name) {
		e.observe(name, core.DecisionPass, true)
		return Verdict{Key: key, Decision: core.DecisionPass, Exempt: true}
	}

	decision := e.ledger.Decide(key, now)
	e.observe(name, decision, false)
	return Verdict{Key: key, Decision: decision}
}

// Key returns the bucket a weird named name in context c counts against.
func (e *Engine) Key(name string, c core.Context) core.SamplingKey {
	switch {
	case e.global.Contains(name):
		c = core.NoContext()
	case e.normalize.Load():
		c = c.Canonical()
	}
	return core.NewSamplingKey(name, c)
}

func (e *Engine) IsExempt(name string) bool {
	return e.exemptions.Contains(name)
}

// SetExemptionList replaces the exemption list atomically.
func (e *Engine) SetExemptionList(names []string) {
	e.exemptions.Replace(names)
}

func (e *Engine) GetExemptionList() []string {
	return e.exemptions.List()
}

// SetGlobalList replaces the set of names bucketed without network context.
func (e *Engine) SetGlobalList(names []string) {
	e.global.Replace(names)
}

func (e *Engine) GetGlobalList() []string {
	return e.global.List()
}

func (e *Engine) SetThreshold(n uint64) {
	e.config.SetThreshold(n)
}

func (e *Engine) GetThreshold() uint64 {
	return e.config.GetThreshold()
}

func (e *Engine) SetRate(n uint64) error {
	return e.config.SetRate(n)
}

func (e *Engine) GetRate() uint64 {
	return e.config.GetRate()
}

func (e *Engine) SetWindowDuration(d time.Duration) error {
	return e.config.SetWindowDuration(d)
}

func (e *Engine) GetWindowDuration() time.Duration {
	return e.config.GetWindowDuration()
}

// SetNormalizePairs toggles order-independent endpoint pair buckets.
func (e *Engine) SetNormalizePairs(enabled bool) {
	e.normalize.Store(enabled)
}

func (e *Engine) NormalizePairs() bool {
	return e.normalize.Load()
}

// Settings returns the current sampling parameters.
func (e *Engine) Settings() Settings {
	return e.config.Snapshot()
}

// ApplySettings replaces all sampling parameters, or none if s is invalid.
func (e *Engine) ApplySettings(s Settings) error {
	return e.config.Apply(s)
}

// Ledger exposes the underlying ledger for snapshots and maintenance.
func (e *Engine) Ledger() *Ledger {
	return e.ledger
}

func (e *Engine) observe(name string, decision core.Decision, exempt bool) {
	if e.OnDecision != nil {
		e.OnDecision(name, decision, exempt)
	}
}

func (e *Engine) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}
