package engine

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/weirdgate/weirdgate/internal/core"
)

// Outcome is the result of raising a weird.
type Outcome uint8

const (
	OutcomeSuppressed Outcome = iota
	OutcomeEmitted
	// OutcomeObjectNotFound means the object a weird referenced could not be
	// resolved. No sampling state was touched.
	OutcomeObjectNotFound
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEmitted:
		return "pass"
	case OutcomeObjectNotFound:
		return "object_not_found"
	default:
		return "suppress"
	}
}

// Signal is a weird that passed sampling.
type Signal struct {
	Name    string
	Context core.Context
	Detail  string
	Object  *ObjectInfo
	Time    time.Time
}

// Sink receives emitted weirds.
type Sink interface {
	Emit(sig Signal)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(sig Signal)

func (f SinkFunc) Emit(sig Signal) {
	f(sig)
}

// Reporter exposes one entry point per weird call shape and forwards
// weirds that pass sampling to Sink. Detail text never affects sampling.
type Reporter struct {
	Engine  *Engine
	Objects ObjectResolver
	Sink    Sink
}

// Result is the outcome of a raised weird and, unless the object was not
// found, the bucket it was decided against.
type Result struct {
	Outcome Outcome
	Key     core.SamplingKey
	Exempt  bool
}

// Weird raises an unscoped weird.
func (r *Reporter) Weird(name, detail string) Outcome {
	return r.emit(name, core.NoContext(), detail, nil).Outcome
}

// FlowWeird raises a weird scoped to a pair of endpoints.
func (r *Reporter) FlowWeird(name string, a, b netip.Addr, detail string) Outcome {
	return r.emit(name, core.EndpointPairContext(a, b), detail, nil).Outcome
}

// ConnWeird raises a weird scoped to a connection identity.
func (r *Reporter) ConnWeird(name, connID, detail string) Outcome {
	return r.emit(name, core.ConnectionContext(connID), detail, nil).Outcome
}

// FileWeird raises a weird scoped to an object. If the object cannot be
// resolved it returns OutcomeObjectNotFound with an error wrapping
// core.ErrObjectNotFound.
func (r *Reporter) FileWeird(name, objectID, detail string) (Outcome, error) {
	res, err := r.fileWeird(name, objectID, detail)
	return res.Outcome, err
}

func (r *Reporter) fileWeird(name, objectID, detail string) (Result, error) {
	notFound := Result{Outcome: OutcomeObjectNotFound}
	if r.Objects == nil {
		return notFound, fmt.Errorf("%w: %q (no resolver)", core.ErrObjectNotFound, objectID)
	}
	info, ok := r.Objects.ResolveObject(objectID)
	if !ok {
		return notFound, fmt.Errorf("%w: %q", core.ErrObjectNotFound, objectID)
	}
	return r.emit(name, core.ObjectContext(info.ID), detail, &info), nil
}

// Raise dispatches on the kind of c.
func (r *Reporter) Raise(name string, c core.Context, detail string) (Outcome, error) {
	res, err := r.Decide(name, c, detail)
	return res.Outcome, err
}

// Decide is Raise but also reports the key the weird was counted against.
func (r *Reporter) Decide(name string, c core.Context, detail string) (Result, error) {
	if c.Kind == core.ContextObject {
		return r.fileWeird(name, c.ID, detail)
	}
	return r.emit(name, c, detail, nil), nil
}

func (r *Reporter) emit(name string, c core.Context, detail string, object *ObjectInfo) Result {
	now := r.Engine.now()
	v := r.Engine.Evaluate(name, c, now)
	res := Result{Key: v.Key, Exempt: v.Exempt, Outcome: OutcomeSuppressed}
	if v.Decision != core.DecisionPass {
		return res
	}
	res.Outcome = OutcomeEmitted
	if r.Sink != nil {
		r.Sink.Emit(Signal{
			Name:    name,
			Context: c,
			Detail:  detail,
			Object:  object,
			Time:    now,
		})
	}
	return res
}
