package engine

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weirdgate/weirdgate/internal/core"
)

func newTestReporter(t *testing.T, settings Settings) (*Reporter, *[]Signal) {
	t.Helper()
	e := newTestEngine(t, Options{
		Settings:       settings,
		NormalizePairs: true,
		Clock:          func() time.Time { return epoch },
	})
	var emitted []Signal
	return &Reporter{
		Engine:  e,
		Objects: NewObjectIndex(),
		Sink:    SinkFunc(func(sig Signal) { emitted = append(emitted, sig) }),
	}, &emitted
}

func TestReporterEmitsPassingWeirds(t *testing.T) {
	r, emitted := newTestReporter(t, Settings{Threshold: 1, Rate: 1000, WindowDuration: time.Hour})

	require.Equal(t, OutcomeEmitted, r.Weird("global_weird", "first"))
	require.Equal(t, OutcomeSuppressed, r.Weird("global_weird", "second"))

	require.Len(t, *emitted, 1)
	require.Equal(t, "global_weird", (*emitted)[0].Name)
	require.Equal(t, "first", (*emitted)[0].Detail)
	require.True(t, (*emitted)[0].Context.IsNone())
	require.Equal(t, epoch, (*emitted)[0].Time)
}

func TestReporterDetailDoesNotAffectSampling(t *testing.T) {
	r, _ := newTestReporter(t, Settings{Threshold: 1, Rate: 1000, WindowDuration: time.Hour})

	require.Equal(t, OutcomeEmitted, r.ConnWeird("w", "C1", "one"))
	require.Equal(t, OutcomeSuppressed, r.ConnWeird("w", "C1", "two"))
	require.Equal(t, OutcomeEmitted, r.ConnWeird("w", "C2", "one"))
}

func TestReporterFlowWeirdSharesBucketAcrossDirections(t *testing.T) {
	r, _ := newTestReporter(t, Settings{Threshold: 1, Rate: 1000, WindowDuration: time.Hour})
	a := netip.MustParseAddr("10.1.1.1")
	b := netip.MustParseAddr("10.2.2.2")

	require.Equal(t, OutcomeEmitted, r.FlowWeird("w", a, b, ""))
	require.Equal(t, OutcomeSuppressed, r.FlowWeird("w", b, a, ""))
}

func TestReporterFileWeirdUnknownObject(t *testing.T) {
	r, emitted := newTestReporter(t, DefaultSettings())

	outcome, err := r.FileWeird("file_weird", "F404", "")
	require.ErrorIs(t, err, core.ErrObjectNotFound)
	require.Equal(t, OutcomeObjectNotFound, outcome)
	require.Empty(t, *emitted)
	require.Equal(t, 0, r.Engine.Ledger().Len())

	r.Objects = nil
	_, err = r.FileWeird("file_weird", "F404", "")
	require.ErrorIs(t, err, core.ErrObjectNotFound)
}

func TestReporterFileWeirdKnownObject(t *testing.T) {
	r, emitted := newTestReporter(t, DefaultSettings())
	r.Objects.(*ObjectIndex).Register(ObjectInfo{ID: "F1", Source: "HTTP"})

	outcome, err := r.FileWeird("file_weird", "F1", "bad magic")
	require.NoError(t, err)
	require.Equal(t, OutcomeEmitted, outcome)
	require.Len(t, *emitted, 1)
	require.NotNil(t, (*emitted)[0].Object)
	require.Equal(t, "HTTP", (*emitted)[0].Object.Source)
	require.Equal(t, core.ObjectContext("F1"), (*emitted)[0].Context)
}

func TestReporterRaiseDispatches(t *testing.T) {
	r, _ := newTestReporter(t, Settings{Threshold: 1, Rate: 1000, WindowDuration: time.Hour})

	outcome, err := r.Raise("w", core.ConnectionContext("C1"), "")
	require.NoError(t, err)
	require.Equal(t, OutcomeEmitted, outcome)

	outcome, err = r.Raise("w", core.ObjectContext("missing"), "")
	require.ErrorIs(t, err, core.ErrObjectNotFound)
	require.Equal(t, OutcomeObjectNotFound, outcome)

	outcome, err = r.Raise("w", core.NoContext(), "")
	require.NoError(t, err)
	require.Equal(t, OutcomeEmitted, outcome)
	require.Equal(t, 2, r.Engine.Ledger().Len())
}

func TestReporterDecideReportsKey(t *testing.T) {
	r, _ := newTestReporter(t, Settings{Threshold: 1, Rate: 1000, WindowDuration: time.Hour})
	r.Engine.SetNormalizePairs(true)

	a, b := netip.MustParseAddr("10.0.0.2"), netip.MustParseAddr("10.0.0.1")
	res, err := r.Decide("bad_checksum", core.EndpointPairContext(a, b), "")
	require.NoError(t, err)
	require.Equal(t, OutcomeEmitted, res.Outcome)
	require.False(t, res.Exempt)
	require.Equal(t, core.NewSamplingKey("bad_checksum", core.EndpointPairContext(b, a)), res.Key)

	_, ok := r.Engine.Ledger().Window(res.Key)
	require.True(t, ok)

	res, err = r.Decide("w", core.ObjectContext("missing"), "")
	require.ErrorIs(t, err, core.ErrObjectNotFound)
	require.Equal(t, OutcomeObjectNotFound, res.Outcome)
	require.Equal(t, core.SamplingKey{}, res.Key)
}

func TestOutcomeString(t *testing.T) {
	require.Equal(t, "pass", OutcomeEmitted.String())
	require.Equal(t, "suppress", OutcomeSuppressed.String())
	require.Equal(t, "object_not_found", OutcomeObjectNotFound.String())
}
