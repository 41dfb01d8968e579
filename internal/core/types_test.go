package core

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointPairContext(t *testing.T) {
	a := netip.MustParseAddr("10.0.0.2")
	b := netip.MustParseAddr("10.0.0.1")

	c := EndpointPairContext(a, b)
	assert.Equal(t, ContextEndpointPair, c.Kind)
	assert.Equal(t, a, c.A)
	assert.Equal(t, b, c.B)

	canon := c.Canonical()
	assert.Equal(t, b, canon.A)
	assert.Equal(t, a, canon.B)
	assert.Equal(t, canon, EndpointPairContext(b, a).Canonical())

	assert.True(t, EndpointPairContext(netip.Addr{}, netip.Addr{}).IsNone())

	mapped := EndpointPairContext(netip.MustParseAddr("::ffff:10.0.0.1"), a)
	assert.Equal(t, b, mapped.A)
}

func TestIdentityContexts(t *testing.T) {
	assert.True(t, ConnectionContext("").IsNone())
	assert.True(t, ObjectContext("").IsNone())
	assert.Equal(t, Context{Kind: ContextConnection, ID: " C1 "}, ConnectionContext(" C1 "))
	assert.NotEqual(t, NewSamplingKey("w", ConnectionContext(" C1")), NewSamplingKey("w", ConnectionContext("C1")))
	assert.Equal(t, ConnectionContext("C1"), ConnectionContext("C1").Canonical())
	assert.NotEqual(t, NewSamplingKey("w", ConnectionContext("X")), NewSamplingKey("w", ObjectContext("X")))
}

func TestContextStringRoundTrip(t *testing.T) {
	cases := []Context{
		NoContext(),
		EndpointPairContext(netip.MustParseAddr("192.0.2.1"), netip.MustParseAddr("2001:db8::1")),
		EndpointPairContext(netip.MustParseAddr("192.0.2.1"), netip.Addr{}),
		ConnectionContext("CHhAvVGS1DHFjwGM9"),
		ObjectContext("FqkV2b1Yp3"),
		ConnectionContext(" padded "),
	}
	for _, c := range cases {
		t.Run(c.String(), func(t *testing.T) {
			parsed, err := ParseContext(c.String())
			require.NoError(t, err)
			assert.Equal(t, c, parsed)
		})
	}
}

func TestParseContextErrors(t *testing.T) {
	for _, value := range []string{"pair", "pair:10.0.0.1", "pair:nope,10.0.0.1", "socket:1"} {
		_, err := ParseContext(value)
		assert.ErrorIs(t, err, ErrInvalidArgument, value)
	}
}

func TestCleanNames(t *testing.T) {
	assert.Equal(t, []string{"DNS_RR_bad", "truncated_header"}, CleanNames([]string{" DNS_RR_bad ", "", "  ", "truncated_header"}))
	assert.Equal(t, []string{}, CleanNames(nil))
}

func TestParseContextKind(t *testing.T) {
	kind, err := ParseContextKind("flow")
	require.NoError(t, err)
	assert.Equal(t, ContextEndpointPair, kind)

	kind, err = ParseContextKind("")
	require.NoError(t, err)
	assert.Equal(t, ContextNone, kind)

	_, err = ParseContextKind("bogus")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSamplingKeyString(t *testing.T) {
	assert.Equal(t, "weird", NewSamplingKey("weird", NoContext()).String())
	assert.Equal(t, "weird@conn:C1", NewSamplingKey("weird", ConnectionContext("C1")).String())
	assert.Equal(t, "pass", DecisionPass.String())
	assert.Equal(t, "suppress", DecisionSuppress.String())
}
