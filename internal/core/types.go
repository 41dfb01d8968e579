package core

import (
	"fmt"
	"net/netip"
	"strings"
)

// ContextKind identifies the network scope a weird was raised in.
type ContextKind uint8

const (
	ContextNone ContextKind = iota
	ContextEndpointPair
	ContextConnection
	ContextObject
)

// String returns the scope label used on the wire and in storage.
func (k ContextKind) String() string {
	switch k {
	case ContextEndpointPair:
		return "pair"
	case ContextConnection:
		return "conn"
	case ContextObject:
		return "object"
	default:
		return "none"
	}
}

// ParseContextKind maps a scope label back to its kind.
func ParseContextKind(value string) (ContextKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "none", "global":
		return ContextNone, nil
	case "pair", "flow":
		return ContextEndpointPair, nil
	case "conn", "connection":
		return ContextConnection, nil
	case "object", "file":
		return ContextObject, nil
	default:
		return ContextNone, fmt.Errorf("%w: unknown scope %q", ErrInvalidArgument, value)
	}
}

// Context discriminates counting buckets for the same weird name.
// The zero value is the global (unscoped) context.
type Context struct {
	Kind ContextKind
	A    netip.Addr
	B    netip.Addr
	ID   string
}

// NoContext returns the global context.
func NoContext() Context {
	return Context{}
}

// EndpointPairContext scopes a weird to a pair of endpoints. Order is
// preserved; see Canonical.
func EndpointPairContext(a, b netip.Addr) Context {
	if !a.IsValid() && !b.IsValid() {
		return NoContext()
	}
	return Context{Kind: ContextEndpointPair, A: a.Unmap(), B: b.Unmap()}
}

// ConnectionContext scopes a weird to a single flow identity. IDs are
// compared exactly; an empty id is the global context.
func ConnectionContext(id string) Context {
	if id == "" {
		return NoContext()
	}
	return Context{Kind: ContextConnection, ID: id}
}

// ObjectContext scopes a weird to a file-like object identity.
func ObjectContext(id string) Context {
	if id == "" {
		return NoContext()
	}
	return Context{Kind: ContextObject, ID: id}
}

// Canonical orders endpoint pairs so that (a,b) and (b,a) compare equal.
// Other kinds are returned unchanged.
func (c Context) Canonical() Context {
	if c.Kind != ContextEndpointPair {
		return c
	}
	if c.B.Compare(c.A) < 0 {
		c.A, c.B = c.B, c.A
	}
	return c
}

// IsNone reports whether c is the global context.
func (c Context) IsNone() bool {
	return c.Kind == ContextNone
}

func (c Context) String() string {
	switch c.Kind {
	case ContextEndpointPair:
		return fmt.Sprintf("pair:%s,%s", addrString(c.A), addrString(c.B))
	case ContextConnection, ContextObject:
		return c.Kind.String() + ":" + c.ID
	default:
		return "none"
	}
}

// ParseContext reverses Context.String. Identities are taken verbatim.
func ParseContext(value string) (Context, error) {
	if value == "" || value == "none" {
		return NoContext(), nil
	}

	label, rest, ok := strings.Cut(value, ":")
	if !ok {
		return NoContext(), fmt.Errorf("%w: malformed context %q", ErrInvalidArgument, value)
	}
	kind, err := ParseContextKind(label)
	if err != nil {
		return NoContext(), err
	}

	switch kind {
	case ContextEndpointPair:
		left, right, ok := strings.Cut(rest, ",")
		if !ok {
			return NoContext(), fmt.Errorf("%w: endpoint pair needs two addresses: %q", ErrInvalidArgument, value)
		}
		a, err := parseAddr(left)
		if err != nil {
			return NoContext(), err
		}
		b, err := parseAddr(right)
		if err != nil {
			return NoContext(), err
		}
		return EndpointPairContext(a, b), nil
	case ContextConnection:
		return ConnectionContext(rest), nil
	case ContextObject:
		return ObjectContext(rest), nil
	default:
		return NoContext(), nil
	}
}

// CleanNames trims user-supplied names and drops empty ones. Input read
// from flags, config and request bodies goes through it before reaching
// a name set, which matches exactly.
func CleanNames(names []string) []string {
	cleaned := make([]string, 0, len(names))
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			cleaned = append(cleaned, name)
		}
	}
	return cleaned
}

func addrString(a netip.Addr) string {
	if !a.IsValid() {
		return "-"
	}
	return a.String()
}

func parseAddr(value string) (netip.Addr, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "-" {
		return netip.Addr{}, nil
	}
	addr, err := netip.ParseAddr(value)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return addr, nil
}

// SamplingKey identifies one counting bucket. Keys compare by value.
type SamplingKey struct {
	Name    string
	Context Context
}

// NewSamplingKey builds a key for name in context c.
func NewSamplingKey(name string, c Context) SamplingKey {
	return SamplingKey{Name: name, Context: c}
}

func (k SamplingKey) String() string {
	if k.Context.IsNone() {
		return k.Name
	}
	return k.Name + "@" + k.Context.String()
}

// Decision is the outcome of a sampling check.
type Decision uint8

const (
	DecisionSuppress Decision = iota
	DecisionPass
)

func (d Decision) String() string {
	if d == DecisionPass {
		return "pass"
	}
	return "suppress"
}
