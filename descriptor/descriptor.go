// Package descriptor implements the endpoint descriptor (spec §3, §4.1):
// the immutable, URI-shaped value that identifies one exported service
// instance: protocol, host, port, service path, and an ordered parameter
// map.
//
// A plain, copyable value struct with explicit constructors and no hidden
// mutation, in the same spirit as kryptco-kr's fixed value types
// (PairingSecret and friends), without their JSON tags.
package descriptor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kryptonrpc/export/internal/xerr"
)

// Descriptor is an immutable endpoint descriptor. Zero value is not valid;
// build one with Parse or New.
type Descriptor struct {
	protocol string
	user     string
	pass     string
	host     string
	port     uint16
	path     string
	params   params
}

// New builds a Descriptor directly from its essential attributes, with an
// empty parameter map.
func New(protocol, host string, port uint16, path string) Descriptor {
	return Descriptor{
		protocol: strings.ToLower(protocol),
		host:     host,
		port:     port,
		path:     path,
		params:   newParams(),
	}
}

func (d Descriptor) Protocol() string { return d.protocol }
func (d Descriptor) Host() string     { return d.host }
func (d Descriptor) Port() uint16     { return d.port }
func (d Descriptor) Path() string     { return d.path }
func (d Descriptor) User() string     { return d.user }

// Address returns "host:port", the form transports bind/dial against.
func (d Descriptor) Address() string {
	return fmt.Sprintf("%s:%d", d.host, d.port)
}

// WithHost returns a copy of d with a different host.
func (d Descriptor) WithHost(host string) Descriptor {
	next := d
	next.host = host
	return next
}

// WithPort returns a copy of d with a different port.
func (d Descriptor) WithPort(port uint16) Descriptor {
	next := d
	next.port = port
	return next
}

// WithProtocol returns a copy of d with a different protocol.
func (d Descriptor) WithProtocol(protocol string) Descriptor {
	next := d
	next.protocol = strings.ToLower(protocol)
	return next
}

// WithPath returns a copy of d with a different service path.
func (d Descriptor) WithPath(path string) Descriptor {
	next := d
	next.path = path
	return next
}

// WithParameter returns a new Descriptor with key set to value (decoded
// form). Overwrites any existing value for key (spec §4.1).
func (d Descriptor) WithParameter(key, value string) Descriptor {
	next := d
	next.params = d.params.clone()
	next.params.set(key, value)
	return next
}

// WithParameterIfAbsent is a no-op if key is already present with a
// non-empty value (spec §4.1).
func (d Descriptor) WithParameterIfAbsent(key, value string) Descriptor {
	if existing, ok := d.params.get(key); ok && existing != "" {
		return d
	}
	return d.WithParameter(key, value)
}

// WithEncodedParameter decodes raw as a percent-encoded value and stores
// the decoded form, so the Descriptor's internal representation stays
// canonical regardless of how a parameter value arrived (spec §4.1).
func (d Descriptor) WithEncodedParameter(key, raw string) (Descriptor, error) {
	decoded, err := decodeValue(raw)
	if err != nil {
		return Descriptor{}, &xerr.ParseError{Input: raw, Reason: err.Error()}
	}
	return d.WithParameter(key, decoded), nil
}

// WithoutParameter returns a copy of d with key removed, if present.
func (d Descriptor) WithoutParameter(key string) Descriptor {
	if _, ok := d.params.get(key); !ok {
		return d
	}
	next := d
	next.params = newParams()
	for _, k := range d.params.keys {
		if k == key {
			continue
		}
		v, _ := d.params.get(k)
		next.params.set(k, v)
	}
	return next
}

// Parameter returns the decoded value for key, or def if absent.
func (d Descriptor) Parameter(key, def string) string {
	if v, ok := d.params.get(key); ok {
		return v
	}
	return def
}

// ParameterAsInt parses the parameter as a base-10 integer, returning def
// on absence or parse failure.
func (d Descriptor) ParameterAsInt(key string, def int) int {
	v, ok := d.params.get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// ParameterAsBool applies standard truthy parsing: "true", "1", "yes"
// case-insensitive (spec §4.1).
func (d Descriptor) ParameterAsBool(key string, def bool) bool {
	v, ok := d.params.get(key)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return def
	}
}

// HasParameter reports whether key is present (regardless of value).
func (d Descriptor) HasParameter(key string) bool {
	_, ok := d.params.get(key)
	return ok
}

// ParameterKeys returns parameter keys in first-occurrence order.
func (d Descriptor) ParameterKeys() []string {
	keys := make([]string, len(d.params.keys))
	copy(keys, d.params.keys)
	return keys
}

// Equal reports whether d and o describe the same endpoint: same protocol,
// user, host, port, path, and parameter set (order-independent). This is
// the comparison spec §8 invariant 1 ("descriptor round-trip") is checked
// against, since Descriptor holds an unexported map and isn't otherwise
// comparable with ==.
func (d Descriptor) Equal(o Descriptor) bool {
	return d.protocol == o.protocol &&
		d.user == o.user &&
		d.pass == o.pass &&
		d.host == o.host &&
		d.port == o.port &&
		d.path == o.path &&
		d.params.equal(o.params)
}

// String is equivalent to Format(d); it exists so Descriptor satisfies
// fmt.Stringer for logging.
func (d Descriptor) String() string {
	return Format(d)
}
