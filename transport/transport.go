// Package transport is the transport registry (spec §3 "Transport
// Registry (C4)", §4.4): a protocol-name → implementation lookup plus the
// small capability interfaces the export pipeline drives.
//
// Grounded on kryptco-kr's control server shape (a thing that owns a
// net.Listener and serves requests off it) and its stale-file cleanup
// convention before binding a unix socket.
// The actual wire codec and request dispatch are out of scope (spec §1
// "Non-goals"); each transport here exposes only bind/serve and unexport.
package transport

import (
	"sync"

	"github.com/kryptonrpc/export/descriptor"
	"github.com/kryptonrpc/export/internal/xerr"
)

// Invoker is what the export pipeline hands a transport: enough to
// construct a listening endpoint without the transport needing to know
// anything about proxies, interfaces, or method dispatch (spec §4.4).
type Invoker struct {
	InterfaceName string
	Reference     interface{}
	Descriptor    descriptor.Descriptor
}

// Exporter is the opaque handle spec §3 calls the "Exporter Handle":
// supports idempotent Unexport.
type Exporter interface {
	Unexport() error
}

// Transport is the capability a protocol name resolves to (spec §4.4).
type Transport interface {
	// DefaultPort returns the transport's conventional port, or 0 if it
	// has none (in which case the Address Resolver allocates one).
	DefaultPort() uint16
	Export(invoker Invoker) (Exporter, error)
}

// registry is the process-wide protocol name → Transport table.
type registry struct {
	mu    sync.RWMutex
	byKey map[string]Transport
}

var def = &registry{byKey: map[string]Transport{}}

// Register installs a transport under protocol. Intended to be called
// from init() by each transport implementation, the extension-point style
// of self-registering collaborators used throughout this codebase.
func Register(protocol string, t Transport) {
	def.mu.Lock()
	defer def.mu.Unlock()
	def.byKey[protocol] = t
}

// Lookup resolves protocol to its Transport, or UnknownProtocol.
func Lookup(protocol string) (Transport, error) {
	def.mu.RLock()
	defer def.mu.RUnlock()
	t, ok := def.byKey[protocol]
	if !ok {
		return nil, &xerr.UnknownProtocol{Protocol: protocol}
	}
	return t, nil
}

// bindAddress returns the host/port a transport should actually listen on.
// The descriptor's own Host/Port is the *advertised* address handed to
// remote callers (spec §4.3); bind.ip/bind.port carry the possibly-different
// local address to bind against (NAT, multi-homed hosts). Falls back to the
// advertised address when bind params are absent, which is the common case
// where the two coincide.
func bindAddress(d descriptor.Descriptor) (string, int) {
	host := d.Parameter("bind.ip", d.Host())
	port := d.ParameterAsInt("bind.port", int(d.Port()))
	return host, port
}

// exporterFunc adapts a plain func to the Exporter interface, preferring a
// small function-shaped collaborator over a bespoke single-method struct
// where the body is a handful of lines.
type exporterFunc func() error

func (f exporterFunc) Unexport() error { return f() }
