// Package xerr defines the error kinds surfaced by the export pipeline and
// load balancer (spec §7).
package xerr

import "fmt"

// Sentinel errors for conditions that carry no extra payload.
var (
	// ErrAlreadyUnexported is returned by export() on a service that has
	// already transitioned to "unexported" (spec §3 lifecycle, §7).
	ErrAlreadyUnexported = fmt.Errorf("service already unexported")

	// ErrSelectorEmpty is the value the load balancer panics with when it
	// is asked to pick from an empty candidate list (spec §7:
	// unrecoverable programming error at the call site).
	ErrSelectorEmpty = fmt.Errorf("selector called with empty candidate list")
)

// ParseError reports a malformed endpoint descriptor string (spec §4.1, §7).
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %q: %s", e.Input, e.Reason)
}

// ConfigurationError reports a defect in the resolved service configuration
// (spec §4.5 step 2, §7): missing interface identifier, reference that does
// not satisfy the interface, an argument index/type mismatch, an unknown
// generic flavour, or a stub/local class that does not implement the
// interface. An invalid bind address or port from an explicit source is
// not reported as a ConfigurationError but as InvalidBindAddress or
// InvalidPort.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// UnknownProtocol reports that no transport is registered under the given
// protocol name (spec §4.4, §7).
type UnknownProtocol struct {
	Protocol string
}

func (e *UnknownProtocol) Error() string {
	return fmt.Sprintf("unknown protocol: %q", e.Protocol)
}

// ExportFailure wraps an error raised by a downstream transport, annotated
// with the (protocol, registry) pair that produced it (spec §4.5 "Ordering
// and partial failure", §7).
type ExportFailure struct {
	Protocol string
	Registry string
	Cause    error
}

func (e *ExportFailure) Error() string {
	if e.Registry != "" {
		return fmt.Sprintf("export failed for protocol %q registry %q: %s", e.Protocol, e.Registry, e.Cause)
	}
	return fmt.Sprintf("export failed for protocol %q: %s", e.Protocol, e.Cause)
}

func (e *ExportFailure) Unwrap() error { return e.Cause }

// InvalidBindAddress reports that a bind/advertise address environment
// variable supplied a known-invalid local address such as "0.0.0.0" or
// "localhost" (spec §4.3). Config-field hosts are not checked.
type InvalidBindAddress struct {
	Source string
	Value  string
}

func (e *InvalidBindAddress) Error() string {
	return fmt.Sprintf("invalid bind address %q from %s", e.Value, e.Source)
}

// InvalidPort reports a non-numeric or out-of-range port value (spec §4.1,
// §4.3).
type InvalidPort struct {
	Source string
	Value  string
}

func (e *InvalidPort) Error() string {
	return fmt.Sprintf("invalid port %q from %s", e.Value, e.Source)
}
