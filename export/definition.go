// Package export implements the Exporter Pipeline (spec §3 "Exporter
// Handle", §4.5 "Exporter Pipeline (C5)"): the orchestration that turns
// one service definition into N live, addressable endpoints.
//
// Grounded on kryptco-kr's control server shape: an
// object that owns a small amount of mutable state behind one mutex and
// exposes Start/Stop-style lifecycle methods, plus the "typed sentinel
// error, wrapped with context at the call site" idiom reused here via
// internal/xerr.
package export

import (
	"reflect"
	"sort"
	"time"

	"github.com/kryptonrpc/export/config"
	"github.com/kryptonrpc/export/internal/xerr"
)

// ProtocolConfig describes one protocol this service is exported over.
type ProtocolConfig struct {
	Name string // lowercase transport/protocol name, e.g. "dubbo", "http", "injvm"

	Host string // protocol-scope bind host override, may be empty
	Port int    // protocol-scope bind port override; 0 means "resolve"

	// Path overrides the service path in the built descriptor; defaults
	// to the interface name.
	Path string

	// Scope is "local", "remote", "none", or "" (both), per spec §4.5
	// step 4.
	Scope string

	// Methods lists the interface's method names, rendered into the
	// descriptor's methods= parameter (spec §6).
	Methods []string

	// Revision is the implementation revision attached as revision=
	// (spec §6), used by descriptor.CompatibleRevision on the caller
	// side.
	Revision string

	// Token, if "true" or "default", causes a UUID to be generated and
	// attached as token= (spec §6).
	Token string

	// Params carries any other descriptor parameters verbatim, such as
	// generic= or application-specific attributes resolved by the
	// Config Resolver (C2).
	Params map[string]string
}

// RegistryConfig describes one registry this service's protocols are
// registered against (spec §4.5 step 6).
type RegistryConfig struct {
	// Descriptor is the full registry descriptor string, e.g.
	// "registry://127.0.0.1:2181/RegistryService".
	Descriptor string

	// Dynamic, if non-nil and false, makes the added dynamic= value
	// "false" instead of the default "true". A dynamic= value already
	// present in Descriptor is kept as it is.
	Dynamic *bool

	// Monitor, if non-empty, is attached as an (encoded) monitor=
	// parameter.
	Monitor string

	// Proxy, if non-empty, is propagated as a proxy= hint.
	Proxy string
}

// genericFlavours are the only values spec.md §6 assigns meaning to for
// the generic= parameter; anything else is a ConfigurationError (spec §7
// "unknown generic flavour").
var genericFlavours = map[string]bool{
	"":           true, // not generic
	"true":       true,
	"nativejava": true,
	"bean":       true,
}

// ServiceDefinition is every input required to export one service (spec
// §3 "Service Definition").
type ServiceDefinition struct {
	InterfaceName string
	Reference     interface{}
	// Generic selects the generic-invocation flavour (spec §6: "true",
	// "nativejava", or "bean"), or "" for a normal, typed service.
	// Reference-satisfies-interface validation is skipped whenever this
	// is non-empty (spec §4.5 step 2).
	Generic string

	// InterfaceType, if set, lets validation check that Reference
	// actually implements the declared interface via reflection. Left
	// nil, that check is skipped (the framework's real dynamic-proxy
	// layer performs it with richer reflection than a plain Go
	// interface type can express, and is out of scope here).
	InterfaceType reflect.Type

	// Local, if set, is an optional decorator implementation that must
	// also implement InterfaceType (spec §4.5 step 2: "validate optional
	// local/stub class names exist and implement the interface").
	Local interface{}

	// Stub, if set, is an optional client-side stub implementation,
	// validated against InterfaceType the same way as Local.
	Stub interface{}

	// InterfaceMethods lists the methods declared on the interface, used
	// to validate method-overrides (spec §3: "every method named in
	// method-overrides must exist on the interface").
	InterfaceMethods []string
	MethodOverrides  []config.MethodOverride

	Protocols  []ProtocolConfig
	Registries []RegistryConfig

	// Delay, if > 0, defers the bulk of export() to the shared delay
	// executor (spec §4.5 step 3).
	Delay time.Duration
}

func (d ServiceDefinition) validate() error {
	if d.InterfaceName == "" {
		return &xerr.ConfigurationError{Reason: "interface identifier must not be empty"}
	}
	if !genericFlavours[d.Generic] {
		return &xerr.ConfigurationError{Reason: "unknown generic flavour " + d.Generic}
	}
	if d.Generic == "" {
		if d.Reference == nil {
			return &xerr.ConfigurationError{Reason: "reference must not be nil for a non-generic service"}
		}
		if d.InterfaceType != nil && !reflect.TypeOf(d.Reference).Implements(d.InterfaceType) {
			return &xerr.ConfigurationError{Reason: "reference does not implement the declared interface"}
		}
	}
	if d.InterfaceType != nil {
		if d.Local != nil && !reflect.TypeOf(d.Local).Implements(d.InterfaceType) {
			return &xerr.ConfigurationError{Reason: "local class does not implement the interface"}
		}
		if d.Stub != nil && !reflect.TypeOf(d.Stub).Implements(d.InterfaceType) {
			return &xerr.ConfigurationError{Reason: "stub class does not implement the interface"}
		}
	}
	methodSet := map[string]bool{}
	for _, m := range d.InterfaceMethods {
		methodSet[m] = true
	}
	if len(methodSet) > 0 {
		for _, mo := range d.MethodOverrides {
			if !methodSet[mo.Name] {
				return &xerr.ConfigurationError{Reason: "method override " + mo.Name + " does not exist on the interface"}
			}
		}
	}
	return nil
}

func sortedMethods(methods []string) []string {
	out := make([]string, len(methods))
	copy(out, methods)
	sort.Strings(out)
	return out
}
