// Package config resolves the five overlapping configuration scopes
// (spec §3 "Configuration Scopes", §4.2) into one flat parameter map ready
// to seed an endpoint descriptor.
//
// Grounded on the plain-struct configuration objects of kryptco-kr
// (PairingOptions, Profile): scopes here are immutable value
// structs too, and Resolve is a pure function over them rather than a
// mutating walk.
package config

import (
	"fmt"
	"sort"

	"github.com/kryptonrpc/export/internal/xerr"
)

// Scope holds one configuration scope's declared attributes (spec §4.2:
// "every declared attribute of the scope object").
type Scope struct {
	Attributes map[string]string
}

// ArgOverride is an argument-level override, keyed by either an explicit
// index or a type resolved against the interface's method signatures
// (spec §4.2).
type ArgOverride struct {
	Index      *int
	Type       string
	Attributes map[string]string
}

// MethodOverride is a method-level override plus any argument-level
// overrides nested under it (spec §3 "method" scope).
type MethodOverride struct {
	Name       string
	Attributes map[string]string
	Args       []ArgOverride
}

// Scopes bundles all five configuration scopes for one export call. Method
// is represented as zero or more MethodOverride entries, since it is keyed
// per method name rather than being a single object (spec §4.2).
type Scopes struct {
	Application Scope
	Module      Scope
	Provider    Scope
	Service     Scope
	Methods     []MethodOverride
}

// InterfaceMethod describes one method of the service interface, used to
// resolve argument overrides given only a type (spec §4.2).
type InterfaceMethod struct {
	Name     string
	ArgTypes []string
}

// Resolve walks the five scopes from lowest to highest precedence
// (application < module < provider < service < method) and returns the
// flattened parameter map (spec §4.2).
//
// Precedence is implemented as overwrite order: each scope's attributes
// are copied over the map built so far, so a higher-precedence scope's
// value for the same key wins. The provider scope additionally has a
// defaults-source role (spec §4.2): its attributes are always recorded a
// second time under a "default." prefix, regardless of whether a
// higher-precedence scope shadows them, so the resolved descriptor still
// carries the provider's nominal defaults.
func Resolve(scopes Scopes, interfaceMethods []InterfaceMethod) (map[string]string, error) {
	dst := map[string]string{"side": "provider"}

	appendParameters(dst, "", scopes.Application.Attributes)
	appendParameters(dst, "", scopes.Module.Attributes)
	appendParameters(dst, "", scopes.Provider.Attributes)
	appendParameters(dst, "default.", scopes.Provider.Attributes)
	appendParameters(dst, "", scopes.Service.Attributes)

	methods := make([]MethodOverride, len(scopes.Methods))
	copy(methods, scopes.Methods)
	sort.Slice(methods, func(i, j int) bool { return methods[i].Name < methods[j].Name })

	for _, m := range methods {
		prefix := m.Name + "."
		appendParameters(dst, prefix, m.Attributes)
		rewriteRetryFalse(dst, m.Name)

		for _, a := range m.Args {
			idx, err := resolveArgIndex(a, m.Name, interfaceMethods)
			if err != nil {
				return nil, err
			}
			appendParameters(dst, fmt.Sprintf("%s%d.", prefix, idx), a.Attributes)
		}
	}

	return dst, nil
}

func appendParameters(dst map[string]string, prefix string, attrs map[string]string) {
	for k, v := range attrs {
		dst[prefix+k] = v
	}
}

// rewriteRetryFalse applies the "<m>.retry=false" -> "<m>.retries=0"
// special rewrite (spec §4.2), removing the original key.
func rewriteRetryFalse(dst map[string]string, method string) {
	key := method + ".retry"
	if dst[key] == "false" {
		delete(dst, key)
		dst[method+".retries"] = "0"
	}
}

func resolveArgIndex(a ArgOverride, methodName string, interfaceMethods []InterfaceMethod) (int, error) {
	if a.Index != nil {
		if a.Type != "" {
			method := findMethod(interfaceMethods, methodName)
			if method == nil {
				return 0, &xerr.ConfigurationError{Reason: fmt.Sprintf("method %q not found on interface", methodName)}
			}
			if *a.Index < 0 || *a.Index >= len(method.ArgTypes) || method.ArgTypes[*a.Index] != a.Type {
				return 0, &xerr.ConfigurationError{Reason: fmt.Sprintf(
					"argument override for %s: index %d does not match type %q", methodName, *a.Index, a.Type)}
			}
		}
		return *a.Index, nil
	}
	if a.Type == "" {
		return 0, &xerr.ConfigurationError{Reason: fmt.Sprintf(
			"argument override for %s requires an explicit index or a type", methodName)}
	}
	method := findMethod(interfaceMethods, methodName)
	if method == nil {
		return 0, &xerr.ConfigurationError{Reason: fmt.Sprintf("method %q not found on interface", methodName)}
	}
	for i, t := range method.ArgTypes {
		if t == a.Type {
			return i, nil
		}
	}
	return 0, &xerr.ConfigurationError{Reason: fmt.Sprintf(
		"no argument of type %q found on method %s", a.Type, methodName)}
}

func findMethod(methods []InterfaceMethod, name string) *InterfaceMethod {
	for i := range methods {
		if methods[i].Name == name {
			return &methods[i]
		}
	}
	return nil
}
