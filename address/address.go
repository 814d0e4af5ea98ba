// Package address resolves the bind address/port and the advertised
// address/port for one export (spec §3 "Address Resolver (C3)", §4.3).
//
// Grounded on kryptco-kr's "best-effort, fall through to the next
// source" texture (its KrDir/HomeDir chase several fallbacks
// before giving up) and on its DaemonDialWithTimeout bounded-timeout
// dial-and-inspect pattern, reused here for the registry socket probe.
package address

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/golang/groupcache/singleflight"
	lru "github.com/hashicorp/golang-lru"

	"github.com/kryptonrpc/export/address/portpool"
	"github.com/kryptonrpc/export/internal/log"
	"github.com/kryptonrpc/export/internal/xerr"
)

// Registry is the minimal shape the resolver needs from a registry
// descriptor: its dial address and whether it is a multicast registry
// (multicast registries are skipped by the socket probe, spec §4.3).
type Registry struct {
	Address   string // "host:port"
	Multicast bool
}

// Config carries the per-export inputs to Resolve (spec §4.3).
type Config struct {
	Protocol string

	ProtocolHost string
	ProviderHost string
	// ProtocolPort and ProviderPort are 0 when unset.
	ProtocolPort int
	ProviderPort int

	// DefaultPort is the transport's declared default port (0 if the
	// transport has none and a random port must be allocated).
	DefaultPort uint16

	Registries []Registry
}

// Result is the resolved address/port pair plus whether the host was
// auto-discovered (spec §6 "anyhost").
type Result struct {
	BindHost      string
	BindPort      uint16
	AdvertiseHost string
	AdvertisePort uint16
	AnyHost       bool
}

// Resolver holds the collaborators address resolution depends on, each
// overridable for tests the way kryptco-kr's ControlServer takes an
// EnclaveClientI instead of constructing one internally.
type Resolver struct {
	Pool *portpool.Pool

	// Env looks up an environment variable; defaults to os.Getenv.
	Env func(string) string

	// LocalInterfaceAddr implements step (d): one of the host's network
	// addresses via a local-interface lookup.
	LocalInterfaceAddr func() (string, error)

	// LocalHost implements step (f): the final getLocalHost fallback.
	LocalHost func() (string, error)

	// DialTimeout bounds the registry socket probe (spec §4.3, §5:
	// "explicit 1-second connect timeout"). Defaults to 1 second.
	DialTimeout time.Duration

	// probeCache memoizes the last local address a probe of a given
	// registry resolved to, avoiding a repeat dial on every export of the
	// same service. Eviction is fine here: a stale entry just causes one
	// extra probe, not an authoritative-state loss (unlike the Port
	// Allocator, which must retain forever).
	probeCache *lru.Cache

	// probeGroup collapses concurrent probes of the same registry address
	// (two services exporting at once both miss the cache) into a single
	// dial; groupcache's singleflight is exactly the "many callers, one
	// in-flight fetch" shape this needs.
	probeGroup singleflight.Group
}

var knownInvalidHosts = map[string]bool{
	"0.0.0.0":         true,
	"localhost":       true,
	"::":              true,
	"0:0:0:0:0:0:0:0": true,
}

// NewResolver returns a Resolver with production collaborators: real
// environment variables, a real local-interface probe, a 1-second dial
// timeout, and a 128-entry probe cache.
func NewResolver(pool *portpool.Pool) *Resolver {
	cache, _ := lru.New(128)
	return &Resolver{
		Pool:               pool,
		Env:                defaultEnv,
		LocalInterfaceAddr: defaultLocalInterfaceAddr,
		LocalHost:          defaultLocalHost,
		DialTimeout:        time.Second,
		probeCache:         cache,
	}
}

// Resolve computes the bind and advertise address/port for one export
// (spec §4.3).
func (r *Resolver) Resolve(cfg Config) (Result, error) {
	bindHost, anyHost, err := r.resolveBindHost(cfg)
	if err != nil {
		return Result{}, err
	}
	bindPort, err := r.resolveBindPort(cfg)
	if err != nil {
		return Result{}, err
	}
	advertiseHost, advertiseAnyHost, err := r.resolveAdvertiseHost(cfg, bindHost, anyHost)
	if err != nil {
		return Result{}, err
	}
	advertisePort, err := r.resolveAdvertisePort(cfg, bindPort)
	if err != nil {
		return Result{}, err
	}
	return Result{
		BindHost:      bindHost,
		BindPort:      bindPort,
		AdvertiseHost: advertiseHost,
		AdvertisePort: advertisePort,
		AnyHost:       anyHost || advertiseAnyHost,
	}, nil
}

func (r *Resolver) resolveBindHost(cfg Config) (host string, anyHost bool, err error) {
	if v := r.envLookup(cfg.Protocol, "DUBBO_IP_TO_BIND"); v != "" {
		if knownInvalidHosts[strings.ToLower(v)] {
			return "", false, &xerr.InvalidBindAddress{Source: "environment", Value: v}
		}
		return v, false, nil
	}
	if cfg.ProtocolHost != "" {
		return cfg.ProtocolHost, false, nil
	}
	if cfg.ProviderHost != "" {
		return cfg.ProviderHost, false, nil
	}
	if r.LocalInterfaceAddr != nil {
		if host, err := r.LocalInterfaceAddr(); err == nil && host != "" {
			return host, true, nil
		}
	}
	for _, reg := range cfg.Registries {
		if reg.Multicast {
			continue
		}
		if host, err := r.probeRegistry(reg.Address); err == nil && host != "" {
			return host, true, nil
		}
	}
	if r.LocalHost != nil {
		if host, err := r.LocalHost(); err == nil && host != "" {
			return host, true, nil
		}
	}
	return "", false, &xerr.ConfigurationError{Reason: "could not resolve a bind address from any source"}
}

func (r *Resolver) resolveAdvertiseHost(cfg Config, bindHost string, bindAnyHost bool) (string, bool, error) {
	if v := r.envLookup(cfg.Protocol, "DUBBO_IP_TO_REGISTRY"); v != "" {
		if knownInvalidHosts[strings.ToLower(v)] {
			return "", false, &xerr.InvalidBindAddress{Source: "environment", Value: v}
		}
		return v, false, nil
	}
	return bindHost, bindAnyHost, nil
}

func (r *Resolver) resolveBindPort(cfg Config) (uint16, error) {
	if v := r.envLookup(cfg.Protocol, "DUBBO_PORT_TO_BIND"); v != "" {
		return parsePort("environment", v)
	}
	if cfg.ProtocolPort > 0 {
		return uint16(cfg.ProtocolPort), nil
	}
	if cfg.ProviderPort > 0 {
		return uint16(cfg.ProviderPort), nil
	}
	if cfg.DefaultPort != 0 {
		return cfg.DefaultPort, nil
	}
	if r.Pool != nil {
		if cached, ok := r.Pool.RandomPort(cfg.Protocol); ok {
			return cached, nil
		}
	}
	allocated, err := allocateFreePort()
	if err != nil {
		return 0, &xerr.ConfigurationError{Reason: "could not allocate a free port: " + err.Error()}
	}
	if r.Pool == nil {
		return allocated, nil
	}
	cached, _ := r.Pool.RecordRandomPort(cfg.Protocol, allocated)
	return cached, nil
}

func (r *Resolver) resolveAdvertisePort(cfg Config, bindPort uint16) (uint16, error) {
	if v := r.envLookup(cfg.Protocol, "DUBBO_PORT_TO_REGISTRY"); v != "" {
		return parsePort("environment", v)
	}
	return bindPort, nil
}

// envLookup implements spec §6's fallback chain: the protocol-prefixed
// variable, then the bare variable.
func (r *Resolver) envLookup(protocol, name string) string {
	env := r.Env
	if env == nil {
		env = defaultEnv
	}
	if v := env(strings.ToUpper(protocol) + "_" + name); v != "" {
		return v
	}
	return env(name)
}

func (r *Resolver) probeRegistry(registryAddr string) (string, error) {
	if r.probeCache != nil {
		if v, ok := r.probeCache.Get(registryAddr); ok {
			return v.(string), nil
		}
	}
	v, err := r.probeGroup.Do(registryAddr, func() (interface{}, error) {
		timeout := r.DialTimeout
		if timeout == 0 {
			timeout = time.Second
		}
		conn, err := net.DialTimeout("tcp", registryAddr, timeout)
		if err != nil {
			log.Warnf("address: probe of registry %s failed: %v", registryAddr, err)
			return "", err
		}
		defer conn.Close()
		host, _, err := net.SplitHostPort(conn.LocalAddr().String())
		if err != nil {
			return "", err
		}
		if r.probeCache != nil {
			r.probeCache.Add(registryAddr, host)
		}
		return host, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func parsePort(source, v string) (uint16, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &xerr.InvalidPort{Source: source, Value: v}
	}
	if n < 1 || n > 65535 {
		return 0, &xerr.InvalidPort{Source: source, Value: v}
	}
	return uint16(n), nil
}

func allocateFreePort() (uint16, error) {
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected listener address type %T", l.Addr())
	}
	return uint16(addr.Port), nil
}
