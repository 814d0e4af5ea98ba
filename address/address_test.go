package address

import (
	"fmt"
	"net"
	"testing"

	"github.com/kryptonrpc/export/address/portpool"
)

func newTestResolver() *Resolver {
	return &Resolver{
		Pool: portpool.New(),
		Env:  func(string) string { return "" },
		LocalInterfaceAddr: func() (string, error) {
			return "", fmt.Errorf("no interface")
		},
		LocalHost: func() (string, error) {
			return "203.0.113.5", nil
		},
	}
}

func TestResolveFallsBackToConfigHost(t *testing.T) {
	r := newTestResolver()
	res, err := r.Resolve(Config{Protocol: "dubbo", ProtocolHost: "10.0.0.1", DefaultPort: 20880})
	if err != nil {
		t.Fatal(err)
	}
	if res.BindHost != "10.0.0.1" || res.AnyHost {
		t.Fatalf("want bind host 10.0.0.1 anyhost=false, got %+v", res)
	}
	if res.BindPort != 20880 {
		t.Fatalf("want bind port 20880, got %d", res.BindPort)
	}
}

func TestResolveEnvOverridesEverything(t *testing.T) {
	r := newTestResolver()
	r.Env = func(name string) string {
		switch name {
		case "DUBBO_DUBBO_IP_TO_BIND":
			return "10.1.1.1"
		default:
			return ""
		}
	}
	res, err := r.Resolve(Config{Protocol: "dubbo", ProtocolHost: "10.0.0.1", DefaultPort: 20880})
	if err != nil {
		t.Fatal(err)
	}
	if res.BindHost != "10.1.1.1" {
		t.Fatalf("want env override, got %q", res.BindHost)
	}
}

func TestResolveInvalidEnvHostFails(t *testing.T) {
	r := newTestResolver()
	r.Env = func(name string) string {
		if name == "DUBBO_DUBBO_IP_TO_BIND" {
			return "0.0.0.0"
		}
		return ""
	}
	if _, err := r.Resolve(Config{Protocol: "dubbo", DefaultPort: 20880}); err == nil {
		t.Fatal("expected InvalidBindAddress error")
	}
}

func TestResolveFallsBackToLocalHost(t *testing.T) {
	r := newTestResolver()
	res, err := r.Resolve(Config{Protocol: "dubbo", DefaultPort: 20880})
	if err != nil {
		t.Fatal(err)
	}
	if res.BindHost != "203.0.113.5" || !res.AnyHost {
		t.Fatalf("want discovered host with anyhost=true, got %+v", res)
	}
}

func TestResolveProbesRegistryWhenNoOtherSourceAvailable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	r := newTestResolver()
	r.LocalInterfaceAddr = func() (string, error) { return "", fmt.Errorf("none") }
	res, err := r.Resolve(Config{
		Protocol:    "dubbo",
		DefaultPort: 20880,
		Registries:  []Registry{{Address: ln.Addr().String()}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.AnyHost {
		t.Fatalf("want anyhost=true after probing, got %+v", res)
	}
	if res.BindHost == "" {
		t.Fatal("want a bind host resolved from the probe")
	}
}

func TestResolveBindPortAllocatesAndCaches(t *testing.T) {
	r := newTestResolver()
	res1, err := r.Resolve(Config{Protocol: "dubbo", ProtocolHost: "10.0.0.1"})
	if err != nil {
		t.Fatal(err)
	}
	if res1.BindPort == 0 {
		t.Fatal("want an allocated port")
	}
	res2, err := r.Resolve(Config{Protocol: "dubbo", ProtocolHost: "10.0.0.1"})
	if err != nil {
		t.Fatal(err)
	}
	if res2.BindPort != res1.BindPort {
		t.Fatalf("want cached port reused, got %d then %d", res1.BindPort, res2.BindPort)
	}
}

func TestResolveAdvertiseDefaultsToBind(t *testing.T) {
	r := newTestResolver()
	res, err := r.Resolve(Config{Protocol: "dubbo", ProtocolHost: "10.0.0.1", DefaultPort: 20880})
	if err != nil {
		t.Fatal(err)
	}
	if res.AdvertiseHost != res.BindHost || res.AdvertisePort != res.BindPort {
		t.Fatalf("want advertise == bind by default, got %+v", res)
	}
}

func TestResolveAdvertiseEnvOverride(t *testing.T) {
	r := newTestResolver()
	r.Env = func(name string) string {
		if name == "DUBBO_DUBBO_IP_TO_REGISTRY" {
			return "198.51.100.1"
		}
		return ""
	}
	res, err := r.Resolve(Config{Protocol: "dubbo", ProtocolHost: "10.0.0.1", DefaultPort: 20880})
	if err != nil {
		t.Fatal(err)
	}
	if res.AdvertiseHost != "198.51.100.1" {
		t.Fatalf("want advertise override, got %q", res.AdvertiseHost)
	}
	if res.BindHost != "10.0.0.1" {
		t.Fatalf("bind host should be unaffected, got %q", res.BindHost)
	}
}

func TestResolveInvalidPortEnv(t *testing.T) {
	r := newTestResolver()
	r.Env = func(name string) string {
		if name == "DUBBO_DUBBO_PORT_TO_BIND" {
			return "not-a-port"
		}
		return ""
	}
	if _, err := r.Resolve(Config{Protocol: "dubbo", ProtocolHost: "10.0.0.1"}); err == nil {
		t.Fatal("expected InvalidPort error")
	}
}
