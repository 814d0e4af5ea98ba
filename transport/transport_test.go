package transport

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/kryptonrpc/export/descriptor"
	"github.com/kryptonrpc/export/internal/xerr"
)

func httpRecorderPing(t *testing.T, inv Invoker) int {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	genericInvocationHandler(inv)(rec, req)
	return rec.Code
}

func TestLookupUnknownProtocol(t *testing.T) {
	_, err := Lookup("no-such-protocol")
	if _, ok := err.(*xerr.UnknownProtocol); !ok {
		t.Fatalf("want *xerr.UnknownProtocol, got %T (%v)", err, err)
	}
}

func TestLookupKnownProtocols(t *testing.T) {
	for _, p := range []string{"injvm", "unix", "http", "registry", "sqsregistry", "pipe"} {
		if _, err := Lookup(p); err != nil {
			t.Fatalf("protocol %q should be registered: %v", p, err)
		}
	}
}

func TestInjvmExportAndLookupLocal(t *testing.T) {
	d := descriptor.New("injvm", "127.0.0.1", 0, "com.example.Greeter")
	ref := struct{ Name string }{"greeter-impl"}
	inv := Invoker{InterfaceName: "com.example.Greeter", Reference: ref, Descriptor: d}

	transport, err := Lookup("injvm")
	if err != nil {
		t.Fatal(err)
	}
	exporter, err := transport.Export(inv)
	if err != nil {
		t.Fatal(err)
	}

	got, ok := LookupLocal("com.example.Greeter")
	if !ok || got != ref {
		t.Fatalf("want local lookup to find the exported reference, got %v ok=%v", got, ok)
	}

	if err := exporter.Unexport(); err != nil {
		t.Fatal(err)
	}
	if err := exporter.Unexport(); err != nil {
		t.Fatalf("unexport must be idempotent, got %v", err)
	}
	if _, ok := LookupLocal("com.example.Greeter"); ok {
		t.Fatal("want local reference removed after unexport")
	}
}

func TestUnixExportRemovesStaleSocketAndBinds(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "service.sock")
	if err := os.WriteFile(socketPath, []byte("stale"), 0o600); err != nil {
		t.Fatal(err)
	}

	d := descriptor.New("unix", "", 0, socketPath)
	inv := Invoker{InterfaceName: "com.example.Greeter", Descriptor: d}

	transport, err := Lookup("unix")
	if err != nil {
		t.Fatal(err)
	}
	exporter, err := transport.Export(inv)
	if err != nil {
		t.Fatalf("expected bind to succeed over a stale socket file, got %v", err)
	}
	if err := exporter.Unexport(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Fatal("want socket file removed after unexport")
	}
}

func TestRegistryExportRequiresExportParameter(t *testing.T) {
	d := descriptor.New("registry", "127.0.0.1", 2181, "zookeeper")
	inv := Invoker{Descriptor: d}
	transport, err := Lookup("registry")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := transport.Export(inv); err == nil {
		t.Fatal("expected a configuration error without an export= parameter")
	}
}

func TestRegistryExportDispatchesToNamedTransport(t *testing.T) {
	inner := descriptor.New("injvm", "127.0.0.1", 0, "com.example.Greeter")
	d := descriptor.New("registry", "127.0.0.1", 2181, "zookeeper").WithParameter("export", descriptor.Format(inner))
	inv := Invoker{InterfaceName: "com.example.Greeter", Reference: "ref", Descriptor: d}

	transport, err := Lookup("registry")
	if err != nil {
		t.Fatal(err)
	}
	exporter, err := transport.Export(inv)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := LookupLocal("com.example.Greeter"); !ok {
		t.Fatal("want registry export to have dispatched to injvm")
	}
	if err := exporter.Unexport(); err != nil {
		t.Fatal(err)
	}
}

func TestHTTPExportBindsOnBindAddressNotAdvertiseAddress(t *testing.T) {
	// The descriptor's own host:port is the advertised address a remote
	// caller would dial; bind.ip/bind.port name the (possibly different,
	// e.g. behind NAT) local address the transport must actually listen
	// on. Point the advertised host somewhere unroutable so a test that
	// mistakenly binds on it fails instead of silently succeeding.
	d := descriptor.New("http", "203.0.113.1", 80, "com.example.Greeter").
		WithParameter("bind.ip", "127.0.0.1").
		WithParameter("bind.port", "0")
	inv := Invoker{InterfaceName: "com.example.Greeter", Descriptor: d}

	transport, err := Lookup("http")
	if err != nil {
		t.Fatal(err)
	}
	exporter, err := transport.Export(inv)
	if err != nil {
		t.Fatalf("expected bind on bind.ip/bind.port to succeed, got %v", err)
	}
	defer exporter.Unexport()
}

func TestHTTPExportAndGenericHandler(t *testing.T) {
	d := descriptor.New("http", "127.0.0.1", 0, "com.example.Greeter").
		WithParameter("bind.ip", "127.0.0.1").
		WithParameter("bind.port", "0")
	inv := Invoker{InterfaceName: "com.example.Greeter", Descriptor: d}

	transport, err := Lookup("http")
	if err != nil {
		t.Fatal(err)
	}
	exporter, err := transport.Export(inv)
	if err != nil {
		t.Fatal(err)
	}
	defer exporter.Unexport()

	// Export doesn't hand back the bound port, so the served routes
	// cannot be dialled here; this confirms the handle was produced
	// without error, and exercises the generic handler directly.
	rr := httpRecorderPing(t, inv)
	if rr != http.StatusOK {
		t.Fatalf("want 200 from the generic handler, got %d", rr)
	}
}

func TestRegistryExportUnknownTargetProtocol(t *testing.T) {
	inner := descriptor.New("no-such-protocol", "127.0.0.1", 0, "x")
	d := descriptor.New("registry", "127.0.0.1", 2181, "zookeeper").WithParameter("export", descriptor.Format(inner))
	inv := Invoker{Descriptor: d}

	transport, _ := Lookup("registry")
	if _, err := transport.Export(inv); err == nil {
		t.Fatal("expected an export failure wrapping the unknown protocol")
	}
}
