package export

import (
	"github.com/kryptonrpc/export/descriptor"
	"github.com/kryptonrpc/export/transport"
)

// ProxyFactory is the capability spec §6 calls out as an external
// collaborator: "getInvoker(ref, interfaceClass, descriptor) → invoker".
// The dynamic proxy machinery that would build a real invocation handler
// from a reflected interface is out of scope (spec §1); this package
// only needs something that produces the transport.Invoker shape.
type ProxyFactory interface {
	GetInvoker(ref interface{}, interfaceName string, d descriptor.Descriptor) transport.Invoker
}

// defaultProxyFactory is the identity implementation: it wraps the
// reference and descriptor into an Invoker without any interception.
type defaultProxyFactory struct{}

func (defaultProxyFactory) GetInvoker(ref interface{}, interfaceName string, d descriptor.Descriptor) transport.Invoker {
	return transport.Invoker{InterfaceName: interfaceName, Reference: ref, Descriptor: d}
}
