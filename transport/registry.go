package transport

import (
	"github.com/kryptonrpc/export/descriptor"
	"github.com/kryptonrpc/export/internal/xerr"
)

// registryTransport is itself a Transport whose Export re-dispatches to
// whatever transport is named by the embedded export= parameter (spec
// §4.4: "this is how the same pipeline drives both registration and
// direct export"). Grounded on the request-plumbing shape of
// daemon/client/client.go's MakeRequest: validate preconditions, resolve
// the real destination, delegate, translate failures into the caller's
// error vocabulary.
type registryTransport struct{}

func init() {
	Register("registry", registryTransport{})
}

func (registryTransport) DefaultPort() uint16 { return 0 }

func (registryTransport) Export(invoker Invoker) (Exporter, error) {
	exportParam := invoker.Descriptor.Parameter("export", "")
	if exportParam == "" {
		return nil, &xerr.ConfigurationError{Reason: "registry export requires an export= parameter naming the target descriptor"}
	}
	serviceDescriptor, err := descriptor.Parse(exportParam)
	if err != nil {
		return nil, &xerr.ExportFailure{Protocol: "registry", Registry: invoker.Descriptor.Address(), Cause: err}
	}

	real, err := Lookup(serviceDescriptor.Protocol())
	if err != nil {
		return nil, &xerr.ExportFailure{Protocol: "registry", Registry: invoker.Descriptor.Address(), Cause: err}
	}

	realInvoker := Invoker{
		InterfaceName: invoker.InterfaceName,
		Reference:     invoker.Reference,
		Descriptor:    serviceDescriptor,
	}
	exporter, err := real.Export(realInvoker)
	if err != nil {
		return nil, &xerr.ExportFailure{Protocol: serviceDescriptor.Protocol(), Registry: invoker.Descriptor.Address(), Cause: err}
	}
	return exporter, nil
}
