package export

import (
	"strconv"
	"strings"
	"sync"

	uuid "github.com/satori/go.uuid"

	"github.com/kryptonrpc/export/address"
	"github.com/kryptonrpc/export/address/portpool"
	"github.com/kryptonrpc/export/descriptor"
	"github.com/kryptonrpc/export/internal/log"
	"github.com/kryptonrpc/export/internal/xerr"
	"github.com/kryptonrpc/export/transport"
)

type lifecycleState int

const (
	stateNew lifecycleState = iota
	stateExported
	stateUnexported
)

type exportedHandle struct {
	protocol string
	registry string
	exporter transport.Exporter
}

// Service orchestrates the export of one ServiceDefinition (spec §4.5).
// Construct with NewService; the zero value is not usable.
type Service struct {
	mu sync.Mutex

	def         ServiceDefinition
	state       lifecycleState
	scheduled   bool
	handles     []exportedHandle
	descriptors []descriptor.Descriptor

	Resolver     *address.Resolver
	ProxyFactory ProxyFactory
}

// NewService builds a Service ready to export def, wired to the
// process-wide port cache and a production address resolver.
func NewService(def ServiceDefinition) *Service {
	return &Service{
		def:          def,
		Resolver:     address.NewResolver(portpool.Default),
		ProxyFactory: defaultProxyFactory{},
	}
}

// Export materialises every configured protocol's endpoint (spec §4.5).
// Calling Export twice on an already-exported service is a silent no-op
// (spec invariant 2); calling it after Unexport fails with
// ErrAlreadyUnexported.
func (s *Service) Export() error {
	s.mu.Lock()
	switch s.state {
	case stateExported:
		s.mu.Unlock()
		return nil
	case stateUnexported:
		s.mu.Unlock()
		return xerr.ErrAlreadyUnexported
	}
	if s.scheduled {
		s.mu.Unlock()
		return nil
	}
	if err := s.def.validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	// scheduled stays set from here on, so a concurrent Export call
	// returns early instead of starting a second doExport.
	s.scheduled = true
	delay := s.def.Delay
	if delay > 0 {
		s.mu.Unlock()
		sharedDelayExecutor.Schedule(delay, func() {
			if err := s.doExport(); err != nil {
				log.Warnf("export: delayed export of %s failed: %v", s.def.InterfaceName, err)
			}
		})
		return nil
	}
	s.mu.Unlock()
	return s.doExport()
}

// doExport runs the per-protocol iteration (spec §4.5 steps 4-7). It is
// only ever invoked once per Service, either inline from Export or from
// the delay executor.
func (s *Service) doExport() error {
	var firstErr error

	for _, proto := range s.def.Protocols {
		serviceDescriptor, err := s.buildServiceDescriptor(proto)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		scope := proto.Scope
		if scope == "none" {
			continue
		}

		s.mu.Lock()
		s.descriptors = append(s.descriptors, serviceDescriptor)
		s.mu.Unlock()

		if scope == "" || scope == "local" {
			if err := s.exportLocal(serviceDescriptor); err != nil {
				if firstErr == nil {
					firstErr = err
				}
			}
		}
		if scope == "" || scope == "remote" {
			if err := s.exportRemote(serviceDescriptor); err != nil {
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}

	s.mu.Lock()
	s.state = stateExported
	s.mu.Unlock()

	return firstErr
}

func (s *Service) buildServiceDescriptor(proto ProtocolConfig) (descriptor.Descriptor, error) {
	path := proto.Path
	if path == "" {
		path = s.def.InterfaceName
	}

	result, err := s.Resolver.Resolve(address.Config{
		Protocol:     proto.Name,
		ProtocolHost: proto.Host,
		ProtocolPort: proto.Port,
		DefaultPort:  transportDefaultPort(proto.Name),
	})
	if err != nil {
		return descriptor.Descriptor{}, err
	}

	d := descriptor.New(proto.Name, result.AdvertiseHost, result.AdvertisePort, path)
	d = d.WithParameter("side", "provider")
	if result.AnyHost {
		d = d.WithParameter("anyhost", "true")
	}
	d = d.WithParameter("bind.ip", result.BindHost)
	d = d.WithParameter("bind.port", strconv.Itoa(int(result.BindPort)))

	if len(proto.Methods) > 0 {
		d = d.WithParameter("methods", strings.Join(sortedMethods(proto.Methods), ","))
	}
	if proto.Revision != "" {
		d = d.WithParameter("revision", proto.Revision)
	}
	if proto.Token == "true" || strings.EqualFold(proto.Token, "default") {
		d = d.WithParameter("token", uuid.NewV4().String())
	} else if proto.Token != "" {
		d = d.WithParameter("token", proto.Token)
	}
	if s.def.Generic != "" {
		d = d.WithParameterIfAbsent("generic", s.def.Generic)
	}
	for k, v := range proto.Params {
		d = d.WithParameter(k, v)
	}
	return d, nil
}

// exportLocal hands a process-local descriptor to the injvm transport
// (spec §4.5 step 5): port 0, loopback host, registration suppressed.
func (s *Service) exportLocal(serviceDescriptor descriptor.Descriptor) error {
	local := serviceDescriptor.
		WithProtocol("injvm").
		WithHost("127.0.0.1").
		WithPort(0).
		WithParameter("register", "false").
		WithParameter("notify", "false")

	invoker := s.ProxyFactory.GetInvoker(s.def.Reference, s.def.InterfaceName, local)
	injvmTransport, err := transport.Lookup("injvm")
	if err != nil {
		return err
	}
	exporter, err := injvmTransport.Export(invoker)
	if err != nil {
		return &xerr.ExportFailure{Protocol: "injvm", Registry: "", Cause: err}
	}
	s.mu.Lock()
	s.handles = append(s.handles, exportedHandle{protocol: "injvm", exporter: exporter})
	s.mu.Unlock()
	return nil
}

// exportRemote fans the service descriptor out to every configured
// registry, or exports it directly if there are none (spec §4.5 step 6).
func (s *Service) exportRemote(serviceDescriptor descriptor.Descriptor) error {
	if len(s.def.Registries) == 0 {
		return s.exportDirect(serviceDescriptor)
	}

	var firstErr error
	for _, reg := range s.def.Registries {
		if err := s.exportToRegistry(serviceDescriptor, reg); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			// spec §7: a transport-level ExportFailure aborts the
			// remaining iterations for this protocol's registry loop,
			// but does not roll back handles already installed.
			break
		}
	}
	return firstErr
}

func (s *Service) exportToRegistry(serviceDescriptor descriptor.Descriptor, reg RegistryConfig) error {
	registryDescriptor, err := descriptor.Parse(reg.Descriptor)
	if err != nil {
		return &xerr.ExportFailure{Protocol: serviceDescriptor.Protocol(), Registry: reg.Descriptor, Cause: err}
	}

	dynamic := "true"
	if reg.Dynamic != nil && !*reg.Dynamic {
		dynamic = "false"
	}
	registryDescriptor = registryDescriptor.WithParameterIfAbsent("dynamic", dynamic)
	if reg.Monitor != "" {
		registryDescriptor = registryDescriptor.WithParameter("monitor", reg.Monitor)
	}
	if reg.Proxy != "" {
		registryDescriptor = registryDescriptor.WithParameter("proxy", reg.Proxy)
	}
	registryDescriptor = registryDescriptor.WithParameter("export", descriptor.Format(serviceDescriptor))

	invoker := s.ProxyFactory.GetInvoker(s.def.Reference, s.def.InterfaceName, registryDescriptor)
	registryTransport, err := transport.Lookup(registryDescriptor.Protocol())
	if err != nil {
		return &xerr.ExportFailure{Protocol: registryDescriptor.Protocol(), Registry: registryDescriptor.Address(), Cause: err}
	}
	exporter, err := registryTransport.Export(invoker)
	if err != nil {
		return &xerr.ExportFailure{Protocol: serviceDescriptor.Protocol(), Registry: registryDescriptor.Address(), Cause: err}
	}
	s.mu.Lock()
	s.handles = append(s.handles, exportedHandle{protocol: serviceDescriptor.Protocol(), registry: registryDescriptor.Address(), exporter: exporter})
	s.mu.Unlock()
	return nil
}

// exportDirect exports serviceDescriptor without any registry
// (direct-connect mode, development only; spec §4.5 step 6).
func (s *Service) exportDirect(serviceDescriptor descriptor.Descriptor) error {
	invoker := s.ProxyFactory.GetInvoker(s.def.Reference, s.def.InterfaceName, serviceDescriptor)
	t, err := transport.Lookup(serviceDescriptor.Protocol())
	if err != nil {
		return &xerr.ExportFailure{Protocol: serviceDescriptor.Protocol(), Cause: err}
	}
	exporter, err := t.Export(invoker)
	if err != nil {
		return &xerr.ExportFailure{Protocol: serviceDescriptor.Protocol(), Cause: err}
	}
	s.mu.Lock()
	s.handles = append(s.handles, exportedHandle{protocol: serviceDescriptor.Protocol(), exporter: exporter})
	s.mu.Unlock()
	return nil
}

// Unexport releases every installed handle (spec §4.5 "Unexport").
// Individual handle failures are logged and do not stop the remaining
// handles from being released. Idempotent: a second call is a no-op
// (spec invariant 3).
func (s *Service) Unexport() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateUnexported {
		return nil
	}
	for _, h := range s.handles {
		if err := h.exporter.Unexport(); err != nil {
			log.Warnf("export: unexport of %s (protocol=%s registry=%s) failed: %v", s.def.InterfaceName, h.protocol, h.registry, err)
		}
	}
	s.handles = nil
	s.state = stateUnexported
	return nil
}

// ExportedDescriptors returns the service descriptors produced by this
// export, in protocol-iteration order (spec §4.5 step 7 "exported-urls
// list").
func (s *Service) ExportedDescriptors() []descriptor.Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]descriptor.Descriptor, len(s.descriptors))
	copy(out, s.descriptors)
	return out
}

// HandleCount reports how many live exporter handles are currently
// installed, for tests that check scope decomposition without reaching
// into transport internals.
func (s *Service) HandleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

func transportDefaultPort(protocol string) uint16 {
	t, err := transport.Lookup(protocol)
	if err != nil {
		return 0
	}
	return t.DefaultPort()
}
