package transport

import "sync"

// injvmTransport is the in-process transport the Exporter Pipeline uses
// for local export (spec §4.5 step 5): no socket, no serialisation, just
// a reference held in a process-wide table keyed by service path so a
// same-process caller can look it up directly.
type injvmTransport struct {
	mu   sync.RWMutex
	refs map[string]interface{}
}

var injvm = &injvmTransport{refs: map[string]interface{}{}}

func init() {
	Register("injvm", injvm)
}

func (t *injvmTransport) DefaultPort() uint16 { return 0 }

func (t *injvmTransport) Export(invoker Invoker) (Exporter, error) {
	key := invoker.Descriptor.Path()
	t.mu.Lock()
	t.refs[key] = invoker.Reference
	t.mu.Unlock()

	var once sync.Once
	return exporterFunc(func() error {
		once.Do(func() {
			t.mu.Lock()
			delete(t.refs, key)
			t.mu.Unlock()
		})
		return nil
	}), nil
}

// LookupLocal returns the reference exported locally under path, if any.
// This is the capability a same-process caller uses instead of going
// over a network transport.
func LookupLocal(path string) (interface{}, bool) {
	injvm.mu.RLock()
	defer injvm.mu.RUnlock()
	ref, ok := injvm.refs[path]
	return ref, ok
}
