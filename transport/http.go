package transport

import (
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/kryptonrpc/export/internal/log"
)

// httpTransport binds a TCP listener and serves the generic invocation
// endpoint over it. Grounded on daemon/control/server.go's
// HandleControlHTTP: build a ServeMux, register routes, hand the
// listener and mux to http.Serve, run it on its own goroutine.
type httpTransport struct{}

func init() {
	Register("http", httpTransport{})
}

func (httpTransport) DefaultPort() uint16 { return 80 }

func (httpTransport) Export(invoker Invoker) (Exporter, error) {
	bindHost, bindPort := bindAddress(invoker.Descriptor)
	addr := net.JoinHostPort(bindHost, strconv.Itoa(int(bindPort)))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", genericInvocationHandler(invoker))
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.Serve(ln, mux); err != nil {
			log.Warnf("transport/http: serve on %s stopped: %v", addr, err)
		}
	}()

	var once sync.Once
	return exporterFunc(func() error {
		var closeErr error
		once.Do(func() { closeErr = ln.Close() })
		return closeErr
	}), nil
}
