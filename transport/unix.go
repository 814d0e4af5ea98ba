package transport

import (
	"net"
	"net/http"
	"os"
	"sync"

	"github.com/kryptonrpc/export/internal/log"
)

// unixTransport listens on a unix domain socket at the descriptor's path.
// Grounded on common/socket/socket.go's AgentListenUnix/DaemonListen: both
// remove any stale socket file left by a previous process before
// net.Listen("unix", ...), since a leftover file makes the bind fail with
// "address already in use" even though nothing is listening.
type unixTransport struct{}

func init() {
	Register("unix", unixTransport{})
}

func (unixTransport) DefaultPort() uint16 { return 0 }

func (unixTransport) Export(invoker Invoker) (Exporter, error) {
	socketPath := invoker.Descriptor.Path()

	_ = os.Remove(socketPath)
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", genericInvocationHandler(invoker))

	go func() {
		if err := http.Serve(ln, mux); err != nil {
			log.Warnf("transport/unix: serve on %s stopped: %v", socketPath, err)
		}
	}()

	var once sync.Once
	return exporterFunc(func() error {
		var closeErr error
		once.Do(func() {
			closeErr = ln.Close()
			_ = os.Remove(socketPath)
		})
		return closeErr
	}), nil
}
