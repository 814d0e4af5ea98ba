//go:build windows

package transport

import (
	"net/http"
	"sync"

	winio "github.com/Microsoft/go-winio"

	"github.com/kryptonrpc/export/internal/log"
)

// pipeTransport listens on a Windows named pipe, the platform analogue
// of the unix transport's domain socket. Grounded on kryptco-kr's use of
// go-winio for a Windows SSH-agent pipe.
type pipeTransport struct{}

func init() {
	Register("pipe", pipeTransport{})
}

func (pipeTransport) DefaultPort() uint16 { return 0 }

func (pipeTransport) Export(invoker Invoker) (Exporter, error) {
	pipeName := `\\.\pipe\` + invoker.Descriptor.Path()
	ln, err := winio.ListenPipe(pipeName, nil)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", genericInvocationHandler(invoker))

	go func() {
		if err := http.Serve(ln, mux); err != nil {
			log.Warnf("transport/pipe: serve on %s stopped: %v", pipeName, err)
		}
	}()

	var once sync.Once
	return exporterFunc(func() error {
		var closeErr error
		once.Do(func() { closeErr = ln.Close() })
		return closeErr
	}), nil
}
