//go:build !windows

package transport

import "github.com/kryptonrpc/export/internal/xerr"

// pipeTransport is a named-pipe transport, Windows-only. On every other
// platform "pipe" is still registered, but its Export always fails with
// UnknownProtocol.
type pipeTransport struct{}

func init() {
	Register("pipe", pipeTransport{})
}

func (pipeTransport) DefaultPort() uint16 { return 0 }

func (pipeTransport) Export(invoker Invoker) (Exporter, error) {
	return nil, &xerr.UnknownProtocol{Protocol: "pipe (windows only)"}
}
