// Command exportctl is a manual-test harness for the export pipeline: it
// exports one demo service over a chosen protocol, optionally registering
// it at a registry, and waits for a signal to unexport and exit.
//
// It is deliberately not a reimplementation of the framework's XML/
// annotation-driven boot harness (out of scope); just enough flags to
// drive one Service by hand.
//
// Grounded on krd/main.go's shape: logger setup, block on a signal
// channel, tear down on exit. Export runs synchronously before the wait,
// so no work goroutine is started.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/op/go-logging"
	"github.com/urfave/cli"

	"github.com/kryptonrpc/export/export"
	applog "github.com/kryptonrpc/export/internal/log"
)

var log = applog.Setup("exportctl", logging.NOTICE)

func main() {
	app := cli.NewApp()
	app.Name = "exportctl"
	app.Usage = "export a demo service for manual testing of the export pipeline"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "interface, i", Value: "demo.Greeter", Usage: "interface identifier"},
		cli.StringFlag{Name: "protocol, p", Value: "http", Usage: "transport protocol name"},
		cli.IntFlag{Name: "port", Value: 0, Usage: "bind port (0 to auto-resolve)"},
		cli.StringFlag{Name: "scope", Value: "", Usage: "local, remote, none, or empty for both"},
		cli.StringFlag{Name: "registry, r", Value: "", Usage: "registry descriptor, e.g. registry://127.0.0.1:2181/RegistryService"},
		cli.StringFlag{Name: "methods", Value: "", Usage: "comma-separated method names"},
	}
	app.Action = runExport

	if err := app.Run(os.Args); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func runExport(c *cli.Context) error {
	var methods []string
	if raw := c.String("methods"); raw != "" {
		methods = strings.Split(raw, ",")
	}

	def := export.ServiceDefinition{
		InterfaceName: c.String("interface"),
		Reference:     struct{}{},
		Protocols: []export.ProtocolConfig{
			{
				Name:    c.String("protocol"),
				Port:    c.Int("port"),
				Scope:   c.String("scope"),
				Methods: methods,
			},
		},
	}
	if reg := c.String("registry"); reg != "" {
		def.Registries = []export.RegistryConfig{{Descriptor: reg}}
	}

	svc := export.NewService(def)
	if err := svc.Export(); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	defer svc.Unexport()

	for _, d := range svc.ExportedDescriptors() {
		log.Notice("exported: ", d.String())
	}
	log.Notice("exportctl running, press Ctrl-C to unexport and exit")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Notice("shutting down")
	return nil
}
