// Package log provides the process-wide structured logger shared by every
// component of the export pipeline and load balancer.
package log

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/op/go-logging"
)

// Log is the shared logger. Every package in this module logs through it
// rather than opening its own backend.
var Log = logging.MustGetLogger("")

var stderrFormat = logging.MustStringFormatter(
	`%{color}%{time:15:04:05.000} %{level:.4s}%{color:reset} ▶ %{message}`,
)

func init() {
	Log = Setup("", levelFromEnv(logging.NOTICE))
}

// levelFromEnv reads EXPORT_LOG_LEVEL, falling back to def if unset or
// unrecognized.
func levelFromEnv(def logging.Level) logging.Level {
	switch os.Getenv("EXPORT_LOG_LEVEL") {
	case "CRITICAL":
		return logging.CRITICAL
	case "ERROR":
		return logging.ERROR
	case "WARNING":
		return logging.WARNING
	case "NOTICE":
		return logging.NOTICE
	case "INFO":
		return logging.INFO
	case "DEBUG":
		return logging.DEBUG
	default:
		return def
	}
}

// Setup installs a colorized stderr backend at the given level and returns
// the shared logger. Color is disabled automatically when stderr is not a
// TTY (color.NoColor already does this, but we also wrap stderr through
// go-colorable so ANSI codes render on Windows consoles that need it).
func Setup(prefix string, level logging.Level) *logging.Logger {
	out := colorable.NewColorable(os.Stderr)
	format := stderrFormat
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		color.NoColor = true
		format = logging.MustStringFormatter(`%{time:15:04:05.000} %{level:.4s} ▶ %{message}`)
	}
	backend := logging.NewLogBackend(out, prefix, 0)
	formatted := logging.NewBackendFormatter(backend, format)
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(level, "")
	logging.SetBackend(leveled)
	return Log
}

// Warnf logs a warning. Address resolution and unexport bookkeeping use
// this for best-effort failures that must not abort the caller (spec §7:
// "Socket-probe failures... are logged at warning level and the search
// continues").
func Warnf(format string, args ...interface{}) {
	Log.Warning(color.YellowString(format, args...))
}
