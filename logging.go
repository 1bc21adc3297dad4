package main

import (
	"os"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("ble-adparser")

var stderrFormat = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{level:.6s} ▶ %{module} %{message}`,
)

// setupLogging routes every module logger to stderr at the named level.
// An unknown level name falls back to INFO.
func setupLogging(level string) {
	backend := logging.NewBackendFormatter(logging.NewLogBackend(os.Stderr, "", 0), stderrFormat)
	leveled := logging.AddModuleLevel(backend)
	lvl, err := logging.LogLevel(level)
	if err != nil {
		lvl = logging.INFO
	}
	leveled.SetLevel(lvl, "")
	logging.SetBackend(leveled)
	if err != nil {
		log.Warningf("unknown log level %q, using INFO", level)
	}
}
