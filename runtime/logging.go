package runtime

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// log is the package-wide structured logger. The core treats logging
// as an external collaborator (per the design, it does not influence
// scheduling decisions) but every log point the design calls out
// (tickle, trampoline panics, rejected schedule()) goes through it.
var (
	logMu sync.RWMutex
	log   zerolog.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
)

// SetLogger replaces the package logger. Embedders (the CLI, tests)
// use this to redirect output or raise the level; the core never
// calls it itself.
func SetLogger(l zerolog.Logger) {
	logMu.Lock()
	log = l
	logMu.Unlock()
}

func logger() *zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	l := log
	return &l
}

// Logger returns the current package logger, for embedders (the CLI)
// that want to log through the same sink the core uses rather than
// standing up a second one.
func Logger() *zerolog.Logger { return logger() }
