package main

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// threadRole tags a goroutine's logical role, mirroring skynet_initthread's
// THREAD_WORKER/THREAD_TIMER/... constants (spec.md §6, §9). It exists
// purely for log correlation and the Telemetry attribute set.
type threadRole string

const (
	roleWorker    threadRole = "worker"
	roleTimer     threadRole = "timer"
	roleFastTimer threadRole = "fasttimer"
	roleSocket    threadRole = "socket"
	roleMonitor   threadRole = "monitor"
	roleRecord    threadRole = "record"
	roleLogger    threadRole = "logger"
)

// newLogger builds the process-wide zerolog.Logger. Console-writer output
// in development, matching the teacher's log.SetFlags(log.LstdFlags |
// log.Lmicroseconds) call for human-readable timestamps; callers that want
// JSON (production) can swap the writer without touching call sites, since
// every log call in this codebase goes through component-tagged
// sub-loggers rather than the global logger directly.
func newLogger(pretty bool) zerolog.Logger {
	var w io.Writer = os.Stderr
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.StampMicro}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// component returns a sub-logger tagged the way the teacher tags log
// lines with "[pool]", "[worker %d]", etc. — here as structured fields
// instead of a printf prefix.
func component(log zerolog.Logger, role threadRole) zerolog.Logger {
	return log.With().Str("component", string(role)).Logger()
}
