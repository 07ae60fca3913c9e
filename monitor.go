package main

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zoobzio/clockz"
)

// Monitor is the scheduler's shared control block (spec.md §3). It is
// created once at startup and freed only after every thread it spawned
// has joined — the same ownership discipline the teacher applies to its
// Pool (created in NewPool, torn down in Shutdown after every Worker is
// drained and killed).
//
// The hot fields sleep and quit live behind mu so their updates stay
// adjacent to the cond-variable wait, per SPEC_FULL.md's design note:
// atomics alone are insufficient here because the sleep count update and
// the condition wait must be indivisible. fastTime and onceAdd live behind
// timemu.
type Monitor struct {
	RunID uuid.UUID // correlates one run's logs end to end (SPEC_FULL.md §11)

	count   int      // worker count, fixed for the Monitor's lifetime
	probes  []*Probe // one per worker, probes[i] owned by worker i
	weights []int    // one per worker, see workerWeight

	mu   sync.Mutex
	cond *sync.Cond // wakes sleeping workers
	sleep int
	quit bool

	timemu    sync.Mutex
	timecond  *sync.Cond // paces the timer thread
	fastTime  uint64     // target simulated epoch, in ms since startTime; 0 means "not in fast mode"
	onceAdd   uint64     // max simulated-time increment (ms) per fast-step
	simMillis atomic.Int64 // current simulated clock reading, ms since startTime

	workmu   sync.Mutex
	workcond *sync.Cond // one-shot handshake: signaled when sleep==count

	clock     clockz.Clock
	startTime time.Time // wall-clock epoch anchor, captured once at New

	recordFile string
	profile    atomic.Bool // gates the timer-tick profiling histogram (SPEC_FULL.md §12, cfg.profile)

	sighup atomic.Bool // signal-safe latch, set by the signal handler

	log    zerolog.Logger
	tele   *Telemetry
	reg    *Registry
	socket SocketPoller
}

// NewMonitor constructs the control block for count workers. clock lets
// callers inject clockz.NewFakeClock() for deterministic tests (property
// 7, scenario S4); a nil clock selects clockz.RealClock, which is what
// run passes in production. socket may be nil, in which case a
// chanSocketPoller is created. The Monitor's logger tags every line with
// the RunID.
func NewMonitor(count int, clock clockz.Clock, recordFile string, log zerolog.Logger, reg *Registry, tele *Telemetry, socket SocketPoller) *Monitor {
	if clock == nil {
		clock = clockz.RealClock
	}
	if socket == nil {
		socket = newChanSocketPoller(256)
	}
	probes := make([]*Probe, count)
	weights := make([]int, count)
	for i := range probes {
		probes[i] = NewProbe()
		weights[i] = workerWeight(i)
	}

	runID := uuid.New()
	m := &Monitor{
		RunID:      runID,
		count:      count,
		probes:     probes,
		weights:    weights,
		clock:      clock,
		startTime:  clock.Now(),
		recordFile: recordFile,
		log:        log.With().Str("run_id", runID.String()).Logger(),
		tele:       tele,
		reg:        reg,
		socket:     socket,
	}
	m.cond = sync.NewCond(&m.mu)
	m.timecond = sync.NewCond(&m.timemu)
	m.workcond = sync.NewCond(&m.workmu)
	return m
}

// workerWeight returns the standard batching weight for worker index i,
// per spec.md §4.1: four at -1, four at 0, eight at 1, eight at 2, eight
// at 3, and 0 for any worker beyond index 31.
func workerWeight(i int) int {
	weights := [32]int{
		-1, -1, -1, -1,
		0, 0, 0, 0,
		1, 1, 1, 1, 1, 1, 1, 1,
		2, 2, 2, 2, 2, 2, 2, 2,
		3, 3, 3, 3, 3, 3, 3, 3,
	}
	if i < len(weights) {
		return weights[i]
	}
	return 0
}

// SetProfile enables or disables the timer-tick profiling histogram, the
// Go analogue of skynet_timer.h's thread_time hook gated by config.profile.
func (m *Monitor) SetProfile(enabled bool) { m.profile.Store(enabled) }

// Count returns the fixed worker count.
func (m *Monitor) Count() int { return m.count }

// Probe returns the liveness probe for worker id.
func (m *Monitor) Probe(id int) *Probe { return m.probes[id] }

// Quit reports the one-way shutdown latch (spec.md §5: "quit is a one-way
// latch; any worker observing quit==true after acquiring mutex exits").
func (m *Monitor) Quit() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quit
}

// SleepCount returns the number of workers currently blocked on cond.
// Exported for tests asserting property 1 (0 <= sleep <= count).
func (m *Monitor) SleepCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sleep
}

// now returns the Monitor's current simulated time: startTime plus
// simMillis. In steady state simMillis tracks the real clock tick for
// tick (updateTime keeps it current); during a fast-time compression
// (spec.md §4.4) it advances independently, in onceAdd-bounded steps,
// toward fastTime. This is the Go analogue of skynet's
// start_time + skynet_now()/skynet_time_fast().
func (m *Monitor) now() time.Time {
	return m.startTime.Add(time.Duration(m.simMillis.Load()) * time.Millisecond)
}

// realElapsedMillis is the real clock's unmodified elapsed reading,
// independent of any fast-time compression in progress.
func (m *Monitor) realElapsedMillis() int64 {
	return m.clock.Since(m.startTime).Milliseconds()
}

// Close releases every synchronization primitive the Monitor owns. The
// original C implementation (skynet_start.c's free_monitor) destroyed
// only mutex/cond and left timemutex/workcond undestroyed — spec.md §9
// flags this as a probable oversight. Go has no destroy step for
// sync.Mutex/sync.Cond, so "destroying all four for symmetry" has no
// runtime effect here; Close exists as the single place that documents
// the decision and is the last call in the shutdown sequence (§4.8), so
// future synchronization primitives added to Monitor have an obvious home
// for their teardown.
func (m *Monitor) Close() {}
