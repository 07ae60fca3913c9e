package main

import "time"

// livenessSweepInterval is the total period between liveness sweeps. It is
// split into five one-second waits with a shutdown check between each,
// the Go analogue of skynet's thread_monitor calling sleep(1) five times
// with CHECK_ABORT in between rather than one uninterruptible sleep(5)
// (spec.md §4.6).
const livenessSweepInterval = 5 * time.Second
const livenessSweepSlices = 5

// runLiveness is the monitor thread: every livenessSweepInterval it
// compares each worker's probe snapshot against the one from the previous
// sweep. A probe whose handle is non-zero and whose version is unchanged
// across two consecutive sweeps has been running the same callback for at
// least one full interval, and is logged as a stall (spec.md §4.6). A
// zero handle, or a version that has moved on, is healthy — the worker
// either is idle or has made progress since the last sweep.
func runLiveness(m *Monitor) {
	log := component(m.log, roleMonitor)
	last := make([]probeSnapshot, m.count)

	for {
		for i := 0; i < livenessSweepSlices; i++ {
			if m.Quit() {
				return
			}
			<-m.clock.After(livenessSweepInterval / livenessSweepSlices)
		}
		if m.Quit() {
			return
		}

		for id, probe := range m.probes {
			cur := probe.snapshot()
			prev := last[id]
			if isStalled(prev, cur) {
				log.Warn().
					Int("worker", id).
					Uint32("handle", cur.handle).
					Uint64("version", cur.version).
					Msg("worker appears stuck in a single dispatch")
			}
			last[id] = cur
		}
	}
}

// isStalled reports whether cur looks like the same in-flight dispatch as
// prev: a non-zero handle that hasn't changed, with a version counter that
// hasn't moved since the previous sweep.
func isStalled(prev, cur probeSnapshot) bool {
	return cur.handle != 0 && cur.handle == prev.handle && cur.version == prev.version
}
