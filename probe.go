package main

import "sync/atomic"

// Probe is the single-writer/single-reader liveness record described in
// spec.md §3 and §4.6: one per worker, written only by its owning worker,
// read only by the monitor thread. A torn read only delays a stall
// diagnosis by one sweep (§9), so relaxed atomics are sufficient — no
// mutex is needed here, unlike the Monitor's hot fields.
type Probe struct {
	handle  atomic.Uint32 // currently executing service handle, 0 if idle
	version atomic.Uint64 // incremented strictly before and after each dispatch
}

// NewProbe returns an idle probe.
func NewProbe() *Probe {
	return &Probe{}
}

// BeginDispatch records that the probe's owner is about to invoke a
// service callback for handle. Must be called by the owning worker,
// strictly before the callback runs (spec.md §3 invariant).
func (p *Probe) BeginDispatch(handle uint32) {
	p.version.Add(1)
	p.handle.Store(handle)
}

// EndDispatch records that the callback returned. Called by the owning
// worker strictly after the callback, so a version that repeats across a
// monitor sweep with a non-zero handle means the worker is still inside a
// single callback (spec.md §4.6).
func (p *Probe) EndDispatch() {
	p.version.Add(1)
	p.handle.Store(0)
}

// snapshot is what the monitor thread compares sweep-to-sweep.
type probeSnapshot struct {
	handle  uint32
	version uint64
}

func (p *Probe) snapshot() probeSnapshot {
	return probeSnapshot{handle: p.handle.Load(), version: p.version.Load()}
}
