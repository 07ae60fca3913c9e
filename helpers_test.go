package main

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
)

func mustTelemetry(t *testing.T) *Telemetry {
	t.Helper()
	tele, err := NewTelemetry(false)
	require.NoError(t, err)
	return tele
}

// newTestMonitor builds a Monitor against a fresh Registry and a fake
// clock, with telemetry disabled, for tests that drive the scheduler's
// synchronization primitives directly rather than through a live socket.
func newTestMonitor(t *testing.T, workers int) (*Monitor, *Registry) {
	t.Helper()
	reg := NewRegistry()
	m := NewMonitor(workers, clockz.NewFakeClock(), "", newLogger(false), reg, mustTelemetry(t), nil)
	return m, reg
}

// countingService counts how many times Handle ran and records the last
// message it saw, for assertions that don't care about reply traffic.
type countingService struct {
	count int
	last  Message
}

func (c *countingService) Handle(ctx *Context, msg Message) {
	c.count++
	c.last = msg
}

// drainAll repeatedly calls Dispatch until there is nothing left ready,
// the same loop shape runWorker uses, minus the sleep protocol. It exists
// so tests can assert on a fully processed mailbox without spinning real
// worker goroutines.
func drainAll(reg *Registry, weight int) {
	probe := NewProbe()
	var last *Context
	for {
		next := reg.Dispatch(probe, last, weight)
		if next == nil {
			return
		}
		last = next
	}
}
