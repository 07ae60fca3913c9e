package main

import (
	"sync"
	"time"
)

// SocketPoller is the opaque network layer the scheduler core treats as a
// collaborator, never an implementation detail (spec.md §1: "the network
// poller ... are explicitly out of scope; the core only calls through
// their narrow interfaces"). Poll's return value mirrors the three-way
// branch in spec.md §4.5: an event delivered, a transient empty poll, or
// a shutdown signal.
type SocketPoller interface {
	// Poll blocks until an event is ready, a retry-worthy timeout elapses,
	// or the poller is closed. It returns 1, -1, or 0 respectively. On a
	// 1, Poll has already delivered the event by pushing into reg.
	Poll(reg *Registry) int
	// UpdateTime lets the poller refresh any internally cached clock
	// reads (skynet_socket_updatetime); the default poller ignores it.
	UpdateTime(now time.Time)
	// Exit unblocks any goroutine parked in Poll and makes every future
	// Poll call return 0.
	Exit()
}

// socketEvent is one inbound event: a delivery targeted at handle.
type socketEvent struct {
	Handle uint32
	Data   []byte
}

// chanSocketPoller is the default in-process SocketPoller: events arrive
// over a channel instead of a real network fd set. It exists so the
// socket thread, its wakeup(0) contract, and the dispatch
// path all have something real to exercise without an actual network
// stack in scope.
type chanSocketPoller struct {
	events chan socketEvent

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// newChanSocketPoller returns a poller with capacity for backlog pending
// injected events before Inject starts blocking.
func newChanSocketPoller(backlog int) *chanSocketPoller {
	return &chanSocketPoller{
		events: make(chan socketEvent, backlog),
		done:   make(chan struct{}),
	}
}

// Inject simulates an inbound socket event targeted at handle. Used by
// tests and by any future real transport adapter that wants to reuse this
// poller's Poll/Exit plumbing.
func (p *chanSocketPoller) Inject(handle uint32, data []byte) {
	select {
	case p.events <- socketEvent{Handle: handle, Data: data}:
	case <-p.done:
	}
}

const socketPollTimeout = 50 * time.Millisecond

func (p *chanSocketPoller) Poll(reg *Registry) int {
	select {
	case ev, ok := <-p.events:
		if !ok {
			return 0
		}
		_ = reg.Push(ev.Handle, Message{Type: MessageSocket, Data: ev.Data})
		return 1
	case <-p.done:
		return 0
	case <-time.After(socketPollTimeout):
		return -1
	}
}

func (p *chanSocketPoller) UpdateTime(time.Time) {}

func (p *chanSocketPoller) Exit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.done)
}

// runSocket is the socket thread (spec.md §4.5): poll, deliver, repeat,
// exiting when the poller reports closed, or when a transient empty poll
// finds quit already latched.
func runSocket(m *Monitor) {
	for {
		switch status := m.socket.Poll(m.reg); {
		case status == 0:
			return
		case status < 0:
			if m.Quit() {
				return
			}
		default:
			m.wakeup(0)
			if m.tele != nil {
				m.tele.RecordWakeup("socket")
			}
		}
	}
}
