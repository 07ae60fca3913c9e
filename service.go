package main

import (
	"sync"
	"sync/atomic"
)

// This file is the minimal in-memory reference implementation of the
// collaborators spec.md §1 and §6 treat as opaque: the message-queue data
// structure, the service/actor registry, and the dispatch() entry point
// workers call. A production deployment swaps this package-internal
// reference for a real message queue and module loader without touching
// monitor.go, worker.go, timer.go, fasttimer.go, socket.go, liveness.go,
// or replay.go — the scheduler core only ever calls through the
// Dispatcher-shaped surface below (SPEC_FULL.md §14, decision 2).

// MessageType distinguishes the "system" message class used for the
// SIGHUP-triggered logger notification (spec.md §4.3) from ordinary
// service traffic.
type MessageType int

const (
	MessageNormal MessageType = iota
	MessageSystem
	MessageSocket
)

// Message is one inbox entry.
type Message struct {
	Source  uint32
	Session int
	Type    MessageType
	Data    []byte
}

// Service is the callback contract every actor implements. Handle runs to
// completion on whichever worker picked up the Context's inbox — services
// are cooperative, never preempted mid-callback (spec.md §5).
type Service interface {
	Handle(ctx *Context, msg Message)
}

// ServiceConstructor builds a Service from its startup argument string,
// the Go analogue of skynet's context_new(name, args).
type ServiceConstructor func(args string) (Service, error)

// Inbox is a single service's private FIFO mailbox.
type Inbox struct {
	mu    sync.Mutex
	items []Message
}

// Push appends msg and reports whether the inbox was empty beforehand
// (the caller uses this to decide whether the inbox needs to join the
// ready set).
func (ib *Inbox) Push(msg Message) (wasEmpty bool) {
	ib.mu.Lock()
	wasEmpty = len(ib.items) == 0
	ib.items = append(ib.items, msg)
	ib.mu.Unlock()
	return wasEmpty
}

// Pop removes and returns the oldest message, in arrival order (spec.md
// §5: "within a single inbox, messages are dispatched in arrival order").
func (ib *Inbox) Pop() (Message, bool) {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	if len(ib.items) == 0 {
		return Message{}, false
	}
	m := ib.items[0]
	ib.items = ib.items[1:]
	return m, true
}

// Len reports the number of pending messages.
func (ib *Inbox) Len() int {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	return len(ib.items)
}

// Context is one live service instance: its handle, its inbox, and the
// callback that owns them. It is the "ctx_or_null" of context_new and the
// unit the ready set is built from.
type Context struct {
	Handle  uint32
	Name    string
	Service Service

	inbox  Inbox
	reg    *Registry
	queued atomic.Bool // true while sitting in the ready set
}

// Push enqueues msg into ctx's inbox and, if the inbox was idle, makes
// ctx eligible for dispatch.
func (c *Context) Push(msg Message) {
	wasEmpty := c.inbox.Push(msg)
	if wasEmpty && c.queued.CompareAndSwap(false, true) {
		c.reg.ready.push(c)
	}
}

// readyQueue is the conceptual "ready set" from spec.md §4.1: the set of
// inboxes with at least one pending message. FIFO is enough here — fair
// ordering across inboxes is a dispatcher-level concern, not a hard
// scheduling guarantee (spec.md §5: "cross-inbox order is intentionally
// unordered").
type readyQueue struct {
	mu sync.Mutex
	q  []*Context
}

func (rq *readyQueue) push(c *Context) {
	rq.mu.Lock()
	rq.q = append(rq.q, c)
	rq.mu.Unlock()
}

func (rq *readyQueue) pop() (*Context, bool) {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	if len(rq.q) == 0 {
		return nil, false
	}
	c := rq.q[0]
	rq.q = rq.q[1:]
	return c, true
}

// Registry owns handle allocation, name binding, and the ready set. It
// implements the handle_findname / handle_set_index / handle_namehandle /
// context_new / context_push / context_total family from spec.md §6.
type Registry struct {
	mu           sync.Mutex
	ctxs         map[uint32]*Context
	names        map[string]uint32
	constructors map[string]ServiceConstructor
	nextHandle   uint32
	forcedHandle *uint32 // set by SetHandleIndex, consumed by the next New

	ready      readyQueue
	onDispatch func()
}

// NewRegistry returns an empty registry. Handle 0 is reserved (spec.md's
// probe "handle == 0" sentinel for idle), so allocation starts at 1.
func NewRegistry() *Registry {
	return &Registry{
		ctxs:         make(map[uint32]*Context),
		names:        make(map[string]uint32),
		constructors: make(map[string]ServiceConstructor),
		nextHandle:   1,
	}
}

// RegisterConstructor makes name available to New/bootstrap/replay.
func (r *Registry) RegisterConstructor(name string, ctor ServiceConstructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = ctor
}

// SetHandleIndex forces the next New call to use handle instead of
// allocating the next counter value — the Go analogue of skynet's
// handle_set_index, used only by the replay driver to reproduce recorded
// handle assignments exactly (spec.md §4.7, determinism contract).
func (r *Registry) SetHandleIndex(handle uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forcedHandle = &handle
}

// New constructs and registers a service instance, the Go analogue of
// context_new(name, args). Returns ErrUnknownService if name has no
// registered constructor, or the constructor's own error otherwise.
func (r *Registry) New(name, args string) (*Context, error) {
	r.mu.Lock()
	ctor, ok := r.constructors[name]
	if !ok {
		r.mu.Unlock()
		return nil, ErrUnknownService
	}
	r.mu.Unlock()

	svc, err := ctor(args)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var handle uint32
	if r.forcedHandle != nil {
		handle = *r.forcedHandle
		r.forcedHandle = nil
	} else {
		handle = r.nextHandle
		r.nextHandle++
	}

	ctx := &Context{Handle: handle, Name: name, Service: svc}
	ctx.reg = r
	r.ctxs[handle] = ctx
	return ctx, nil
}

// NameHandle binds name to handle (handle_namehandle).
func (r *Registry) NameHandle(handle uint32, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[name] = handle
}

// FindName resolves a registered name (handle_findname). Returns 0, false
// if unregistered.
func (r *Registry) FindName(name string) (uint32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.names[name]
	return h, ok
}

// Push delivers msg to handle's inbox (context_push). Returns
// ErrUnknownHandle if handle has no live context — the caller (timer
// thread posting SIGHUP, socket thread delivering an event, replay
// driver injecting a step) decides whether that's fatal.
func (r *Registry) Push(handle uint32, msg Message) error {
	r.mu.Lock()
	ctx, ok := r.ctxs[handle]
	r.mu.Unlock()
	if !ok {
		return ErrUnknownHandle
	}
	ctx.Push(msg)
	return nil
}

// Close removes handle's context (the 'c' replay tag / service-close
// event). A context that has already exited is simply not found.
func (r *Registry) Close(handle uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ctxs, handle)
	for name, h := range r.names {
		if h == handle {
			delete(r.names, name)
		}
	}
}

// Total reports the number of live service contexts (context_total),
// used by every thread's CHECK_ABORT-equivalent shutdown poll.
func (r *Registry) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ctxs)
}

// Dispatch implements the dispatch(probe, last, weight) contract from
// spec.md §6: run up to 2^max(0,weight) messages (1 if weight<0) against
// last (or the next ready inbox, if last is none), then return another
// ready inbox, or none.
func (r *Registry) Dispatch(probe *Probe, last *Context, weight int) *Context {
	q := last
	if q == nil {
		var ok bool
		q, ok = r.ready.pop()
		if !ok {
			return nil
		}
		q.queued.Store(false)
	}

	batch := 1
	if weight >= 0 {
		batch = 1 << uint(weight)
	}

	for i := 0; i < batch; i++ {
		msg, ok := q.inbox.Pop()
		if !ok {
			break
		}
		probe.BeginDispatch(q.Handle)
		q.Service.Handle(q, msg)
		probe.EndDispatch()
		if r.onDispatch != nil {
			r.onDispatch()
		}
	}

	if q.inbox.Len() > 0 {
		q.queued.Store(true)
		r.ready.push(q)
	} else {
		q.queued.Store(false)
	}

	next, ok := r.ready.pop()
	if !ok {
		return nil
	}
	next.queued.Store(false)
	return next
}

// setOnDispatch installs a per-message hook, called once for every message
// actually run. Wired by the scheduler to its Telemetry so
// dispatch_turns_total stays out of this reference dispatcher.
func (r *Registry) setOnDispatch(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDispatch = fn
}
