package main

import (
	"fmt"
	"strings"
)

// splitBootstrapCmdline splits a bootstrap command line into a service
// name and its argument tail, the Go analogue of skynet's bootstrap():
// the first whitespace-delimited token is the service name, and
// everything after the whitespace that follows it (with any further
// leading spaces skipped) is passed through verbatim as args.
func splitBootstrapCmdline(cmdline string) (name, args string) {
	cmdline = strings.TrimSpace(cmdline)
	idx := strings.IndexAny(cmdline, " \t")
	if idx < 0 {
		return cmdline, ""
	}
	return cmdline[:idx], strings.TrimLeft(cmdline[idx+1:], " \t")
}

// runBootstrap creates the first service from cfg.Bootstrap. Its failure
// is unrecoverable: with no bootstrap service there is nothing left to
// drive the rest of startup, so the caller is expected to drain the
// logger and exit(1) (spec.md §4.8).
func runBootstrap(m *Monitor, cmdline string) error {
	name, args := splitBootstrapCmdline(cmdline)
	if name == "" {
		return fmt.Errorf("%w: empty bootstrap command line", ErrBootstrapFailed)
	}
	if _, err := m.reg.New(name, args); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrBootstrapFailed, name, args, err)
	}
	return nil
}

// drainLogger runs every message already queued for the logger service
// synchronously, bypassing the worker pool. It exists for the narrow
// window between a failed bootstrap and process exit, where no worker
// goroutines have been started yet to drain it the normal way (spec.md
// §4.8: "fatal exit only after the logger has had a chance to flush").
func drainLogger(reg *Registry) {
	handle, ok := reg.FindName(loggerName)
	if !ok {
		return
	}
	reg.mu.Lock()
	ctx, ok := reg.ctxs[handle]
	reg.mu.Unlock()
	if !ok {
		return
	}
	for {
		msg, ok := ctx.inbox.Pop()
		if !ok {
			return
		}
		ctx.Service.Handle(ctx, msg)
	}
}
