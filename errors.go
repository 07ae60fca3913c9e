package main

import "errors"

// Sentinel errors for the scheduler core. Synchronization-primitive
// failures are never represented here — those are fatal and exit the
// process immediately, per the asymmetric error policy in SPEC_FULL.md §10.
var (
	// ErrAlreadyRunning names a Monitor started twice. Monitor has no
	// Start method, and no code in this package returns this error.
	ErrAlreadyRunning = errors.New("turnstile: monitor already running")

	// ErrUnknownHandle is returned when a message targets a handle with no
	// registered context.
	ErrUnknownHandle = errors.New("turnstile: unknown handle")

	// ErrUnknownService is returned when bootstrap or replay names a
	// service that has no registered constructor.
	ErrUnknownService = errors.New("turnstile: unknown service")

	// ErrBootstrapFailed is returned when the initial service fails to
	// construct. Fatal at startup per spec.md §7.
	ErrBootstrapFailed = errors.New("turnstile: bootstrap failed")

	// ErrFastTimeRejected is returned (and logged, never fatal) when
	// RequestFastTime's target is not strictly ahead of the current
	// simulated epoch and its onceAdd is positive.
	ErrFastTimeRejected = errors.New("turnstile: fast-time target must be ahead of current time")

	// ErrReplayVersionMismatch means the record file's version header did
	// not match the expected constant. Replay-local: aborts replay only.
	ErrReplayVersionMismatch = errors.New("turnstile: record file version mismatch")

	// ErrReplayUnknownTag means the replay decoder hit a tag byte outside
	// the grammar in spec.md §4.7.
	ErrReplayUnknownTag = errors.New("turnstile: unknown record tag")

	// ErrSocketPollerClosed names a permanently shut down SocketPoller. The
	// SocketPoller interface itself reports shutdown as a 0 from Poll (the
	// "0" return encoding in spec.md §4.5); no code in this package returns
	// this error.
	ErrSocketPollerClosed = errors.New("turnstile: socket poller closed")
)
