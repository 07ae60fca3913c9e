// Command turnstile runs a fixed-size worker pool that dispatches
// messages to in-process actor services, the same cooperative-scheduler
// shape as skynet's thread pool: a handful of worker goroutines drain a
// shared ready set under a condition variable, timer and fast-timer
// goroutines pace them and the fast-timer can compress simulated time for
// fast-forwarding tests, and a
// monitor goroutine watches for workers stuck in a single callback.
package main
