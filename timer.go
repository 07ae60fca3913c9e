package main

import "time"

// timerTick is the Go analogue of skynet's USEC_PER_SEC/100 (10ms) timer
// resolution from skynet_timer.h. runTimer does not sleep on it: the timer
// thread wakes each time the fast-timer signals timecond, every
// fastTimerIdleTick.
const timerTick = 10 * time.Millisecond

// loggerName is the well-known name the logger service is registered
// under during bootstrap (spec.md §4.8). Every SIGHUP delivery resolves
// it fresh via Registry.FindName rather than caching the handle, so a
// logger that restarts under a new handle (or is never registered at
// all) is still found correctly on the very next tick — the same thing
// skynet_start.c's signal_hup() does by calling
// skynet_handle_findname("logger") on every single signal instead of
// once at startup.
const loggerName = "logger"

// runTimer is the timer thread (spec.md §4.3): updates the shared clock,
// checks for the SIGHUP latch, wakes the last sleeping worker so progress
// never fully stalls, and paces itself on timecond. Pacing comes from the
// fast-timer's idle-mode signal, not a sleep of its own — the timer thread
// never blocks on anything but timecond. It is the scheduler's pacemaker:
// on the way out it is the thread that flips quit and broadcasts cond, so
// every worker's CHECK_ABORT-equivalent poll depends on it exiting cleanly.
func runTimer(m *Monitor) {
	for {
		if m.Quit() {
			break
		}

		m.updateTime()
		m.socket.UpdateTime(m.now())

		if m.reg.Total() == 0 {
			component(m.log, roleTimer).Info().Msg("no service contexts remain, shutting down")
			break
		}

		if m.sighup.CompareAndSwap(true, false) {
			if h, ok := m.reg.FindName(loggerName); ok {
				_ = m.reg.Push(h, Message{Type: MessageSystem, Data: []byte("SIGHUP")})
			}
			if m.tele != nil {
				m.tele.SighupHandled()
			}
		}

		m.wakeup(m.count - 1)
		if m.tele != nil {
			m.tele.RecordWakeup("timer")
		}

		m.timemu.Lock()
		m.timecond.Wait()
		m.timemu.Unlock()
	}

	m.socket.Exit()

	m.mu.Lock()
	m.quit = true
	m.mu.Unlock()
	m.cond.Broadcast()
}

// updateTime refreshes simMillis from the real clock, unless a fast-time
// compression is in progress — in which case the fast-timer thread owns
// simMillis until the target is reached (spec.md §4.3/§4.4 interaction).
// It also records a profiling sample when profiling is enabled
// (SPEC_FULL.md §12, the skynet_thread_time analogue).
func (m *Monitor) updateTime() {
	start := m.clock.Now()

	m.timemu.Lock()
	if m.fastTime == 0 {
		m.simMillis.Store(m.realElapsedMillis())
	}
	m.timemu.Unlock()

	if m.tele != nil && m.profile.Load() {
		m.tele.ObserveTimerTick(m.clock.Now().Sub(start))
	}
}

// RaiseSighup latches a pending SIGHUP for the timer thread to drain on
// its next tick. Safe to call from a real signal handler: it only touches
// an atomic.Bool (spec.md §4.3's "signal-safe latch").
func (m *Monitor) RaiseSighup() {
	m.sighup.Store(true)
}
