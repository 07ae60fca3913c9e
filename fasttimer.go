package main

import "time"

// fastTimerIdleTick is the idle-mode pacing interval: the Go analogue of
// skynet's usleep(2500) between timecond signals when no compression is
// requested (spec.md §4.4).
const fastTimerIdleTick = 2500 * time.Microsecond

// runFastTimer is the fast-timer thread. In idle mode it just paces the
// timer thread: every fastTimerIdleTick it signals timecond and exits
// once every service has gone away and quit has latched. Whenever
// RequestFastTime has installed a target, it instead runs a compression
// loop that advances the simulated clock toward that target in steps no
// larger than onceAdd, rendezvousing with the worker pool before each
// step so a jump never lands mid-dispatch (spec.md §4.4).
func runFastTimer(m *Monitor) {
	for {
		m.timemu.Lock()
		target := m.fastTime
		m.timemu.Unlock()

		if target == 0 {
			if m.Quit() {
				return
			}
			<-m.clock.After(fastTimerIdleTick)
			m.timemu.Lock()
			m.timecond.Broadcast()
			m.timemu.Unlock()
			continue
		}

		if !m.compressionStep(target) {
			return
		}
	}
}

// compressionStep runs one bounded advance toward target, or finishes the
// compression if target has been reached. Returns false if the Monitor is
// shutting down.
func (m *Monitor) compressionStep(target uint64) bool {
	if !m.awaitAllAsleep() {
		return false
	}

	m.timemu.Lock()
	current := uint64(m.simMillis.Load())
	if current >= target {
		m.fastTime = 0
		m.onceAdd = 0
		m.timemu.Unlock()
		component(m.log, roleFastTimer).Info().Uint64("target_ms", target).Msg("fast-time compression complete")
		return true
	}

	remain := target - current
	step := m.onceAdd
	if step == 0 || step > remain {
		step = remain
	}
	next := current + step
	m.simMillis.Store(int64(next))
	m.timemu.Unlock()

	m.mu.Lock()
	m.cond.Broadcast()
	m.mu.Unlock()

	return true
}

// awaitAllAsleep blocks until every worker is parked on cond, so a
// simulated-time jump never races a live dispatch. It returns false if
// quit latches while waiting.
func (m *Monitor) awaitAllAsleep() bool {
	for {
		m.mu.Lock()
		allAsleep := m.sleep == m.count
		quit := m.quit
		m.mu.Unlock()

		if quit {
			return false
		}
		if allAsleep {
			return true
		}

		m.workmu.Lock()
		m.workcond.Wait()
		m.workmu.Unlock()
	}
}

// RequestFastTime installs a simulated-time compression target, the Go
// analogue of skynet_fast_time(ftime, once_add). target and onceAdd are
// both expressed in milliseconds since the Monitor's startTime. A target
// that is not strictly ahead of the current simulated clock is rejected
// only when onceAdd is also positive (ftime < now_time && once_add > 0 in
// the original); a bare onceAdd == 0 call is a one-shot jump to target and
// is accepted even if target isn't ahead of now. Rejection is reported at
// warn level, leaving any in-flight compression untouched, exactly as the
// C original logs and ignores a bad request rather than treating it as
// fatal.
func (m *Monitor) RequestFastTime(target, onceAdd uint64) error {
	m.timemu.Lock()
	defer m.timemu.Unlock()

	now := uint64(m.simMillis.Load())
	log := component(m.log, roleFastTimer)
	if target <= now && onceAdd > 0 {
		log.Warn().
			Uint64("target_ms", target).
			Uint64("now_ms", now).
			Msg("fast-time request rejected: target not ahead of current time")
		return ErrFastTimeRejected
	}

	m.fastTime = target
	m.onceAdd = onceAdd
	log.Info().
		Uint64("target_ms", target).
		Uint64("once_add_ms", onceAdd).
		Msg("fast-time compression requested")
	return nil
}
