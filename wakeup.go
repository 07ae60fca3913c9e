package main

// wakeup implements the policy from spec.md §4.2: signal cond once, but
// only when at least `count - busy` workers are already asleep — i.e.
// the caller considers `busy` workers occupied and not worth waking.
//
// The timer thread calls wakeup(count-1), which signals whenever at
// least one worker is asleep. The socket thread calls wakeup(0), which
// signals only when every worker is asleep.
func (m *Monitor) wakeup(busy int) {
	m.mu.Lock()
	shouldSignal := m.sleep >= m.count-busy
	m.mu.Unlock()

	if shouldSignal {
		m.cond.Signal()
	}
}
