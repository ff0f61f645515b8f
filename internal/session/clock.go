package session

import (
	"time"

	"github.com/kapu/chessmeet/pkg/wire"
)

// runClock is the per-session countdown loop. It is started on creation and
// owned by the session: terminate closes stop inside the critical section
// that flips status, and tick re-checks status under the session lock, so a
// tick already in flight when the session ends is a no-op.
func (m *Manager) runClock(s *Session, stop <-chan struct{}) {
	every := m.cfg.TickInterval
	if every <= 0 {
		every = time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if !m.tick(s) {
				return
			}
		}
	}
}

// tick decrements the side to move by one second. Reaching zero clamps and
// terminates with reason timeout. At the configured cadence both remaining
// times are broadcast; not on every tick, to bound message volume.
func (m *Manager) tick(s *Session) bool {
	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return false
	}
	side := s.turn
	rem := s.remaining[side] - 1
	if rem < 0 {
		rem = 0
	}
	s.remaining[side] = rem
	clocks := s.clocksLocked()
	s.mu.Unlock()

	if rem == 0 {
		m.terminate(s, ReasonTimeout, side.Other())
		return false
	}

	// Gate on the clock that just moved; the idle side's frozen value would
	// otherwise match the cadence on every tick of a round time control.
	cadence := m.cfg.ClockBroadcastSec
	if cadence > 0 && rem%cadence == 0 {
		payload := wire.TimeUpdate{SessionID: s.ID, Clocks: clocks}
		m.notify.Notify(s.WhiteName, wire.EvTimeUpdate, payload)
		m.notify.Notify(s.BlackName, wire.EvTimeUpdate, payload)
	}
	return true
}
