package escalation

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// FireFunc is invoked when a response window elapses.
type FireFunc func(notificationID string, level int)

// Scheduler owns at most one pending escalation timer per in-flight
// notification. It is a cache over the deadlines persisted on the notification
// rows: Rearm-after-restart reads those, never this registry.
//
// Every armed timer carries an epoch. A timer that fires after it was cancelled
// or replaced sees a mismatched epoch and does nothing, so cancellation is
// race-free without locking the acknowledgment path.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*armedTimer
	epoch  uint64
	fire   FireFunc
	log    zerolog.Logger
}

type armedTimer struct {
	level int
	epoch uint64
	timer *time.Timer
}

func NewScheduler(fire FireFunc, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		timers: make(map[string]*armedTimer),
		fire:   fire,
		log:    log.With().Str("component", "scheduler").Logger(),
	}
}

// Arm schedules an escalation for the notification after d, replacing any
// prior timer. Arming over a live timer for an older level is always safe:
// the stale-level guard in the engine absorbs whichever fires late.
func (s *Scheduler) Arm(notificationID string, level int, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.timers[notificationID]; ok {
		prev.timer.Stop()
	}
	s.epoch++
	at := &armedTimer{level: level, epoch: s.epoch}
	epoch := s.epoch
	at.timer = time.AfterFunc(d, func() { s.fired(notificationID, epoch) })
	s.timers[notificationID] = at

	s.log.Debug().Str("notification_id", notificationID).Int("level", level).
		Dur("window", d).Msg("timer armed")
}

func (s *Scheduler) fired(notificationID string, epoch uint64) {
	s.mu.Lock()
	at, ok := s.timers[notificationID]
	if !ok || at.epoch != epoch {
		// Cancelled or replaced between fire and lock acquisition.
		s.mu.Unlock()
		return
	}
	delete(s.timers, notificationID)
	level := at.level
	s.mu.Unlock()

	s.fire(notificationID, level)
}

// Cancel removes the pending timer for the notification. No-op if none exists
// or it already fired.
func (s *Scheduler) Cancel(notificationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at, ok := s.timers[notificationID]; ok {
		at.timer.Stop()
		delete(s.timers, notificationID)
	}
}

// Armed reports whether a timer is currently pending for the notification,
// and for which level.
func (s *Scheduler) Armed(notificationID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.timers[notificationID]
	if !ok {
		return 0, false
	}
	return at.level, true
}

// Shutdown stops every pending timer. Deadlines stay persisted in the store,
// so the next start rehydrates them.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, at := range s.timers {
		at.timer.Stop()
		delete(s.timers, id)
	}
}
