package escalation

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fireRecorder struct {
	mu    sync.Mutex
	fires []firedEvent
}

type firedEvent struct {
	id    string
	level int
}

func (f *fireRecorder) fire(id string, level int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fires = append(f.fires, firedEvent{id: id, level: level})
}

func (f *fireRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fires)
}

func (f *fireRecorder) last() (firedEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.fires) == 0 {
		return firedEvent{}, false
	}
	return f.fires[len(f.fires)-1], true
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestScheduler_FiresAfterWindow(t *testing.T) {
	rec := &fireRecorder{}
	s := NewScheduler(rec.fire, zerolog.Nop())
	defer s.Shutdown()

	s.Arm("n1", 1, 10*time.Millisecond)
	waitFor(t, func() bool { return rec.count() == 1 })

	ev, ok := rec.last()
	require.True(t, ok)
	assert.Equal(t, "n1", ev.id)
	assert.Equal(t, 1, ev.level)

	_, armed := s.Armed("n1")
	assert.False(t, armed, "fired timer must be removed from the registry")
}

func TestScheduler_CancelPreventsFire(t *testing.T) {
	rec := &fireRecorder{}
	s := NewScheduler(rec.fire, zerolog.Nop())
	defer s.Shutdown()

	s.Arm("n1", 1, 20*time.Millisecond)
	s.Cancel("n1")

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
}

func TestScheduler_RearmReplacesTimer(t *testing.T) {
	rec := &fireRecorder{}
	s := NewScheduler(rec.fire, zerolog.Nop())
	defer s.Shutdown()

	// Arm level 1 far out, then immediately replace with level 2 close in.
	s.Arm("n1", 1, time.Hour)
	s.Arm("n1", 2, 10*time.Millisecond)

	waitFor(t, func() bool { return rec.count() == 1 })
	ev, _ := rec.last()
	assert.Equal(t, 2, ev.level, "only the replacement timer may fire")

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestScheduler_IndependentNotifications(t *testing.T) {
	rec := &fireRecorder{}
	s := NewScheduler(rec.fire, zerolog.Nop())
	defer s.Shutdown()

	s.Arm("n1", 1, 10*time.Millisecond)
	s.Arm("n2", 3, 10*time.Millisecond)
	waitFor(t, func() bool { return rec.count() == 2 })
}

func TestScheduler_ShutdownStopsAll(t *testing.T) {
	rec := &fireRecorder{}
	s := NewScheduler(rec.fire, zerolog.Nop())

	s.Arm("n1", 1, 20*time.Millisecond)
	s.Arm("n2", 1, 20*time.Millisecond)
	s.Shutdown()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
}

func TestScheduler_ZeroDurationFiresImmediately(t *testing.T) {
	rec := &fireRecorder{}
	s := NewScheduler(rec.fire, zerolog.Nop())
	defer s.Shutdown()

	// Rehydration arms past-due deadlines with zero remaining.
	s.Arm("n1", 2, 0)
	waitFor(t, func() bool { return rec.count() == 1 })
}
