package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogStatus_Transitions(t *testing.T) {
	cases := []struct {
		from    LogStatus
		to      LogStatus
		allowed bool
	}{
		{LogPending, LogSent, true},
		{LogPending, LogAcknowledged, true},
		{LogSent, LogDelivered, true},
		{LogSent, LogAcknowledged, true},
		{LogSent, LogTimedOut, true},
		{LogSent, LogEscalated, true},
		{LogDelivered, LogAcknowledged, true},
		{LogDelivered, LogTimedOut, true},

		// Terminal statuses have no exits.
		{LogAcknowledged, LogTimedOut, false},
		{LogAcknowledged, LogEscalated, false},
		{LogTimedOut, LogAcknowledged, false},
		{LogEscalated, LogAcknowledged, false},
		{LogFailed, LogDelivered, false},

		// No going backwards.
		{LogDelivered, LogSent, false},
		{LogSent, LogPending, false},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestLogStatus_Terminal(t *testing.T) {
	assert.False(t, LogPending.Terminal())
	assert.False(t, LogSent.Terminal())
	assert.False(t, LogDelivered.Terminal())
	assert.True(t, LogAcknowledged.Terminal())
	assert.True(t, LogFailed.Terminal())
	assert.True(t, LogTimedOut.Terminal())
	assert.True(t, LogEscalated.Terminal())
}

func TestLogStatus_Open(t *testing.T) {
	for _, s := range OpenStatuses() {
		assert.Truef(t, s.Open(), "%s", s)
	}
	for _, s := range []LogStatus{LogAcknowledged, LogFailed, LogTimedOut, LogEscalated} {
		assert.Falsef(t, s.Open(), "%s", s)
	}
}

func TestNotificationStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusInProgress.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
}

func TestPriority_Valid(t *testing.T) {
	for _, p := range []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical} {
		assert.True(t, p.Valid())
	}
	assert.False(t, Priority("urgent").Valid())
	assert.Less(t, PriorityLow.Rank(), PriorityCritical.Rank())
}

func TestCallingTree_ResponseWindow(t *testing.T) {
	tree := &CallingTree{TimeoutSeconds: 60}
	assert.Equal(t, float64(60), tree.ResponseWindow().Seconds())

	// Zero and negative fall back to the default.
	tree.TimeoutSeconds = 0
	assert.Equal(t, float64(300), tree.ResponseWindow().Seconds())
	tree.TimeoutSeconds = -5
	assert.Equal(t, float64(300), tree.ResponseWindow().Seconds())
}
