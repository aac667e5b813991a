package domain

import "time"

// LogStatus is the per-recipient delivery state. Status strings match the
// values the UI already renders.
type LogStatus string

const (
	LogPending      LogStatus = "pending"
	LogSent         LogStatus = "sent"
	LogDelivered    LogStatus = "delivered"
	LogAcknowledged LogStatus = "acknowledged"
	LogFailed       LogStatus = "failed"
	LogTimedOut     LogStatus = "timeout"
	LogEscalated    LogStatus = "escalated"
)

// logTransitions is the enforced per-log state machine. Statuses absent from
// the map are terminal and have no exits.
var logTransitions = map[LogStatus][]LogStatus{
	LogPending:   {LogSent, LogDelivered, LogAcknowledged, LogFailed, LogTimedOut, LogEscalated},
	LogSent:      {LogDelivered, LogAcknowledged, LogFailed, LogTimedOut, LogEscalated},
	LogDelivered: {LogAcknowledged, LogTimedOut, LogEscalated},
}

// Terminal reports whether the status permits no further transition.
func (s LogStatus) Terminal() bool {
	_, ok := logTransitions[s]
	return !ok
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s LogStatus) CanTransitionTo(next LogStatus) bool {
	for _, allowed := range logTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Open reports whether the recipient can still act on the entry.
func (s LogStatus) Open() bool {
	return s == LogPending || s == LogSent || s == LogDelivered
}

// AcknowledgeableStatuses are the only statuses an acknowledgment may transition from.
func AcknowledgeableStatuses() []LogStatus {
	return []LogStatus{LogSent, LogDelivered}
}

// OpenStatuses are the non-terminal statuses closed out when a level escalates.
func OpenStatuses() []LogStatus {
	return []LogStatus{LogPending, LogSent, LogDelivered}
}

// NotificationLog is the delivery/acknowledgment record for one recipient at one
// level of one notification. Exactly one row exists per (notification, level,
// recipient); transitions are in place and monotonic, rows are never deleted.
type NotificationLog struct {
	LogID          string     `json:"id" dynamodbav:"log_id"`
	NotificationID string     `json:"notification_id" dynamodbav:"notification_id"`
	NodeID         string     `json:"node_id" dynamodbav:"node_id"`
	UserID         string     `json:"user_id" dynamodbav:"user_id"`
	Level          int        `json:"level" dynamodbav:"level"`
	Status         LogStatus  `json:"status" dynamodbav:"status"`
	SentAt         *time.Time `json:"sent_at" dynamodbav:"sent_at"`
	DeliveredAt    *time.Time `json:"delivered_at" dynamodbav:"delivered_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at" dynamodbav:"acknowledged_at"`
	Response       *string    `json:"response" dynamodbav:"response"`
	EscalatedFrom  *string    `json:"escalated_from" dynamodbav:"escalated_from"`
	CreatedAt      time.Time  `json:"created" dynamodbav:"created_at"`
}

// LogChange is a conditional status transition applied to a log row.
// The store applies it only while the current status is one of Expected,
// so at most one of several racing writers wins.
type LogChange struct {
	Expected      []LogStatus
	Status        LogStatus
	At            time.Time
	Response      *string
	EscalatedFrom *string
}
