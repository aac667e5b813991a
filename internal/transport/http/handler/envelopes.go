package handler

import (
	"encoding/json"
	"net/http"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// TriggeredEnvelope wraps a successful trigger response.
type TriggeredEnvelope struct {
	NotificationID string `json:"notification_id"`
	Status         string `json:"status"`
}

// AcknowledgedEnvelope reports whether an acknowledgment was newly applied.
// A duplicate ack returns 200 with acknowledged=false rather than an error.
type AcknowledgedEnvelope struct {
	Acknowledged bool   `json:"acknowledged"`
	Message      string `json:"message,omitempty"`
}

// EscalatedEnvelope reports whether a manual escalation advanced the notification.
type EscalatedEnvelope struct {
	Escalated bool `json:"escalated"`
}

// DeliveredEnvelope reports whether a delivery receipt was applied.
type DeliveredEnvelope struct {
	Delivered bool `json:"delivered"`
}

// LevelCompleteEnvelope reports whether every recipient at a level has acknowledged.
type LevelCompleteEnvelope struct {
	Level    int  `json:"level"`
	Complete bool `json:"complete"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
