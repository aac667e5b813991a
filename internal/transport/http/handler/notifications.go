package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/calling-tree-api/internal/application/escalation"
	"github.com/calling-tree-api/internal/domain"
	"github.com/calling-tree-api/internal/pkg/validate"
	"github.com/calling-tree-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

// ProgressReader is the read-only projection the handler serves GETs from.
type ProgressReader interface {
	WithLogs(ctx context.Context, notificationID string) (*domain.NotificationWithLogs, error)
	Status(ctx context.Context, notificationID string) (*domain.Notification, *domain.NotificationProgress, error)
	ListByTree(ctx context.Context, treeID string, limit int) ([]domain.Notification, error)
}

// NotificationHandler exposes the escalation engine and its progress views.
type NotificationHandler struct {
	engine   escalation.Service
	progress ProgressReader
}

func NewNotificationHandler(engine escalation.Service, progress ProgressReader) *NotificationHandler {
	return &NotificationHandler{engine: engine, progress: progress}
}

type triggerRequest struct {
	TreeID   string            `json:"tree_id" validate:"required"`
	Title    string            `json:"title" validate:"required,max=200"`
	Message  string            `json:"message" validate:"required,max=2000"`
	Priority string            `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	Metadata map[string]string `json:"metadata"`
}

// Trigger starts a broadcast down the tree. 201 means the notification and its
// first-level logs are persisted; delivery itself is asynchronous.
func (h *NotificationHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.engine.Trigger(r.Context(), escalation.TriggerRequest{
		TreeID:      req.TreeID,
		Title:       req.Title,
		Message:     req.Message,
		Priority:    domain.Priority(req.Priority),
		InitiatedBy: claims.UserID,
		Metadata:    req.Metadata,
	})
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, TriggeredEnvelope{
		NotificationID: id,
		Status:         string(domain.StatusInProgress),
	})
}

type acknowledgeRequest struct {
	Response string `json:"response" validate:"omitempty,max=500"`
}

// Acknowledge records the caller's response at the notification's current
// level. Duplicates return 200 with acknowledged=false.
func (h *NotificationHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req acknowledgeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	applied, err := h.engine.Acknowledge(r.Context(), chi.URLParam(r, "id"), claims.UserID, req.Response)
	if err != nil {
		httpError(w, err)
		return
	}
	env := AcknowledgedEnvelope{Acknowledged: applied}
	if !applied {
		env.Message = "already acknowledged"
	}
	writeJSON(w, http.StatusOK, env)
}

type escalateRequest struct {
	FromLevel int `json:"from_level" validate:"required,min=1"`
}

// Escalate forces escalation past from_level without waiting for the timer.
// A from_level that is no longer current returns 409.
func (h *NotificationHandler) Escalate(w http.ResponseWriter, r *http.Request) {
	var req escalateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	escalated, err := h.engine.Escalate(r.Context(), chi.URLParam(r, "id"), req.FromLevel)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EscalatedEnvelope{Escalated: escalated})
}

// Delivered records a delivery receipt for the caller's log entry. Late
// receipts on already-resolved entries return delivered=false.
func (h *NotificationHandler) Delivered(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	applied, err := h.engine.MarkDelivered(r.Context(), chi.URLParam(r, "id"), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeliveredEnvelope{Delivered: applied})
}

// Get returns the notification with its full per-recipient timeline.
func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	n, err := h.progress.WithLogs(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// Status returns the aggregate progress view the UI polls.
func (h *NotificationHandler) Status(w http.ResponseWriter, r *http.Request) {
	n, p, err := h.progress.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		*domain.Notification
		Progress *domain.NotificationProgress `json:"progress"`
	}{n, p})
}

// LevelComplete reports whether every recipient at the level has acknowledged.
func (h *NotificationHandler) LevelComplete(w http.ResponseWriter, r *http.Request) {
	level, err := strconv.Atoi(chi.URLParam(r, "level"))
	if err != nil || level < 1 {
		writeError(w, http.StatusBadRequest, "invalid level")
		return
	}
	complete, err := h.engine.CheckLevelComplete(r.Context(), chi.URLParam(r, "id"), level)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LevelCompleteEnvelope{Level: level, Complete: complete})
}

// ListByTree returns a tree's notification history, newest first.
func (h *NotificationHandler) ListByTree(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	notifications, err := h.progress.ListByTree(r.Context(), chi.URLParam(r, "treeID"), limit)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}
