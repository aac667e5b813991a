package progress

import (
	"context"

	"github.com/calling-tree-api/internal/domain"
)

// NotificationStore is the read side of the notification table.
type NotificationStore interface {
	Get(ctx context.Context, notificationID string) (*domain.Notification, error)
	ListByTree(ctx context.Context, treeID string, limit int) ([]domain.Notification, error)
}

type LogStore interface {
	ListByNotification(ctx context.Context, notificationID string) ([]domain.NotificationLog, error)
}

type TreeStore interface {
	GetLevels(ctx context.Context, treeID string) ([]domain.TreeLevel, error)
}

// Service projects read-only progress views from the notification and log
// tables. It never mutates state; all writes belong to the escalation engine.
type Service struct {
	notifications NotificationStore
	logs          LogStore
	trees         TreeStore
}

func NewService(notifications NotificationStore, logs LogStore, trees TreeStore) *Service {
	return &Service{notifications: notifications, logs: logs, trees: trees}
}

// Get returns the raw notification record.
func (s *Service) Get(ctx context.Context, notificationID string) (*domain.Notification, error) {
	return s.notifications.Get(ctx, notificationID)
}

// WithLogs returns the notification and its full per-recipient timeline.
func (s *Service) WithLogs(ctx context.Context, notificationID string) (*domain.NotificationWithLogs, error) {
	n, err := s.notifications.Get(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	logs, err := s.logs.ListByNotification(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	return &domain.NotificationWithLogs{Notification: *n, Logs: logs}, nil
}

// Status aggregates the notification's logs into the progress view the UI
// polls. The current level is derived from the open log rows and is null once
// the notification is terminal.
func (s *Service) Status(ctx context.Context, notificationID string) (*domain.Notification, *domain.NotificationProgress, error) {
	n, err := s.notifications.Get(ctx, notificationID)
	if err != nil {
		return nil, nil, err
	}
	logs, err := s.logs.ListByNotification(ctx, notificationID)
	if err != nil {
		return nil, nil, err
	}
	levels, err := s.trees.GetLevels(ctx, n.TreeID)
	if err != nil {
		return nil, nil, err
	}

	p := &domain.NotificationProgress{TotalLevels: len(levels)}
	for i := range logs {
		p.TotalSent++
		switch {
		case logs[i].Status == domain.LogAcknowledged:
			p.TotalAcknowledged++
		case logs[i].Status.Open():
			p.TotalPending++
		}
	}
	if !n.Status.Terminal() {
		if lvl, ok := currentLevel(logs); ok {
			p.CurrentLevel = &lvl
		}
	}
	// Acknowledged over all dispatched logs, rounded down. A completed
	// notification keeps its real ratio: levels that timed out before the
	// completing level still count in the denominator.
	if p.TotalSent > 0 {
		p.ProgressPercentage = p.TotalAcknowledged * 100 / p.TotalSent
	}
	return n, p, nil
}

// ListByTree returns the tree's notification history, newest first.
func (s *Service) ListByTree(ctx context.Context, treeID string, limit int) ([]domain.Notification, error) {
	return s.notifications.ListByTree(ctx, treeID, limit)
}

func currentLevel(logs []domain.NotificationLog) (int, bool) {
	found := false
	lowest := 0
	for i := range logs {
		if !logs[i].Status.Open() {
			continue
		}
		if !found || logs[i].Level < lowest {
			lowest = logs[i].Level
			found = true
		}
	}
	return lowest, found
}
