package escalation

import (
	"context"
	"time"

	"github.com/calling-tree-api/internal/domain"
)

// TreeStore is the read-only view of calling trees the engine snapshots from.
type TreeStore interface {
	Get(ctx context.Context, treeID string) (*domain.CallingTree, error)
	GetLevels(ctx context.Context, treeID string) ([]domain.TreeLevel, error)
}

// MemberStore resolves recipient contact details for dispatch.
type MemberStore interface {
	GetBatch(ctx context.Context, userIDs []string) (map[string]domain.Member, error)
}

// NotificationStore is the durable record of notification instances.
// It is the single source of truth; the engine keeps no authoritative state
// in memory.
type NotificationStore interface {
	Put(ctx context.Context, n *domain.Notification) error
	Get(ctx context.Context, notificationID string) (*domain.Notification, error)
	CompareAndSetStatus(ctx context.Context, notificationID string, expected []domain.NotificationStatus, next domain.NotificationStatus, completedAt *time.Time) (bool, error)
	SetTimeout(ctx context.Context, notificationID string, level int, deadline time.Time) error
	ListInFlight(ctx context.Context) ([]domain.Notification, error)
}

// LogStore is the durable per-recipient delivery/acknowledgment record.
type LogStore interface {
	PutBatch(ctx context.Context, logs []*domain.NotificationLog) error
	ListByNotification(ctx context.Context, notificationID string) ([]domain.NotificationLog, error)
	CompareAndSetStatus(ctx context.Context, logID string, change domain.LogChange) (bool, error)
}

// Notifier is the external delivery capability. Dispatch failures surface as
// log status transitions, never as engine errors.
type Notifier interface {
	Dispatch(ctx context.Context, member domain.Member, n *domain.Notification) error
}
