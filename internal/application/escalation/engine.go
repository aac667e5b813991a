package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/calling-tree-api/internal/domain"
	"github.com/calling-tree-api/internal/pkg/id"
	"github.com/rs/zerolog"
)

// timerCtxTimeout bounds the work a timer-fired escalation may do.
const timerCtxTimeout = 30 * time.Second

// Service is the escalation contract the transport layer consumes.
type Service interface {
	Trigger(ctx context.Context, req TriggerRequest) (string, error)
	Acknowledge(ctx context.Context, notificationID, recipientID, response string) (bool, error)
	Escalate(ctx context.Context, notificationID string, fromLevel int) (bool, error)
	MarkDelivered(ctx context.Context, notificationID, recipientID string) (bool, error)
	CheckLevelComplete(ctx context.Context, notificationID string, level int) (bool, error)
}

// TriggerRequest carries everything needed to start a broadcast.
type TriggerRequest struct {
	TreeID      string
	Title       string
	Message     string
	Priority    domain.Priority
	InitiatedBy string
	Metadata    map[string]string
}

// Engine drives a notification from initiation to a terminal state: it
// snapshots tree membership per level, dispatches to the notifier, arms one
// response-window timer per notification and escalates level by level until
// someone's level fully acknowledges or the tree is exhausted.
//
// All cross-cutting mutations happen under a per-notification mutex, with the
// store's conditional updates as the authoritative guard, so an acknowledgment
// completing a level and a timer firing for the same level can race freely:
// at most one produces an effect.
type Engine struct {
	trees         TreeStore
	members       MemberStore
	notifications NotificationStore
	logs          LogStore

	dispatcher *Dispatcher
	sched      *Scheduler
	locks      *keyedMutex
	log        zerolog.Logger
	now        func() time.Time
}

// Deps wires the engine's collaborators.
type Deps struct {
	Trees         TreeStore
	Members       MemberStore
	Notifications NotificationStore
	Logs          LogStore
	Notifier      Notifier

	Logger           zerolog.Logger
	DispatchAttempts int
	DispatchTimeout  time.Duration
}

func NewEngine(d Deps) *Engine {
	e := &Engine{
		trees:         d.Trees,
		members:       d.Members,
		notifications: d.Notifications,
		logs:          d.Logs,
		locks:         newKeyedMutex(),
		log:           d.Logger.With().Str("component", "escalation").Logger(),
		now:           func() time.Time { return time.Now().UTC() },
	}
	e.dispatcher = NewDispatcher(d.Notifier, d.Members, d.Logs, d.DispatchAttempts, d.DispatchTimeout, d.Logger)
	e.sched = NewScheduler(e.escalateFromTimer, d.Logger)
	return e
}

// Trigger creates the notification, dispatches the first populated level and
// arms its response window. Dispatch to the notifier is fire-and-forget; its
// failures surface as log transitions, never as errors here.
func (e *Engine) Trigger(ctx context.Context, req TriggerRequest) (string, error) {
	if req.Title == "" || req.Message == "" {
		return "", fmt.Errorf("title and message are required: %w", domain.ErrBadRequest)
	}
	if req.Priority == "" {
		req.Priority = domain.PriorityHigh
	}
	if !req.Priority.Valid() {
		return "", fmt.Errorf("unknown priority %q: %w", req.Priority, domain.ErrBadRequest)
	}

	tree, err := e.trees.Get(ctx, req.TreeID)
	if err != nil {
		return "", err
	}
	if tree.Status != domain.TreeActive {
		return "", fmt.Errorf("tree %s is %s: %w", tree.TreeID, tree.Status, domain.ErrTreeNotActive)
	}
	levels, err := e.trees.GetLevels(ctx, req.TreeID)
	if err != nil {
		return "", err
	}
	if len(levels) == 0 {
		return "", fmt.Errorf("tree %s has no levels: %w", tree.TreeID, domain.ErrNotFound)
	}

	now := e.now()
	n := &domain.Notification{
		NotificationID: id.New(),
		TreeID:         tree.TreeID,
		OrganizationID: tree.OrganizationID,
		Title:          req.Title,
		Message:        req.Message,
		Priority:       req.Priority,
		Status:         domain.StatusInProgress,
		InitiatedBy:    req.InitiatedBy,
		InitiatedAt:    now,
		Metadata:       req.Metadata,
	}
	if err := e.notifications.Put(ctx, n); err != nil {
		return "", fmt.Errorf("persist notification: %w", err)
	}

	if err := e.openLevel(ctx, n, tree.ResponseWindow(), levels[0], false); err != nil {
		return "", err
	}

	e.log.Info().Str("notification_id", n.NotificationID).Str("tree_id", tree.TreeID).
		Int("level", levels[0].Level).Int("recipients", len(levels[0].Nodes)).
		Str("priority", string(n.Priority)).Msg("notification triggered")
	return n.NotificationID, nil
}

// Acknowledge records a recipient's response at the notification's current
// level. Re-acknowledging is an idempotent no-op: the duplicate observes the
// already-applied result and never double-counts toward level completion.
// The returned bool reports whether this call newly applied the acknowledgment.
func (e *Engine) Acknowledge(ctx context.Context, notificationID, recipientID, response string) (bool, error) {
	unlock := e.locks.Lock(notificationID)
	defer unlock()

	n, err := e.notifications.Get(ctx, notificationID)
	if err != nil {
		return false, err
	}
	logs, err := e.logs.ListByNotification(ctx, notificationID)
	if err != nil {
		return false, err
	}

	if n.Status.Terminal() {
		// A duplicate ack racing past completion is benign.
		if hasAcknowledged(logs, recipientID) {
			return false, nil
		}
		return false, fmt.Errorf("notification %s is %s: %w", notificationID, n.Status, domain.ErrNotificationTerminal)
	}

	level, ok := currentLevel(logs)
	if !ok {
		return false, fmt.Errorf("notification %s has no open level: %w", notificationID, domain.ErrNotAtCurrentLevel)
	}

	entry := findLog(logs, level, recipientID)
	if entry == nil {
		return false, fmt.Errorf("recipient %s at level %d: %w", recipientID, level, domain.ErrNotAtCurrentLevel)
	}
	if entry.Status == domain.LogAcknowledged {
		return false, nil
	}
	// A Failed/TimedOut/Escalated entry is closed; only re-acknowledging an
	// Acknowledged row is the idempotent no-op.
	if entry.Status.Terminal() {
		return false, fmt.Errorf("recipient %s entry at level %d is %s: %w",
			recipientID, level, entry.Status, domain.ErrNotAtCurrentLevel)
	}

	now := e.now()
	resp := response
	if resp == "" {
		resp = "Acknowledged"
	}
	applied, err := e.logs.CompareAndSetStatus(ctx, entry.LogID, domain.LogChange{
		Expected: domain.AcknowledgeableStatuses(),
		Status:   domain.LogAcknowledged,
		At:       now,
		Response: &resp,
	})
	if err != nil {
		return false, err
	}
	if !applied {
		// Lost the conditional update: another writer already resolved the row.
		return false, nil
	}
	entry.Status = domain.LogAcknowledged

	if levelComplete(logs, level) {
		done, err := e.notifications.CompareAndSetStatus(ctx, notificationID,
			[]domain.NotificationStatus{domain.StatusInProgress}, domain.StatusCompleted, &now)
		if err != nil {
			return true, err
		}
		if done {
			e.sched.Cancel(notificationID)
			e.log.Info().Str("notification_id", notificationID).Int("level", level).
				Msg("level fully acknowledged, notification completed")
		}
	}
	return true, nil
}

// Escalate is the manual (admin) variant: a from_level that no longer matches
// the current level is rejected with ErrStaleLevel, and the closed-out logs
// are marked Escalated rather than TimedOut so history distinguishes the cause.
func (e *Engine) Escalate(ctx context.Context, notificationID string, fromLevel int) (bool, error) {
	return e.escalate(ctx, notificationID, fromLevel, true)
}

func (e *Engine) escalateFromTimer(notificationID string, level int) {
	ctx, cancel := context.WithTimeout(context.Background(), timerCtxTimeout)
	defer cancel()
	if _, err := e.escalate(ctx, notificationID, level, false); err != nil {
		e.log.Error().Str("notification_id", notificationID).Int("level", level).
			Err(err).Msg("timer escalation failed")
	}
}

// escalate closes out the given level and opens the next populated one, or
// fails the notification when the tree is exhausted. A stale fromLevel is a
// silent no-op on the timer path — a fired-but-logically-cancelled timer and a
// just-completed level both land here.
func (e *Engine) escalate(ctx context.Context, notificationID string, fromLevel int, manual bool) (bool, error) {
	unlock := e.locks.Lock(notificationID)
	defer unlock()

	n, err := e.notifications.Get(ctx, notificationID)
	if err != nil {
		return false, err
	}
	if n.Status.Terminal() {
		if manual {
			return false, fmt.Errorf("notification %s is %s: %w", notificationID, n.Status, domain.ErrNotificationTerminal)
		}
		return false, nil
	}

	logs, err := e.logs.ListByNotification(ctx, notificationID)
	if err != nil {
		return false, err
	}
	level, ok := currentLevel(logs)
	if !ok || level != fromLevel {
		if manual {
			return false, fmt.Errorf("level %d is not current: %w", fromLevel, domain.ErrStaleLevel)
		}
		return false, nil
	}

	now := e.now()
	closed := domain.LogTimedOut
	if manual {
		closed = domain.LogEscalated
	}
	for i := range logs {
		if logs[i].Level != fromLevel || !logs[i].Status.Open() {
			continue
		}
		if _, err := e.logs.CompareAndSetStatus(ctx, logs[i].LogID, domain.LogChange{
			Expected: domain.OpenStatuses(),
			Status:   closed,
			At:       now,
		}); err != nil {
			return false, fmt.Errorf("close level %d: %w", fromLevel, err)
		}
	}

	tree, err := e.trees.Get(ctx, n.TreeID)
	if err != nil {
		return false, err
	}
	levels, err := e.trees.GetLevels(ctx, n.TreeID)
	if err != nil {
		return false, err
	}
	next := nextLevel(levels, fromLevel)
	if next == nil {
		// Tree exhausted without a fully-acknowledged level.
		if _, err := e.notifications.CompareAndSetStatus(ctx, notificationID,
			[]domain.NotificationStatus{domain.StatusInProgress}, domain.StatusFailed, &now); err != nil {
			return false, err
		}
		e.sched.Cancel(notificationID)
		e.log.Warn().Str("notification_id", notificationID).Int("last_level", fromLevel).
			Msg("tree exhausted, notification failed")
		return true, nil
	}

	if err := e.openLevel(ctx, n, tree.ResponseWindow(), *next, true); err != nil {
		return false, err
	}
	e.log.Info().Str("notification_id", notificationID).Int("from_level", fromLevel).
		Int("to_level", next.Level).Bool("manual", manual).Msg("escalated")
	return true, nil
}

// MarkDelivered upgrades the recipient's log from Sent to Delivered on a
// delivery receipt. Receipts that arrive after the row was resolved are benign.
func (e *Engine) MarkDelivered(ctx context.Context, notificationID, recipientID string) (bool, error) {
	logs, err := e.logs.ListByNotification(ctx, notificationID)
	if err != nil {
		return false, err
	}
	var entry *domain.NotificationLog
	for i := range logs {
		if logs[i].UserID == recipientID && logs[i].Status.Open() {
			entry = &logs[i]
			break
		}
	}
	if entry == nil {
		return false, nil
	}
	return e.logs.CompareAndSetStatus(ctx, entry.LogID, domain.LogChange{
		Expected: []domain.LogStatus{domain.LogPending, domain.LogSent},
		Status:   domain.LogDelivered,
		At:       e.now(),
	})
}

// CheckLevelComplete reports whether every log at the level is Acknowledged.
// Failed and timed-out rows do not count as complete; a level with no logs is
// vacuously complete, matching the empty-level auto-advance policy.
func (e *Engine) CheckLevelComplete(ctx context.Context, notificationID string, level int) (bool, error) {
	if _, err := e.notifications.Get(ctx, notificationID); err != nil {
		return false, err
	}
	logs, err := e.logs.ListByNotification(ctx, notificationID)
	if err != nil {
		return false, err
	}
	return levelComplete(logs, level), nil
}

// Rehydrate re-arms escalation timers for every in-flight notification from
// the deadlines persisted in the store. Past-due deadlines fire immediately.
func (e *Engine) Rehydrate(ctx context.Context) error {
	inflight, err := e.notifications.ListInFlight(ctx)
	if err != nil {
		return err
	}
	now := e.now()
	armed := 0
	for i := range inflight {
		n := &inflight[i]
		if n.TimeoutAt == nil || n.TimeoutLevel == 0 {
			continue
		}
		remaining := n.TimeoutAt.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		e.sched.Arm(n.NotificationID, n.TimeoutLevel, remaining)
		armed++
	}
	e.log.Info().Int("in_flight", len(inflight)).Int("timers", armed).Msg("rehydrated escalation timers")
	return nil
}

// Shutdown stops pending timers and waits for in-flight dispatch fanouts.
func (e *Engine) Shutdown() {
	e.sched.Shutdown()
	e.dispatcher.Wait()
}

// openLevel snapshots the level's membership into Sent log rows, hands them to
// the dispatcher and arms the response window. Membership is read once here:
// later tree edits never affect this notification.
func (e *Engine) openLevel(ctx context.Context, n *domain.Notification, window time.Duration, lvl domain.TreeLevel, escalated bool) error {
	now := e.now()
	entries := make([]*domain.NotificationLog, 0, len(lvl.Nodes))
	seen := make(map[string]bool, len(lvl.Nodes))
	for _, node := range lvl.Nodes {
		if seen[node.UserID] {
			continue
		}
		seen[node.UserID] = true
		sentAt := now
		l := &domain.NotificationLog{
			LogID:          id.New(),
			NotificationID: n.NotificationID,
			NodeID:         node.NodeID,
			UserID:         node.UserID,
			Level:          lvl.Level,
			Status:         domain.LogSent,
			SentAt:         &sentAt,
			CreatedAt:      now,
		}
		if escalated && node.ParentNodeID != nil {
			l.EscalatedFrom = node.ParentNodeID
		}
		entries = append(entries, l)
	}

	if err := e.logs.PutBatch(ctx, entries); err != nil {
		return fmt.Errorf("persist level %d logs: %w", lvl.Level, err)
	}

	deadline := now.Add(window)
	if err := e.notifications.SetTimeout(ctx, n.NotificationID, lvl.Level, deadline); err != nil {
		return fmt.Errorf("persist level %d deadline: %w", lvl.Level, err)
	}
	e.dispatcher.Fanout(n, entries)
	e.sched.Arm(n.NotificationID, lvl.Level, window)
	return nil
}

// currentLevel is the lowest level with at least one open log. Escalation is
// monotonic, so this is the only level a recipient can still act on.
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

func findLog(logs []domain.NotificationLog, level int, recipientID string) *domain.NotificationLog {
	for i := range logs {
		if logs[i].Level == level && logs[i].UserID == recipientID {
			return &logs[i]
		}
	}
	return nil
}

func hasAcknowledged(logs []domain.NotificationLog, recipientID string) bool {
	for i := range logs {
		if logs[i].UserID == recipientID && logs[i].Status == domain.LogAcknowledged {
			return true
		}
	}
	return false
}

func levelComplete(logs []domain.NotificationLog, level int) bool {
	for i := range logs {
		if logs[i].Level == level && logs[i].Status != domain.LogAcknowledged {
			return false
		}
	}
	return true
}

// nextLevel returns the first populated level after fromLevel, skipping
// numbering gaps, or nil when the tree is exhausted.
func nextLevel(levels []domain.TreeLevel, fromLevel int) *domain.TreeLevel {
	for i := range levels {
		if levels[i].Level > fromLevel {
			return &levels[i]
		}
	}
	return nil
}
