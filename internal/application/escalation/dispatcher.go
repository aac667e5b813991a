package escalation

import (
	"context"
	"sync"
	"time"

	"github.com/calling-tree-api/internal/domain"
	"github.com/rs/zerolog"
)

const dispatchBackoff = 200 * time.Millisecond

// Dispatcher fans a dispatched level out to the notifier, off the caller's
// request path. Per-recipient outcomes land on the log rows: publish acceptance
// upgrades Sent to Delivered, exhausted retries mark the row Failed. Neither
// outcome ever fails the level — the level completes via remaining recipients
// or escalates on timeout.
type Dispatcher struct {
	notifier Notifier
	members  MemberStore
	logs     LogStore
	log      zerolog.Logger

	attempts int
	timeout  time.Duration

	wg sync.WaitGroup
}

func NewDispatcher(notifier Notifier, members MemberStore, logs LogStore, attempts int, timeout time.Duration, log zerolog.Logger) *Dispatcher {
	if attempts < 1 {
		attempts = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		notifier: notifier,
		members:  members,
		logs:     logs,
		log:      log.With().Str("component", "dispatcher").Logger(),
		attempts: attempts,
		timeout:  timeout,
	}
}

// Fanout dispatches the given level entries asynchronously and returns
// immediately. Trigger and Escalate stay synchronous only up to persistence.
func (d *Dispatcher) Fanout(n *domain.Notification, entries []*domain.NotificationLog) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.fanout(n, entries)
	}()
}

// Wait blocks until all in-flight fanouts finish. Used by shutdown and tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) fanout(n *domain.Notification, entries []*domain.NotificationLog) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout*time.Duration(d.attempts+1))
	defer cancel()

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.UserID)
	}
	members, err := d.members.GetBatch(ctx, ids)
	if err != nil {
		d.log.Error().Str("notification_id", n.NotificationID).Err(err).
			Msg("contact lookup failed, marking level entries failed")
		for _, e := range entries {
			d.markFailed(ctx, e)
		}
		return
	}

	var wg sync.WaitGroup
	for _, e := range entries {
		member, ok := members[e.UserID]
		if !ok {
			d.log.Warn().Str("notification_id", n.NotificationID).Str("user_id", e.UserID).
				Msg("recipient has no member record")
			d.markFailed(ctx, e)
			continue
		}
		wg.Add(1)
		go func(entry *domain.NotificationLog, m domain.Member) {
			defer wg.Done()
			d.deliver(ctx, n, entry, m)
		}(e, member)
	}
	wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, n *domain.Notification, entry *domain.NotificationLog, m domain.Member) {
	var lastErr error
	for attempt := 0; attempt < d.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(dispatchBackoff << (attempt - 1)):
			case <-ctx.Done():
				lastErr = ctx.Err()
				d.markFailed(ctx, entry)
				return
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := d.notifier.Dispatch(attemptCtx, m, n)
		cancel()
		if err == nil {
			// Channel acceptance counts as delivery; a provider receipt via the
			// delivered webhook lands on the same conditional transition.
			if _, err := d.logs.CompareAndSetStatus(ctx, entry.LogID, domain.LogChange{
				Expected: []domain.LogStatus{domain.LogPending, domain.LogSent},
				Status:   domain.LogDelivered,
				At:       time.Now().UTC(),
			}); err != nil {
				d.log.Error().Str("log_id", entry.LogID).Err(err).Msg("delivered transition failed")
			}
			return
		}
		lastErr = err
	}

	d.log.Warn().Str("notification_id", n.NotificationID).Str("user_id", entry.UserID).
		Err(lastErr).Msg("dispatch exhausted retries")
	d.markFailed(ctx, entry)
}

func (d *Dispatcher) markFailed(ctx context.Context, entry *domain.NotificationLog) {
	if _, err := d.logs.CompareAndSetStatus(ctx, entry.LogID, domain.LogChange{
		Expected: []domain.LogStatus{domain.LogPending, domain.LogSent},
		Status:   domain.LogFailed,
		At:       time.Now().UTC(),
	}); err != nil {
		d.log.Error().Str("log_id", entry.LogID).Err(err).Msg("failed transition not recorded")
	}
}
