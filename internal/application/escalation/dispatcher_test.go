package escalation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/calling-tree-api/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyNotifier fails the first failures calls, then succeeds.
type flakyNotifier struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyNotifier) Dispatch(ctx context.Context, member domain.Member, n *domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return errors.New("transient provider error")
	}
	return nil
}

func dispatcherFixture(notifier Notifier, attempts int) (*Dispatcher, *memStore, []*domain.NotificationLog) {
	store := newMemStore()
	store.members["u1"] = domain.Member{UserID: "u1", FullName: "u1"}
	entry := &domain.NotificationLog{
		LogID: "l1", NotificationID: "n1", UserID: "u1", Level: 1, Status: domain.LogSent,
	}
	_ = logStore{store}.PutBatch(context.Background(), []*domain.NotificationLog{entry})
	d := NewDispatcher(notifier, store, logStore{store}, attempts, time.Second, zerolog.Nop())
	return d, store, []*domain.NotificationLog{entry}
}

func TestDispatcher_RetriesThenDelivers(t *testing.T) {
	notifier := &flakyNotifier{failures: 2}
	d, store, entries := dispatcherFixture(notifier, 3)

	d.Fanout(&domain.Notification{NotificationID: "n1"}, entries)
	d.Wait()

	assert.Equal(t, 3, notifier.calls)
	assert.Equal(t, domain.LogDelivered, store.logsFor("n1", 1)["u1"].Status)
}

func TestDispatcher_ExhaustedRetriesMarkFailed(t *testing.T) {
	notifier := &flakyNotifier{failures: 100}
	d, store, entries := dispatcherFixture(notifier, 2)

	d.Fanout(&domain.Notification{NotificationID: "n1"}, entries)
	d.Wait()

	assert.Equal(t, 2, notifier.calls)
	assert.Equal(t, domain.LogFailed, store.logsFor("n1", 1)["u1"].Status)
}

func TestDispatcher_MissingMemberRecord(t *testing.T) {
	store := newMemStore()
	entry := &domain.NotificationLog{
		LogID: "l1", NotificationID: "n1", UserID: "ghost", Level: 1, Status: domain.LogSent,
	}
	require.NoError(t, logStore{store}.PutBatch(context.Background(), []*domain.NotificationLog{entry}))

	d := NewDispatcher(&fakeNotifier{}, store, logStore{store}, 1, time.Second, zerolog.Nop())
	d.Fanout(&domain.Notification{NotificationID: "n1"}, []*domain.NotificationLog{entry})
	d.Wait()

	assert.Equal(t, domain.LogFailed, store.logsFor("n1", 1)["ghost"].Status)
}
