package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/repository"
	"github.com/fastygo/foodbridge/repository/memory"
)

type push struct {
	userID string
	event  string
	data   interface{}
}

type fakePusher struct {
	mu     sync.Mutex
	pushes []push
}

func (p *fakePusher) Push(userID, event string, data interface{}) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, push{userID, event, data})
	return 1
}

type fakeBuffer struct {
	notes  []domain.Notification
	events []domain.Event
}

func (b *fakeBuffer) BufferNotification(_ context.Context, n domain.Notification) error {
	b.notes = append(b.notes, n)
	return nil
}

func (b *fakeBuffer) BufferEvent(_ context.Context, e domain.Event) error {
	b.events = append(b.events, e)
	return nil
}

type fakePublisher struct {
	keys []string
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, e domain.Event) error {
	p.keys = append(p.keys, e.RoutingKey())
	return p.err
}

var errDown = errors.New("database unavailable")

type failingNotifications struct {
	repository.NotificationRepository
}

func (failingNotifications) Create(context.Context, *domain.Notification) error { return errDown }

type failingEvents struct{}

func (failingEvents) Append(context.Context, domain.Event) error { return errDown }
func (failingEvents) ListByAggregate(context.Context, string, string) ([]domain.Event, error) {
	return nil, errDown
}

var fixed = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func TestNotifyPersistsAndPushesInOrder(t *testing.T) {
	store := memory.New()
	pusher := &fakePusher{}
	f := NewFanout(store.Notifications(), store.Events(), nil,
		WithPusher(pusher),
		WithClock(func() time.Time { return fixed }))

	f.Notify(context.Background(),
		domain.Notification{UserID: "u1", Title: "first", Kind: domain.NotifyDonationAccepted},
		domain.Notification{UserID: "u1", Title: "second", Kind: domain.NotifyTaskAssigned, RelatedID: "task-9"},
		domain.Notification{Title: "no recipient"},
	)

	stored, err := store.Notifications().ListByUser(context.Background(), "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "second", stored[0].Title, "newest first")
	assert.Equal(t, "first", stored[1].Title)
	assert.True(t, stored[0].CreatedAt.After(stored[1].CreatedAt), "timestamps strictly increase within one call")
	assert.NotEmpty(t, stored[0].ID)

	require.Len(t, pusher.pushes, 3)
	assert.Equal(t, PushNewNotification, pusher.pushes[0].event)
	assert.Equal(t, PushNewNotification, pusher.pushes[1].event)
	assert.Equal(t, PushTaskAssigned, pusher.pushes[2].event)
	assert.Equal(t, "task-9", pusher.pushes[2].data)
}

func TestNotifyFallsBackToBuffer(t *testing.T) {
	store := memory.New()
	buf := &fakeBuffer{}
	pusher := &fakePusher{}
	f := NewFanout(failingNotifications{store.Notifications()}, failingEvents{}, nil,
		WithPusher(pusher),
		WithFallback(buf))

	f.Notify(context.Background(), domain.Notification{UserID: "u1", Title: "hello"})
	f.Record(context.Background(), domain.Event{AggregateID: "d1", Kind: domain.AggregateDonation, Name: domain.EventDonationCreated})

	require.Len(t, buf.notes, 1)
	assert.Equal(t, "hello", buf.notes[0].Title)
	assert.NotEmpty(t, buf.notes[0].ID, "ids are assigned before buffering so replays stay idempotent")
	require.Len(t, buf.events, 1)
	assert.Len(t, pusher.pushes, 1, "live push still happens when storage is down")
}

func TestRecordAppendsAndPublishes(t *testing.T) {
	store := memory.New()
	pub := &fakePublisher{err: errors.New("broker closed")}
	f := NewFanout(store.Notifications(), store.Events(), nil,
		WithPublisher(pub),
		WithClock(func() time.Time { return fixed }))

	f.Record(context.Background(),
		domain.Event{AggregateID: "t1", Kind: domain.AggregateTask, Name: domain.EventTaskCreated},
		domain.Event{AggregateID: "t1", Kind: domain.AggregateTask, Name: domain.EventTaskOffered},
	)

	events, err := store.Events().ListByAggregate(context.Background(), domain.AggregateTask, "t1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.True(t, events[1].CreatedAt.After(events[0].CreatedAt))
	assert.Equal(t, []string{"task.created", "task.offered"}, pub.keys, "publish errors do not stop the fan-out")
}

func TestUseCaseIsScopedToOwner(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	uc := New(store.Notifications(), nil)
	owner := &domain.Actor{UserID: "u1", Role: domain.RoleDonor}
	other := &domain.Actor{UserID: "u2", Role: domain.RoleNGO}

	for _, title := range []string{"a", "b", "c"} {
		require.NoError(t, store.Notifications().Create(ctx, &domain.Notification{ID: title, UserID: "u1", Title: title}))
	}

	count, err := uc.UnreadCount(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	_, err = uc.MarkRead(ctx, other, "a")
	assert.ErrorIs(t, err, domain.ErrNotificationNotFound)
	assert.ErrorIs(t, uc.Delete(ctx, other, "a"), domain.ErrNotificationNotFound)

	read, err := uc.MarkRead(ctx, owner, "a")
	require.NoError(t, err)
	assert.True(t, read.IsRead)

	unread, err := uc.MarkUnread(ctx, owner, "a")
	require.NoError(t, err)
	assert.False(t, unread.IsRead)

	n, err := uc.MarkAllRead(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	count, err = uc.UnreadCount(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, uc.Delete(ctx, owner, "b"))
	list, err := uc.List(ctx, owner, 0, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = uc.List(ctx, other, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = uc.List(ctx, nil, 0, 0)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}
