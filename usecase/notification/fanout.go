package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/pkg/logger"
	"github.com/fastygo/foodbridge/repository"
	"github.com/fastygo/foodbridge/usecase"
)

// Real-time event names sent to connected clients.
const (
	PushNewNotification = "new_notification"
	PushTaskAssigned    = "task_assigned"
)

// Fanout persists notifications, pushes them to live connections and records lifecycle
// events. Storage failures fall back to the buffer; nothing is reported to the caller.
type Fanout struct {
	notifications repository.NotificationRepository
	events        repository.EventRepository
	pusher        usecase.Pusher
	publisher     usecase.EventPublisher
	buffer        usecase.FallbackBuffer
	now           func() time.Time
	logger        *zap.Logger
}

// FanoutOption customises optional collaborators.
type FanoutOption func(*Fanout)

func WithPusher(p usecase.Pusher) FanoutOption            { return func(f *Fanout) { f.pusher = p } }
func WithPublisher(p usecase.EventPublisher) FanoutOption { return func(f *Fanout) { f.publisher = p } }
func WithFallback(b usecase.FallbackBuffer) FanoutOption  { return func(f *Fanout) { f.buffer = b } }
func WithClock(now func() time.Time) FanoutOption         { return func(f *Fanout) { f.now = now } }

func NewFanout(
	notifications repository.NotificationRepository,
	events repository.EventRepository,
	logger *zap.Logger,
	opts ...FanoutOption,
) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Fanout{
		notifications: notifications,
		events:        events,
		now:           time.Now,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Notify stores and pushes each notification in order. Timestamps are strictly
// increasing per call so per-recipient order survives equal clock readings.
func (f *Fanout) Notify(ctx context.Context, notes ...domain.Notification) {
	log := logger.FromContext(ctx, f.logger)
	last := time.Time{}
	for _, n := range notes {
		if n.UserID == "" {
			continue
		}
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = f.now().UTC()
		}
		if !n.CreatedAt.After(last) {
			n.CreatedAt = last.Add(time.Microsecond)
		}
		last = n.CreatedAt

		if err := f.notifications.Create(ctx, &n); err != nil {
			f.bufferNotification(ctx, log, n, err)
		}
		f.push(log, n)
	}
}

// Record appends events to the lifecycle log and publishes them to the broker.
func (f *Fanout) Record(ctx context.Context, events ...domain.Event) {
	log := logger.FromContext(ctx, f.logger)
	last := time.Time{}
	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = f.now().UTC()
		}
		if !e.CreatedAt.After(last) {
			e.CreatedAt = last.Add(time.Microsecond)
		}
		last = e.CreatedAt

		if err := f.events.Append(ctx, e); err != nil {
			if f.buffer == nil {
				log.Error("lifecycle event dropped", zap.String("event", e.RoutingKey()), zap.Error(err))
			} else if bufErr := f.buffer.BufferEvent(ctx, e); bufErr != nil {
				log.Error("lifecycle event dropped", zap.String("event", e.RoutingKey()), zap.Error(bufErr))
			} else {
				log.Warn("lifecycle event buffered", zap.String("event", e.RoutingKey()), zap.Error(err))
			}
		}

		if f.publisher != nil {
			if err := f.publisher.Publish(ctx, e); err != nil {
				log.Warn("event publish failed", zap.String("event", e.RoutingKey()), zap.Error(err))
			}
		}
	}
}

func (f *Fanout) bufferNotification(ctx context.Context, log *zap.Logger, n domain.Notification, cause error) {
	if f.buffer == nil {
		log.Error("notification not persisted", zap.String("user_id", n.UserID), zap.Error(cause))
		return
	}
	if err := f.buffer.BufferNotification(ctx, n); err != nil {
		log.Error("notification not persisted", zap.String("user_id", n.UserID), zap.Error(err))
		return
	}
	log.Warn("notification buffered", zap.String("user_id", n.UserID), zap.Error(cause))
}

func (f *Fanout) push(log *zap.Logger, n domain.Notification) {
	if f.pusher == nil {
		return
	}
	delivered := f.pusher.Push(n.UserID, PushNewNotification, n)
	if n.Kind == domain.NotifyTaskAssigned && n.RelatedID != "" {
		f.pusher.Push(n.UserID, PushTaskAssigned, n.RelatedID)
	}
	log.Debug("notification pushed", zap.String("user_id", n.UserID), zap.Int("connections", delivered))
}

var _ usecase.Notifier = (*Fanout)(nil)
