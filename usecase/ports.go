package usecase

import (
	"context"

	"github.com/fastygo/foodbridge/domain"
)

// Notifier delivers the side effects of a committed state transition. Implementations
// never fail the caller: the transition has already been stored.
type Notifier interface {
	// Notify persists and pushes notifications in the given order.
	Notify(ctx context.Context, notes ...domain.Notification)
	// Record appends a lifecycle event and publishes it to subscribers outside the process.
	Record(ctx context.Context, events ...domain.Event)
}

// Pusher is the real-time side of the fan-out. Push reports how many live
// connections accepted the message.
type Pusher interface {
	Push(userID, event string, data interface{}) int
}

// EventPublisher forwards lifecycle events to a message broker.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// FallbackBuffer keeps writes that primary storage rejected so they can be replayed.
type FallbackBuffer interface {
	BufferNotification(ctx context.Context, n domain.Notification) error
	BufferEvent(ctx context.Context, e domain.Event) error
}

// Disconnector closes live real-time connections whose credentials were revoked. Both
// methods return how many connections were closed.
type Disconnector interface {
	DisconnectSession(sessionID string) int
	DisconnectUser(userID string) int
}

// NopNotifier discards everything.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, ...domain.Notification) {}
func (NopNotifier) Record(context.Context, ...domain.Event)        {}

type nopDisconnector struct{}

func (nopDisconnector) DisconnectSession(string) int { return 0 }
func (nopDisconnector) DisconnectUser(string) int    { return 0 }

// NopDisconnector is used when no real-time channel is running.
var NopDisconnector Disconnector = nopDisconnector{}
