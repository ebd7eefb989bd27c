package services

import (
	"context"
	"encoding/json"

	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/internal/infrastructure/buffer"
	"github.com/fastygo/foodbridge/usecase"
)

// BufferBridge adapts the bbolt store to the fan-out's fallback port. Items keep the
// entity id so a replay after a partial write stays idempotent.
type BufferBridge struct {
	store *buffer.Store
}

func NewBufferBridge(store *buffer.Store) *BufferBridge {
	return &BufferBridge{store: store}
}

func (b *BufferBridge) BufferNotification(_ context.Context, n domain.Notification) error {
	if b.store == nil || n.UserID == "" {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return b.store.Enqueue(buffer.Item{
		ID:      n.ID,
		Kind:    buffer.KindNotification,
		Owner:   n.UserID,
		Payload: payload,
	})
}

func (b *BufferBridge) BufferEvent(_ context.Context, e domain.Event) error {
	if b.store == nil {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return b.store.Enqueue(buffer.Item{
		ID:      e.ID,
		Kind:    buffer.KindEvent,
		Owner:   e.AggregateID,
		Payload: payload,
	})
}

var _ usecase.FallbackBuffer = (*BufferBridge)(nil)
