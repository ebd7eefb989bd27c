package repository

import (
	"context"

	"github.com/fastygo/foodbridge/domain"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
	// ListByUser returns the recipient's notifications newest first.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Notification, error)
	SetRead(ctx context.Context, userID, id string, read bool) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, userID, id string) error
	CountUnread(ctx context.Context, userID string) (int, error)
}
