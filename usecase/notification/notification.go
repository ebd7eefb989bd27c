package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/repository"
)

// Every operation is scoped to the caller's own notifications; another user's
// notification id behaves exactly like an unknown id.
type UseCase struct {
	notifications repository.NotificationRepository
	logger        *zap.Logger
}

func New(notifications repository.NotificationRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{notifications: notifications, logger: logger}
}

var everyone = []domain.Role{domain.RoleDonor, domain.RoleNGO, domain.RoleVolunteer, domain.RoleAdmin}

func (uc *UseCase) List(ctx context.Context, actor *domain.Actor, limit, offset int) ([]domain.Notification, error) {
	if err := domain.Authorize(actor, everyone...); err != nil {
		return nil, err
	}
	return uc.notifications.ListByUser(ctx, actor.UserID, limit, offset)
}

func (uc *UseCase) MarkRead(ctx context.Context, actor *domain.Actor, id string) (*domain.Notification, error) {
	return uc.setRead(ctx, actor, id, true)
}

func (uc *UseCase) MarkUnread(ctx context.Context, actor *domain.Actor, id string) (*domain.Notification, error) {
	return uc.setRead(ctx, actor, id, false)
}

func (uc *UseCase) setRead(ctx context.Context, actor *domain.Actor, id string, read bool) (*domain.Notification, error) {
	if err := domain.Authorize(actor, everyone...); err != nil {
		return nil, err
	}
	return uc.notifications.SetRead(ctx, actor.UserID, id, read)
}

func (uc *UseCase) MarkAllRead(ctx context.Context, actor *domain.Actor) (int, error) {
	if err := domain.Authorize(actor, everyone...); err != nil {
		return 0, err
	}
	return uc.notifications.MarkAllRead(ctx, actor.UserID)
}

func (uc *UseCase) Delete(ctx context.Context, actor *domain.Actor, id string) error {
	if err := domain.Authorize(actor, everyone...); err != nil {
		return err
	}
	return uc.notifications.Delete(ctx, actor.UserID, id)
}

func (uc *UseCase) UnreadCount(ctx context.Context, actor *domain.Actor) (int, error) {
	if err := domain.Authorize(actor, everyone...); err != nil {
		return 0, err
	}
	return uc.notifications.CountUnread(ctx, actor.UserID)
}
