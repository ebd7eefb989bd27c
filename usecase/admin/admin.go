package admin

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/pkg/logger"
	"github.com/fastygo/foodbridge/repository"
	"github.com/fastygo/foodbridge/usecase"
)

type UseCase struct {
	users     repository.UserRepository
	sessions  repository.SessionRepository
	donations repository.DonationRepository
	tasks     repository.TaskRepository
	notifier  usecase.Notifier
	conns     usecase.Disconnector
	logger    *zap.Logger
}

func New(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	donations repository.DonationRepository,
	tasks repository.TaskRepository,
	notifier usecase.Notifier,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = usecase.NopNotifier{}
	}
	return &UseCase{
		users:     users,
		sessions:  sessions,
		donations: donations,
		tasks:     tasks,
		notifier:  notifier,
		conns:     usecase.NopDisconnector,
		logger:    logger,
	}
}

// WithDisconnector closes a rejected user's live connections.
func (uc *UseCase) WithDisconnector(d usecase.Disconnector) *UseCase {
	if d != nil {
		uc.conns = d
	}
	return uc
}

// Stats is the platform overview shown on the admin dashboard.
type Stats struct {
	Users     map[domain.Role]int           `json:"users"`
	Donations map[domain.DonationStatus]int `json:"donations"`
	Tasks     map[domain.TaskStatus]int     `json:"tasks"`
}

func (uc *UseCase) PendingUsers(ctx context.Context, actor *domain.Actor, limit, offset int) ([]domain.User, error) {
	if err := domain.Authorize(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	unverified := false
	return uc.users.List(ctx, repository.UserFilter{Verified: &unverified, Limit: limit, Offset: offset})
}

// Verify approves a pending account and tells its owner.
func (uc *UseCase) Verify(ctx context.Context, actor *domain.Actor, userID string) (*domain.User, error) {
	if err := domain.Authorize(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	user, err := uc.users.Verify(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrStale) {
			return nil, domain.ErrUserState
		}
		return nil, err
	}

	logger.FromContext(ctx, uc.logger).Info("user verified",
		zap.String("user_id", user.ID),
		zap.String("admin_id", actor.UserID))
	uc.notifier.Notify(ctx, domain.Notification{
		UserID:  user.ID,
		Title:   "Account verified",
		Message: "Your account has been verified. You now have full access.",
		Kind:    domain.NotifyAccountVerified,
	})
	uc.notifier.Record(ctx, domain.Event{
		AggregateID: user.ID,
		Kind:        domain.AggregateUser,
		Name:        domain.EventUserVerified,
		ActorID:     actor.UserID,
	})
	return user, nil
}

// Reject removes a pending registration and revokes any session it opened.
// Verified accounts cannot be removed.
func (uc *UseCase) Reject(ctx context.Context, actor *domain.Actor, userID string) error {
	if err := domain.Authorize(actor, domain.RoleAdmin); err != nil {
		return err
	}
	if err := uc.users.DeletePending(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return domain.ErrUserState
		}
		return err
	}

	log := logger.FromContext(ctx, uc.logger)
	if err := uc.sessions.DeleteByUser(ctx, userID); err != nil {
		log.Warn("revoke sessions failed", zap.String("user_id", userID), zap.Error(err))
	}
	uc.conns.DisconnectUser(userID)
	log.Info("user rejected", zap.String("user_id", userID), zap.String("admin_id", actor.UserID))
	uc.notifier.Record(ctx, domain.Event{
		AggregateID: userID,
		Kind:        domain.AggregateUser,
		Name:        domain.EventUserRejected,
		ActorID:     actor.UserID,
	})
	return nil
}

func (uc *UseCase) Stats(ctx context.Context, actor *domain.Actor) (*Stats, error) {
	if err := domain.Authorize(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	users, err := uc.users.CountByRole(ctx)
	if err != nil {
		return nil, err
	}
	donations, err := uc.donations.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := uc.tasks.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{Users: users, Donations: donations, Tasks: tasks}, nil
}
