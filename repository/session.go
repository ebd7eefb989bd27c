package repository

import (
	"context"

	"github.com/fastygo/foodbridge/domain"
)

// SessionRepository stores login sessions referenced by issued tokens.
type SessionRepository interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	Save(ctx context.Context, session *domain.Session) error
	Delete(ctx context.Context, id string) error
	Extend(ctx context.Context, id string, ttlSeconds int) error
	// DeleteByUser revokes every session of the user.
	DeleteByUser(ctx context.Context, userID string) error
}
