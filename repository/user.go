package repository

import (
	"context"

	"github.com/fastygo/foodbridge/domain"
)

type UserFilter struct {
	Role     domain.Role
	Verified *bool
	Limit    int
	Offset   int
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
	// Verify flips isVerified false->true; ErrStale when the user is already verified.
	Verify(ctx context.Context, id string) (*domain.User, error)
	// DeletePending removes an unverified user; ErrStale when the user is verified.
	DeletePending(ctx context.Context, id string) error
	CountByRole(ctx context.Context) (map[domain.Role]int, error)
}
