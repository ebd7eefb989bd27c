package repository

import (
	"context"
	"time"

	"github.com/fastygo/foodbridge/domain"
)

type DonationFilter struct {
	DonorID      string
	MatchedNGOID string
	Statuses     []domain.DonationStatus
	Category     string
	// After resumes a newest-first listing strictly below the given position.
	After        *DonationCursor
	Limit        int
	Offset       int
}

// DonationCursor is the (createdAt, id) position of the last donation a caller saw.
type DonationCursor struct {
	CreatedAt time.Time
	ID        string
}

// CursorOf returns the listing position of d.
func CursorOf(d domain.Donation) *DonationCursor {
	return &DonationCursor{CreatedAt: d.CreatedAt, ID: d.ID}
}

// Follows reports whether d sorts after the cursor in newest-first order.
func (c *DonationCursor) Follows(d domain.Donation) bool {
	if c == nil {
		return true
	}
	if d.CreatedAt.Equal(c.CreatedAt) {
		return d.ID < c.ID
	}
	return d.CreatedAt.Before(c.CreatedAt)
}

type DonationRepository interface {
	Create(ctx context.Context, donation *domain.Donation) error
	GetByID(ctx context.Context, id string) (*domain.Donation, error)
	// List orders by creation time, newest first, with id as tie-breaker.
	List(ctx context.Context, filter DonationFilter) ([]domain.Donation, error)
	// Transition moves a donation from one status to another atomically; ErrStale if the
	// current status differs from `from`.
	Transition(ctx context.Context, id string, from, to domain.DonationStatus) (*domain.Donation, error)
	// Match atomically moves a pending donation to accepted, records the NGO and inserts the
	// delivery task in the same transaction. ErrStale if the donation is no longer pending.
	Match(ctx context.Context, id, ngoID string, task *domain.Task) (*domain.Donation, error)
	CountByStatus(ctx context.Context) (map[domain.DonationStatus]int, error)
}
