package repository

import (
	"context"
	"time"

	"github.com/fastygo/foodbridge/domain"
)

type TaskFilter struct {
	// VolunteerID limits results to tasks assigned to this volunteer; with IncludeOpen,
	// unassigned tasks in status assigned are included as well.
	VolunteerID string
	IncludeOpen bool
	NGOID       string
	DonorID     string
	DonationID  string
	Statuses    []domain.TaskStatus
	Limit       int
	Offset      int
}

// TaskAdvance describes one forward step of a task and the cascade that must commit with it.
type TaskAdvance struct {
	TaskID      string
	VolunteerID string
	From        domain.TaskStatus
	To          domain.TaskStatus
	// DonationStatus, when set, is written to the parent donation in the same transaction.
	DonationStatus domain.DonationStatus
	// Complete stamps completedAt and increments the volunteer's completed counter.
	Complete bool
	At       time.Time
}

type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	// Offer sets the proposed volunteer on a task still in status assigned; nil clears it.
	Offer(ctx context.Context, id string, volunteerID *string) (*domain.Task, error)
	// Claim moves assigned->accepted when the task is open or offered to volunteerID.
	Claim(ctx context.Context, id, volunteerID string) (*domain.Task, error)
	// Release clears the assignment of an assigned task offered to volunteerID and records the rejection.
	Release(ctx context.Context, id, volunteerID string) (*domain.Task, error)
	Advance(ctx context.Context, step TaskAdvance) (*domain.Task, error)
	CountByStatus(ctx context.Context) (map[domain.TaskStatus]int, error)
}
