package repository

import (
	"context"

	"github.com/fastygo/foodbridge/domain"
)

type EventRepository interface {
	Append(ctx context.Context, event domain.Event) error
	ListByAggregate(ctx context.Context, kind, aggregateID string) ([]domain.Event, error)
}
