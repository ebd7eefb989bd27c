package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/repository"
)

type eventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository creates a Postgres-backed lifecycle event log.
func NewEventRepository(pool *pgxpool.Pool) repository.EventRepository {
	return &eventRepository{pool: pool}
}

func (r *eventRepository) Append(ctx context.Context, event domain.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO lifecycle_events (id, aggregate_id, kind, name, actor_id, payload, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))
	ON CONFLICT (id) DO NOTHING
	`

	var payload []byte
	if len(event.Payload) > 0 {
		payload = []byte(event.Payload)
	}

	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.AggregateID,
		event.Kind,
		event.Name,
		event.ActorID,
		payload,
		marshalMap(event.Metadata),
		nullTime(event.CreatedAt),
	)
	return err
}

func (r *eventRepository) ListByAggregate(ctx context.Context, kind, aggregateID string) ([]domain.Event, error) {
	const query = `
	SELECT id, aggregate_id, kind, name, actor_id, payload, metadata, created_at
	FROM lifecycle_events
	WHERE kind = $1 AND aggregate_id = $2
	ORDER BY seq
	`
	rows, err := r.pool.Query(ctx, query, kind, aggregateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			event    domain.Event
			payload  []byte
			metadata []byte
		)
		if err := rows.Scan(
			&event.ID,
			&event.AggregateID,
			&event.Kind,
			&event.Name,
			&event.ActorID,
			&payload,
			&metadata,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			event.Payload = append(json.RawMessage(nil), payload...)
		}
		if err := decodeColumn("lifecycle_events.metadata", metadata, &event.Metadata); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
