package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/repository"
)

const (
	taskColumns = `id, task_code, donation_id, ngo_id, donor_id, pickup_location, delivery_location, status,
		assigned_volunteer_id, rejected_by, distance_km, estimated_minutes, completed_at, created_at, updated_at`
	taskExists = `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`
)

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) repository.TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	return scanTask(row)
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	const query = `
	SELECT ` + taskColumns + `
	FROM tasks
	WHERE ($1 = '' OR assigned_volunteer_id = $1
	       OR ($2 AND status = 'assigned' AND assigned_volunteer_id IS NULL))
	  AND ($3 = '' OR ngo_id = $3)
	  AND ($4 = '' OR donor_id = $4)
	  AND ($5 = '' OR donation_id = $5)
	  AND ($6::text[] IS NULL OR status = ANY($6))
	ORDER BY created_at DESC, id DESC
	LIMIT $7 OFFSET $8
	`
	rows, err := r.pool.Query(ctx, query,
		filter.VolunteerID,
		filter.IncludeOpen,
		filter.NGOID,
		filter.DonorID,
		filter.DonationID,
		statusList(filter.Statuses),
		repository.ClampLimit(filter.Limit),
		filter.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) Offer(ctx context.Context, id string, volunteerID *string) (*domain.Task, error) {
	const query = `
	UPDATE tasks
	SET assigned_volunteer_id = $2,
		updated_at = NOW()
	WHERE id = $1 AND status = 'assigned'
	RETURNING ` + taskColumns

	return r.compareAndSet(ctx, id, query, id, volunteerID)
}

func (r *taskRepository) Claim(ctx context.Context, id, volunteerID string) (*domain.Task, error) {
	const query = `
	UPDATE tasks
	SET status = 'accepted',
		assigned_volunteer_id = $2,
		updated_at = NOW()
	WHERE id = $1
	  AND status = 'assigned'
	  AND (assigned_volunteer_id IS NULL OR assigned_volunteer_id = $2)
	RETURNING ` + taskColumns

	return r.compareAndSet(ctx, id, query, id, volunteerID)
}

func (r *taskRepository) Release(ctx context.Context, id, volunteerID string) (*domain.Task, error) {
	const query = `
	UPDATE tasks
	SET assigned_volunteer_id = NULL,
		rejected_by = CASE WHEN $2 = ANY(rejected_by) THEN rejected_by ELSE array_append(rejected_by, $2) END,
		updated_at = NOW()
	WHERE id = $1
	  AND status = 'assigned'
	  AND assigned_volunteer_id = $2
	RETURNING ` + taskColumns

	return r.compareAndSet(ctx, id, query, id, volunteerID)
}

func (r *taskRepository) Advance(ctx context.Context, step repository.TaskAdvance) (*domain.Task, error) {
	at := step.At
	if at.IsZero() {
		at = time.Now()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const advanceQuery = `
	UPDATE tasks
	SET status = $4,
		completed_at = CASE WHEN $5 THEN $6 ELSE completed_at END,
		updated_at = $6
	WHERE id = $1 AND status = $2 AND assigned_volunteer_id = $3
	RETURNING ` + taskColumns

	task, err := scanTask(tx.QueryRow(ctx, advanceQuery,
		step.TaskID,
		string(step.From),
		step.VolunteerID,
		string(step.To),
		step.Complete,
		at,
	))
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			return nil, staleOrMissing(ctx, tx, taskExists, step.TaskID, domain.ErrTaskNotFound)
		}
		return nil, err
	}

	if step.DonationStatus != "" {
		tag, err := tx.Exec(ctx,
			`UPDATE donations SET status = $2, updated_at = $3 WHERE id = $1`,
			task.DonationID, string(step.DonationStatus), at)
		if err != nil {
			return nil, err
		}
		if tag.RowsAffected() == 0 {
			return nil, domain.ErrDonationNotFound
		}
	}

	if step.Complete {
		const counterQuery = `
		UPDATE users
		SET profile = jsonb_set(
				COALESCE(profile, '{}'::jsonb),
				'{completedTasks}',
				to_jsonb(COALESCE((profile->>'completedTasks')::int, 0) + 1)
			),
			updated_at = $2
		WHERE id = $1 AND role = 'volunteer'
		`
		if _, err := tx.Exec(ctx, counterQuery, step.VolunteerID, at); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) CountByStatus(ctx context.Context) (map[domain.TaskStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[domain.TaskStatus]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		out[domain.TaskStatus(status)] = count
	}
	return out, rows.Err()
}

func (r *taskRepository) compareAndSet(ctx context.Context, id, query string, args ...interface{}) (*domain.Task, error) {
	task, err := scanTask(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, domain.ErrTaskNotFound) {
		return nil, staleOrMissing(ctx, r.pool, taskExists, id, domain.ErrTaskNotFound)
	}
	return task, err
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task     domain.Task
		pickup   []byte
		delivery []byte
		status   string
	)

	if err := row.Scan(
		&task.ID,
		&task.TaskID,
		&task.DonationID,
		&task.NGOID,
		&task.DonorID,
		&pickup,
		&delivery,
		&status,
		&task.AssignedVolunteerID,
		&task.RejectedBy,
		&task.Distance,
		&task.EstimatedTime,
		&task.CompletedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	task.Status = domain.TaskStatus(status)
	if err := decodeColumn("tasks.pickup_location", pickup, &task.PickupLocation); err != nil {
		return nil, err
	}
	if err := decodeColumn("tasks.delivery_location", delivery, &task.DeliveryLocation); err != nil {
		return nil, err
	}
	return &task, nil
}
