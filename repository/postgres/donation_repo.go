package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/repository"
)

const (
	donationColumns = `id, donor_id, name, category, quantity, unit, expires_at, location, status, matched_ngo_id, created_at, updated_at`
	donationExists  = `SELECT EXISTS (SELECT 1 FROM donations WHERE id = $1)`
)

type donationRepository struct {
	pool *pgxpool.Pool
}

// NewDonationRepository returns a Postgres-backed implementation of DonationRepository.
func NewDonationRepository(pool *pgxpool.Pool) repository.DonationRepository {
	return &donationRepository{pool: pool}
}

func (r *donationRepository) Create(ctx context.Context, donation *domain.Donation) error {
	if donation == nil {
		return domain.ErrInvalidPayload
	}
	if donation.ID == "" {
		donation.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO donations (id, donor_id, name, category, quantity, unit, expires_at, location, status, matched_ngo_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING created_at, updated_at
	`

	return r.pool.QueryRow(ctx, query,
		donation.ID,
		donation.DonorID,
		donation.FoodDetails.Name,
		donation.FoodDetails.Category,
		donation.FoodDetails.Quantity,
		donation.FoodDetails.Unit,
		donation.FoodDetails.ExpiresAt,
		marshalJSON(donation.Location),
		string(donation.Status),
		donation.MatchedNGOID,
	).Scan(&donation.CreatedAt, &donation.UpdatedAt)
}

func (r *donationRepository) GetByID(ctx context.Context, id string) (*domain.Donation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+donationColumns+` FROM donations WHERE id = $1`, id)
	return scanDonation(row)
}

func (r *donationRepository) List(ctx context.Context, filter repository.DonationFilter) ([]domain.Donation, error) {
	const query = `
	SELECT ` + donationColumns + `
	FROM donations
	WHERE ($1 = '' OR donor_id = $1)
	  AND ($2 = '' OR matched_ngo_id = $2)
	  AND ($3 = '' OR category = $3)
	  AND ($4::text[] IS NULL OR status = ANY($4))
	  AND ($7::timestamptz IS NULL OR (created_at, id) < ($7::timestamptz, $8::text))
	ORDER BY created_at DESC, id DESC
	LIMIT $5 OFFSET $6
	`
	var afterAt interface{}
	var afterID string
	if filter.After != nil {
		afterAt, afterID = nullTime(filter.After.CreatedAt), filter.After.ID
	}
	rows, err := r.pool.Query(ctx, query,
		filter.DonorID,
		filter.MatchedNGOID,
		filter.Category,
		statusList(filter.Statuses),
		repository.ClampLimit(filter.Limit),
		filter.Offset,
		afterAt,
		afterID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var donations []domain.Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		donations = append(donations, *d)
	}
	return donations, rows.Err()
}

func (r *donationRepository) Transition(ctx context.Context, id string, from, to domain.DonationStatus) (*domain.Donation, error) {
	const query = `
	UPDATE donations
	SET status = $3,
		updated_at = NOW()
	WHERE id = $1 AND status = $2
	RETURNING ` + donationColumns

	d, err := scanDonation(r.pool.QueryRow(ctx, query, id, string(from), string(to)))
	if errors.Is(err, domain.ErrDonationNotFound) {
		return nil, staleOrMissing(ctx, r.pool, donationExists, id, domain.ErrDonationNotFound)
	}
	return d, err
}

func (r *donationRepository) Match(ctx context.Context, id, ngoID string, task *domain.Task) (*domain.Donation, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const matchQuery = `
	UPDATE donations
	SET status = 'accepted',
		matched_ngo_id = $2,
		updated_at = NOW()
	WHERE id = $1 AND status = 'pending'
	RETURNING ` + donationColumns

	donation, err := scanDonation(tx.QueryRow(ctx, matchQuery, id, ngoID))
	if err != nil {
		if errors.Is(err, domain.ErrDonationNotFound) {
			return nil, staleOrMissing(ctx, tx, donationExists, id, domain.ErrDonationNotFound)
		}
		return nil, err
	}

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.DonationID = donation.ID

	const taskQuery = `
	INSERT INTO tasks (id, task_code, donation_id, ngo_id, donor_id, pickup_location, delivery_location,
		status, assigned_volunteer_id, distance_km, estimated_minutes)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING created_at, updated_at
	`
	if err := tx.QueryRow(ctx, taskQuery,
		task.ID,
		task.TaskID,
		task.DonationID,
		task.NGOID,
		task.DonorID,
		marshalJSON(task.PickupLocation),
		marshalJSON(task.DeliveryLocation),
		string(task.Status),
		task.AssignedVolunteerID,
		task.Distance,
		task.EstimatedTime,
	).Scan(&task.CreatedAt, &task.UpdatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return donation, nil
}

func (r *donationRepository) CountByStatus(ctx context.Context) (map[domain.DonationStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM donations GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[domain.DonationStatus]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		out[domain.DonationStatus(status)] = count
	}
	return out, rows.Err()
}

func scanDonation(row rowScanner) (*domain.Donation, error) {
	var (
		d        domain.Donation
		expires  *time.Time
		location []byte
		status   string
	)

	if err := row.Scan(
		&d.ID,
		&d.DonorID,
		&d.FoodDetails.Name,
		&d.FoodDetails.Category,
		&d.FoodDetails.Quantity,
		&d.FoodDetails.Unit,
		&expires,
		&location,
		&status,
		&d.MatchedNGOID,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDonationNotFound
		}
		return nil, err
	}

	d.Status = domain.DonationStatus(status)
	d.FoodDetails.ExpiresAt = expires
	if err := decodeColumn("donations.location", location, &d.Location); err != nil {
		return nil, err
	}
	return &d, nil
}
