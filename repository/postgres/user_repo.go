package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/repository"
)

const userColumns = `id, email, password_hash, full_name, phone, role, is_verified, profile, created_at, updated_at`

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository instantiates a Postgres-backed user repository.
func NewUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	return scanUser(row)
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if user == nil {
		return domain.ErrInvalidPayload
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO users (id, email, password_hash, full_name, phone, role, is_verified, profile)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING created_at, updated_at
	`

	var profile []byte
	if user.Profile != nil {
		profile = marshalJSON(user.Profile)
	}

	if err := r.pool.QueryRow(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FullName,
		user.Phone,
		string(user.Role),
		user.IsVerified,
		profile,
	).Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *userRepository) List(ctx context.Context, filter repository.UserFilter) ([]domain.User, error) {
	const query = `
	SELECT ` + userColumns + `
	FROM users
	WHERE ($1 = '' OR role = $1)
	  AND ($2::boolean IS NULL OR is_verified = $2)
	ORDER BY created_at, id
	LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query, string(filter.Role), filter.Verified, repository.ClampLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (r *userRepository) Verify(ctx context.Context, id string) (*domain.User, error) {
	const query = `
	UPDATE users
	SET is_verified = TRUE,
		updated_at = NOW()
	WHERE id = $1 AND NOT is_verified
	RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, staleOrMissing(ctx, r.pool, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id, domain.ErrUserNotFound)
	}
	return user, err
}

func (r *userRepository) DeletePending(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1 AND NOT is_verified`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return staleOrMissing(ctx, r.pool, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id, domain.ErrUserNotFound)
	}
	return nil
}

func (r *userRepository) CountByRole(ctx context.Context) (map[domain.Role]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[domain.Role]int)
	for rows.Next() {
		var (
			role  string
			count int
		)
		if err := rows.Scan(&role, &count); err != nil {
			return nil, err
		}
		out[domain.Role(role)] = count
	}
	return out, rows.Err()
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user    domain.User
		role    string
		profile []byte
	)

	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FullName,
		&user.Phone,
		&role,
		&user.IsVerified,
		&profile,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	user.Role = domain.Role(role)
	if len(profile) > 0 {
		p, err := domain.DecodeProfile(user.Role, profile)
		if err != nil {
			return nil, err
		}
		user.Profile = p
	}
	return &user, nil
}
