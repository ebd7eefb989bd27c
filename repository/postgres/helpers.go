package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fastygo/foodbridge/repository"
)

const uniqueViolation = "23505"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func marshalJSON(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

func marshalMap(data map[string]string) []byte {
	if len(data) == 0 {
		return nil
	}
	return marshalJSON(data)
}

// decodeColumn unmarshals a JSONB column. Empty values leave dst untouched; corrupt
// ones fail the read.
func decodeColumn(column string, raw []byte, dst interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", column, err)
	}
	return nil
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// staleOrMissing resolves a compare-and-set miss: the row exists but its precondition
// failed (ErrStale), or it does not exist at all (notFound).
func staleOrMissing(ctx context.Context, q querier, existsQuery, id string, notFound error) error {
	var exists bool
	if err := q.QueryRow(ctx, existsQuery, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return repository.ErrStale
	}
	return notFound
}

func statusList[T ~string](statuses []T) []string {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
