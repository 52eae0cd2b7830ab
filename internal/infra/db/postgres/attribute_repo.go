package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/hn770123/memory-assistant-v3/internal/domain"
	"github.com/hn770123/memory-assistant-v3/internal/domain/model"
	"github.com/hn770123/memory-assistant-v3/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.AttributeRepository = (*AttributeRepo)(nil)

const pgUniqueViolation = "23505"

type AttributeRepo struct {
	pool *pgxpool.Pool
}

func NewAttributeRepo(pool *pgxpool.Pool) *AttributeRepo {
	return &AttributeRepo{pool: pool}
}

func (r *AttributeRepo) ListAll(ctx context.Context) ([]*model.Attribute, error) {
	const sql = `
SELECT id, attribute_name, attribute_value, compression_level, created_at, updated_at
  FROM user_attributes
 ORDER BY id;
`
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("ListAll attributes: %w", err)
	}
	defer rows.Close()
	var out []*model.Attribute
	for rows.Next() {
		var a model.Attribute
		if err := rows.Scan(&a.ID, &a.Name, &a.Value, &a.CompressionLevel, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *AttributeRepo) Add(ctx context.Context, name, value string) (int64, error) {
	const sql = `
INSERT INTO user_attributes (attribute_name, attribute_value)
VALUES ($1, $2)
RETURNING id;
`
	var id int64
	if err := r.pool.QueryRow(ctx, sql, name, value).Scan(&id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return 0, domain.ErrAlreadyExists
		}
		return 0, fmt.Errorf("Add attribute: %w", err)
	}
	return id, nil
}

func (r *AttributeRepo) UpdateValue(ctx context.Context, id int64, value string) error {
	const sql = `
UPDATE user_attributes
   SET attribute_value = $2, updated_at = now()
 WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, sql, id, value)
	if err != nil {
		return fmt.Errorf("UpdateValue attribute: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *AttributeRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_attributes WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("Delete attribute: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FindByName is used by extraction dedup paths that prefer a point lookup.
func (r *AttributeRepo) FindByName(ctx context.Context, name string) (*model.Attribute, error) {
	const sql = `
SELECT id, attribute_name, attribute_value, compression_level, created_at, updated_at
  FROM user_attributes
 WHERE attribute_name = $1;
`
	var a model.Attribute
	err := r.pool.QueryRow(ctx, sql, name).Scan(&a.ID, &a.Name, &a.Value, &a.CompressionLevel, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("FindByName attribute: %w", err)
	}
	return &a, nil
}
