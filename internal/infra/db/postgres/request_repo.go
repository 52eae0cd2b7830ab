package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/hn770123/memory-assistant-v3/internal/domain"
	"github.com/hn770123/memory-assistant-v3/internal/domain/model"
	"github.com/hn770123/memory-assistant-v3/internal/domain/ports/repository"
)

var _ repository.RequestRepository = (*RequestRepo)(nil)

type RequestRepo struct {
	pool *pgxpool.Pool
}

func NewRequestRepo(pool *pgxpool.Pool) *RequestRepo {
	return &RequestRepo{pool: pool}
}

func (r *RequestRepo) ListAll(ctx context.Context, activeOnly bool) ([]*model.AssistantRequest, error) {
	sql := `
SELECT id, request_content, request_category, is_active, created_at, updated_at
  FROM assistant_requests`
	if activeOnly {
		sql += `
 WHERE is_active`
	}
	sql += `
 ORDER BY id;`

	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("ListAll requests: %w", err)
	}
	defer rows.Close()
	var out []*model.AssistantRequest
	for rows.Next() {
		var a model.AssistantRequest
		if err := rows.Scan(&a.ID, &a.Content, &a.Category, &a.Active, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *RequestRepo) Add(ctx context.Context, content, category string) (int64, error) {
	const sql = `
INSERT INTO assistant_requests (request_content, request_category)
VALUES ($1, $2)
RETURNING id;
`
	var id int64
	if err := r.pool.QueryRow(ctx, sql, content, category).Scan(&id); err != nil {
		return 0, fmt.Errorf("Add request: %w", err)
	}
	return id, nil
}

func (r *RequestRepo) UpdateContent(ctx context.Context, id int64, content string) error {
	const sql = `
UPDATE assistant_requests
   SET request_content = $2, updated_at = now()
 WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, sql, id, content)
	if err != nil {
		return fmt.Errorf("UpdateContent request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *RequestRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM assistant_requests WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("Delete request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
