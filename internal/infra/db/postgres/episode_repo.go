package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/hn770123/memory-assistant-v3/internal/domain"
	"github.com/hn770123/memory-assistant-v3/internal/domain/model"
	"github.com/hn770123/memory-assistant-v3/internal/domain/ports/repository"
)

var _ repository.EpisodeRepository = (*EpisodeRepo)(nil)

type EpisodeRepo struct {
	pool *pgxpool.Pool
}

func NewEpisodeRepo(pool *pgxpool.Pool) *EpisodeRepo {
	return &EpisodeRepo{pool: pool}
}

func (r *EpisodeRepo) ListAll(ctx context.Context, activeOnly bool) ([]*model.Episode, error) {
	sql := `
SELECT id, memory_content, memory_category, access_count, compression_level,
       is_active, created_at, updated_at, last_accessed_at
  FROM user_memories`
	if activeOnly {
		sql += `
 WHERE is_active`
	}
	sql += `
 ORDER BY id;`

	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("ListAll episodes: %w", err)
	}
	defer rows.Close()
	var out []*model.Episode
	for rows.Next() {
		var e model.Episode
		if err := rows.Scan(&e.ID, &e.Content, &e.Category, &e.AccessCount, &e.CompressionLevel,
			&e.Active, &e.CreatedAt, &e.UpdatedAt, &e.LastAccessedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *EpisodeRepo) Add(ctx context.Context, content, category string) (int64, error) {
	const sql = `
INSERT INTO user_memories (memory_content, memory_category)
VALUES ($1, $2)
RETURNING id;
`
	var id int64
	if err := r.pool.QueryRow(ctx, sql, content, category).Scan(&id); err != nil {
		return 0, fmt.Errorf("Add episode: %w", err)
	}
	return id, nil
}

func (r *EpisodeRepo) UpdateContent(ctx context.Context, id int64, content string) error {
	const sql = `
UPDATE user_memories
   SET memory_content = $2, updated_at = now()
 WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, sql, id, content)
	if err != nil {
		return fmt.Errorf("UpdateContent episode: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *EpisodeRepo) UpdateCompression(ctx context.Context, id int64, level int, content string) error {
	const sql = `
UPDATE user_memories
   SET memory_content = $3, compression_level = $2, updated_at = now()
 WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, sql, id, level, content)
	if err != nil {
		return fmt.Errorf("UpdateCompression episode: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *EpisodeRepo) Delete(ctx context.Context, id int64, hard bool) error {
	var sql string
	if hard {
		sql = `DELETE FROM user_memories WHERE id = $1;`
	} else {
		sql = `UPDATE user_memories SET is_active = false, updated_at = now() WHERE id = $1;`
	}
	tag, err := r.pool.Exec(ctx, sql, id)
	if err != nil {
		return fmt.Errorf("Delete episode: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
