package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/hn770123/memory-assistant-v3/internal/domain"
	"github.com/hn770123/memory-assistant-v3/internal/domain/model"
	"github.com/hn770123/memory-assistant-v3/internal/domain/ports/repository"
)

var _ repository.GoalRepository = (*GoalRepo)(nil)

type GoalRepo struct {
	pool *pgxpool.Pool
}

func NewGoalRepo(pool *pgxpool.Pool) *GoalRepo {
	return &GoalRepo{pool: pool}
}

func (r *GoalRepo) ListAll(ctx context.Context) ([]*model.Goal, error) {
	const sql = `
SELECT id, goal_content, goal_status, priority, compression_level,
       created_at, updated_at, completed_at
  FROM user_goals
 ORDER BY priority, id;
`
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("ListAll goals: %w", err)
	}
	defer rows.Close()
	var out []*model.Goal
	for rows.Next() {
		var g model.Goal
		if err := rows.Scan(&g.ID, &g.Content, &g.Status, &g.Priority, &g.CompressionLevel,
			&g.CreatedAt, &g.UpdatedAt, &g.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, &g)
	}
	return out, rows.Err()
}

func (r *GoalRepo) Add(ctx context.Context, content string, priority int) (int64, error) {
	const sql = `
INSERT INTO user_goals (goal_content, priority)
VALUES ($1, $2)
RETURNING id;
`
	var id int64
	if err := r.pool.QueryRow(ctx, sql, content, priority).Scan(&id); err != nil {
		return 0, fmt.Errorf("Add goal: %w", err)
	}
	return id, nil
}

// Update changes only the provided fields; nil means leave as-is. Completing
// a goal also stamps completed_at.
func (r *GoalRepo) Update(ctx context.Context, id int64, content, status *string, priority *int) error {
	sets := []string{"updated_at = now()"}
	args := []any{id}
	if content != nil {
		args = append(args, *content)
		sets = append(sets, fmt.Sprintf("goal_content = $%d", len(args)))
	}
	if status != nil {
		args = append(args, *status)
		sets = append(sets, fmt.Sprintf("goal_status = $%d", len(args)))
		if *status == model.GoalCompleted {
			sets = append(sets, "completed_at = now()")
		}
	}
	if priority != nil {
		args = append(args, *priority)
		sets = append(sets, fmt.Sprintf("priority = $%d", len(args)))
	}

	sql := "UPDATE user_goals SET " + strings.Join(sets, ", ") + " WHERE id = $1;"
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("Update goal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GoalRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_goals WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("Delete goal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
