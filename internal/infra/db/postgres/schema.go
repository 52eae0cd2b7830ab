package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
)

// InitSchema creates the memory tables when they do not exist yet.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS user_attributes (
	id BIGSERIAL PRIMARY KEY,
	attribute_name TEXT NOT NULL UNIQUE,
	attribute_value TEXT NOT NULL,
	compression_level INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS user_memories (
	id BIGSERIAL PRIMARY KEY,
	memory_content TEXT NOT NULL,
	memory_category TEXT NOT NULL DEFAULT 'general',
	access_count INT NOT NULL DEFAULT 0,
	compression_level INT NOT NULL DEFAULT 0,
	is_active BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_accessed_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS user_goals (
	id BIGSERIAL PRIMARY KEY,
	goal_content TEXT NOT NULL,
	goal_status TEXT NOT NULL DEFAULT 'active',
	priority INT NOT NULL DEFAULT 5,
	compression_level INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
)`,
	`CREATE TABLE IF NOT EXISTS assistant_requests (
	id BIGSERIAL PRIMARY KEY,
	request_content TEXT NOT NULL,
	request_category TEXT NOT NULL DEFAULT 'general',
	is_active BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
}

func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
