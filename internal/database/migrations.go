package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// uploaded_at is TEXT on purpose: the collection historically holds mixed
// timestamp representations, and readers normalize on the way out.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		name TEXT,
		type TEXT NOT NULL DEFAULT 'document',
		uploaded_at TEXT,
		source TEXT,
		summary TEXT,
		cover_image_data_uri TEXT,
		author TEXT,
		edition TEXT,
		file_url TEXT,
		asset_id TEXT,
		text_content TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS articles_created_at_idx ON articles (created_at DESC, id DESC)`,
}

func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
