package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema はインデックス用のテーブル群を作成する（冪等）。
// dimension はembeddingsテーブルのベクトル次元に反映される。
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid embedding dimension: %d", dimension)
	}

	if _, err := pool.Exec(ctx, fmt.Sprintf(schemaSQL, dimension)); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
