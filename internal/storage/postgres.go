package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresBackend は collections テーブルの1行に1コレクションを保存するバックエンド。
// テーブルは internal/database のマイグレーションで作成される。
type PostgresBackend struct {
	db *sql.DB
}

// NewPostgresBackend は PostgresBackend を生成する。
func NewPostgresBackend(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

// Name はバックエンド名を返す。
func (p *PostgresBackend) Name() string { return "postgres" }

// Get はコレクションのJSONを取得する。
func (p *PostgresBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT data FROM collections WHERE name = $1`,
		key,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select collection %s: %w", key, err)
	}
	return data, nil
}

// Set はコレクションを upsert する。
func (p *PostgresBackend) Set(ctx context.Context, key string, value []byte) error {
	if _, err := p.db.ExecContext(ctx, upsertCollectionSQL, key, string(value)); err != nil {
		return fmt.Errorf("failed to upsert collection %s: %w", key, err)
	}
	return nil
}

// SetMulti は複数コレクションを同一トランザクションで upsert する。
func (p *PostgresBackend) SetMulti(ctx context.Context, items map[string][]byte) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for k, v := range items {
		if _, err := tx.ExecContext(ctx, upsertCollectionSQL, k, string(v)); err != nil {
			return fmt.Errorf("failed to upsert collection %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Delete はコレクションの行を削除する。
func (p *PostgresBackend) Delete(ctx context.Context, key string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM collections WHERE name = $1`, key); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", key, err)
	}
	return nil
}

// Keys は prefix で始まる name を返す。
// "_" が LIKE のワイルドカードになるため前方一致は left() で比較する。
func (p *PostgresBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT name FROM collections WHERE left(name, length($1)) = $1 ORDER BY name`,
		prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan collection name: %w", err)
		}
		keys = append(keys, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate collections: %w", err)
	}
	return keys, nil
}

// Ping はデータベースへの疎通を確認する。
func (p *PostgresBackend) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close はデータベース接続を閉じる。
func (p *PostgresBackend) Close() error {
	return p.db.Close()
}

const upsertCollectionSQL = `
	INSERT INTO collections (name, data, updated_at)
	VALUES ($1, $2::jsonb, now())
	ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`
