package storage

import (
	"context"
	"os"
	"testing"

	"github.com/hitoshi/capacita/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestPostgresBackend は TEST_DATABASE_URL が設定されている場合のみ
// マイグレーション済みのバックエンドを返す。
func newTestPostgresBackend(t *testing.T) *PostgresBackend {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}

	db, err := database.Open(url, database.PoolConfig{})
	require.NoError(t, err)
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}

	_, err = database.RunMigrations(url)
	require.NoError(t, err)
	_, err = db.Exec(`DELETE FROM collections`)
	require.NoError(t, err)

	b := NewPostgresBackend(db)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestPostgresBackend_RoundTrip(t *testing.T) {
	ctx := context.Background()
	b := newTestPostgresBackend(t)

	_, err := b.Get(ctx, "courses")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.Set(ctx, "courses", []byte(`[{"id":"c1"}]`)))
	require.NoError(t, b.Set(ctx, "courses", []byte(`[{"id":"c2"}]`)))

	got, err := b.Get(ctx, "courses")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"c2"}]`, string(got))

	require.NoError(t, b.Delete(ctx, "courses"))
	_, err = b.Get(ctx, "courses")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresBackend_SetMultiAndKeys(t *testing.T) {
	ctx := context.Background()
	b := newTestPostgresBackend(t)

	err := b.SetMulti(ctx, map[string][]byte{
		"users":              []byte(`[]`),
		"students":           []byte(`[]`),
		IntentPrefix + "abc": []byte(`{}`),
	})
	require.NoError(t, err)

	// "_" を含む接頭辞でも前方一致で絞り込まれる
	keys, err := b.Keys(ctx, IntentPrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{IntentPrefix + "abc"}, keys)
}

func TestPostgresBackend_InterfaceCompliance(t *testing.T) {
	var _ Backend = (*PostgresBackend)(nil)
	var _ BatchSetter = (*PostgresBackend)(nil)
	var _ Pinger = (*PostgresBackend)(nil)
}
