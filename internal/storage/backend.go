// Package storage はコレクション単位のJSONブロブ永続化を提供する。
//
// 各コレクション（courses, students, companies, users, change_history）は
// 1つのキーに配列全体のJSONとして保存される。保存先は Backend として抽象化され、
// ローカルファイル、メモリ、Redis、PostgreSQL、S3互換オブジェクトストレージを切り替えられる。
//
// Store はコレクションごとのミューテックスで read-modify-write を直列化し、
// 複数コレクションへの書き込みを1単位としてコミットする。
// SetMulti を持つバックエンドではアトミックに、持たないバックエンドでは
// 先行書き込みするインテントレコードを使って再起動後に再適用できる形で書き込む。
package storage

import (
	"context"
	"errors"
)

// ErrNotFound はキーが存在しないことを示す。
var ErrNotFound = errors.New("storage: key not found")

// Backend はキーとバイト列を対応付ける最小限の永続化インターフェース。
type Backend interface {
	// Get はキーに対応する値を返す。存在しない場合は ErrNotFound を返す。
	Get(ctx context.Context, key string) ([]byte, error)
	// Set はキーに値を保存する。既存の値は上書きされる。
	Set(ctx context.Context, key string, value []byte) error
	// Delete はキーを削除する。存在しないキーの削除はエラーにしない。
	Delete(ctx context.Context, key string) error
	// Keys は prefix で始まるキーを返す。
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Close はバックエンドが保持するリソースを解放する。
	Close() error
}

// BatchSetter は複数キーをアトミックに書き込めるバックエンドが実装する。
type BatchSetter interface {
	SetMulti(ctx context.Context, items map[string][]byte) error
}

// Pinger は疎通確認が可能なバックエンドが実装する。
type Pinger interface {
	Ping(ctx context.Context) error
}

// Named はメトリクスやヘルスチェックで使うバックエンド名を返す。
type Named interface {
	Name() string
}

// BackendName はバックエンド名を返す。Named を実装しない場合は "unknown"。
func BackendName(b Backend) string {
	if n, ok := b.(Named); ok {
		return n.Name()
	}
	return "unknown"
}

// Ping はバックエンドが Pinger を実装していれば疎通確認を行う。
func Ping(ctx context.Context, b Backend) error {
	if p, ok := b.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
