package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	fileExt          = ".json"
	fileKeySeparator = "__"
)

// FileBackend はキーごとに1つのJSONファイルを保存するバックエンド。
// ファイル内容は {"<key>": <value>} 形式で、既存のデータファイル
// （例: courses.json の {"courses": [...]}）をそのまま読み書きできる。
// 書き込みは一時ファイルへの書き出しと rename で行い、途中状態のファイルを残さない。
type FileBackend struct {
	dir string
}

// NewFileBackend はディレクトリを作成して FileBackend を返す。
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		return nil, errors.New("storage: data directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", dir, err)
	}
	return &FileBackend{dir: dir}, nil
}

// Name はバックエンド名を返す。
func (f *FileBackend) Name() string { return "file" }

// Dir はデータディレクトリを返す。
func (f *FileBackend) Dir() string { return f.dir }

// Get はファイルを読み込み、ラッパーオブジェクトから値を取り出す。
// ラップされていない配列のみのファイルもそのまま受け付ける。
func (f *FileBackend) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrNotFound
	}
	if trimmed[0] != '{' {
		return trimmed, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	value, ok := wrapper[key]
	if !ok {
		return nil, ErrNotFound
	}
	return value, nil
}

// Set は値をラップしてファイルへアトミックに書き込む。
func (f *FileBackend) Set(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("encode %s: value is not valid JSON", key)
	}
	wrapped, err := json.MarshalIndent(map[string]json.RawMessage{key: value}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return writeFileAtomic(f.path(key), wrapped)
}

// Delete はファイルを削除する。
func (f *FileBackend) Delete(_ context.Context, key string) error {
	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Keys はディレクトリ内のファイル名からキーを復元し、prefix で絞り込む。
func (f *FileBackend) Keys(_ context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", f.dir, err)
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) || strings.HasPrefix(name, ".") {
			continue
		}
		key := strings.ReplaceAll(strings.TrimSuffix(name, fileExt), fileKeySeparator, "/")
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close は何もしない。
func (f *FileBackend) Close() error { return nil }

// Ping はデータディレクトリにアクセスできるか確認する。
func (f *FileBackend) Ping(_ context.Context) error {
	if _, err := os.Stat(f.dir); err != nil {
		return fmt.Errorf("stat %s: %w", f.dir, err)
	}
	return nil
}

func (f *FileBackend) path(key string) string {
	return filepath.Join(f.dir, strings.ReplaceAll(key, "/", fileKeySeparator)+fileExt)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
