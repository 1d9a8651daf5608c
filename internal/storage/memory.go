package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryBackend はプロセス内メモリに値を保持するバックエンド。
// テストと開発用途で使用し、再起動するとデータは失われる。
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryBackend は空の MemoryBackend を生成する。
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data: make(map[string][]byte),
	}
}

// Name はバックエンド名を返す。
func (m *MemoryBackend) Name() string { return "memory" }

// Get はキーに対応する値のコピーを返す。
func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

// Set は値のコピーを保存する。
func (m *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = cloneBytes(value)
	return nil
}

// SetMulti は複数キーを1回のロックで書き込む。
func (m *MemoryBackend) SetMulti(_ context.Context, items map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range items {
		m.data[k] = cloneBytes(v)
	}
	return nil
}

// Delete はキーを削除する。
func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

// Keys は prefix で始まるキーをソートして返す。
func (m *MemoryBackend) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close は何もしない。
func (m *MemoryBackend) Close() error { return nil }

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
