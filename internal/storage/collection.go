package storage

import (
	"encoding/json"
	"fmt"
)

// Collection は T の配列として保存されるコレクションへの型付きアクセサ。
type Collection[T any] struct {
	name string
}

// NewCollection は name をキーとするコレクションを返す。
func NewCollection[T any](name string) Collection[T] {
	return Collection[T]{name: name}
}

// Name はコレクション名（バックエンドのキー）を返す。
func (c Collection[T]) Name() string {
	return c.name
}

// Load はコレクション全体を読み込む。未保存の場合は空スライスを返す。
func (c Collection[T]) Load(tx *Tx) ([]T, error) {
	data, err := tx.read(c.name)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", c.name, err)
	}
	if len(data) == 0 {
		return []T{}, nil
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.name, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// Save はコレクション全体をステージする。実際の書き込みは Update の終了時に行われる。
func (c Collection[T]) Save(tx *Tx, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.name, err)
	}
	if err := tx.write(c.name, data); err != nil {
		return fmt.Errorf("save %s: %w", c.name, err)
	}
	return nil
}
