package storage

import (
	"context"
	"errors"
	"time"
)

// Observer はバックエンド操作の所要時間と結果を受け取る。
// metrics.Collector が実装する。
type Observer interface {
	ObserveStorageOp(backend, op string, duration time.Duration, err error)
}

type instrumented struct {
	inner    Backend
	name     string
	observer Observer
}

type instrumentedBatch struct {
	*instrumented
	batch BatchSetter
}

// Instrument は各操作を observer に記録するバックエンドでラップする。
// inner が BatchSetter を実装する場合のみ、返り値も BatchSetter を実装する。
func Instrument(inner Backend, observer Observer) Backend {
	if observer == nil {
		return inner
	}
	base := &instrumented{inner: inner, name: BackendName(inner), observer: observer}
	if bs, ok := inner.(BatchSetter); ok {
		return &instrumentedBatch{instrumented: base, batch: bs}
	}
	return base
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	i.observer.ObserveStorageOp(i.name, op, time.Since(start), err)
}

func (i *instrumented) Name() string { return i.name }

func (i *instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	b, err := i.inner.Get(ctx, key)
	i.observe("get", start, err)
	return b, err
}

func (i *instrumented) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := i.inner.Set(ctx, key, value)
	i.observe("set", start, err)
	return err
}

func (i *instrumented) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := i.inner.Delete(ctx, key)
	i.observe("delete", start, err)
	return err
}

func (i *instrumented) Keys(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	keys, err := i.inner.Keys(ctx, prefix)
	i.observe("keys", start, err)
	return keys, err
}

func (i *instrumented) Ping(ctx context.Context) error {
	return Ping(ctx, i.inner)
}

func (i *instrumented) Close() error {
	return i.inner.Close()
}

func (i *instrumentedBatch) SetMulti(ctx context.Context, items map[string][]byte) error {
	start := time.Now()
	err := i.batch.SetMulti(ctx, items)
	i.observe("set_multi", start, err)
	return err
}
