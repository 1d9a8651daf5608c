package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// IntentPrefix は先行書き込みインテントのキー接頭辞。
const IntentPrefix = "_intent/"

var (
	// ErrUndeclaredCollection は Update/View で宣言していないコレクションへのアクセスを示す。
	ErrUndeclaredCollection = errors.New("storage: collection not declared in transaction")
	// ErrReadOnly は View 内での書き込みを示す。
	ErrReadOnly = errors.New("storage: write in read-only transaction")
)

// intent は複数コレクションへの書き込みを再適用するための記録。
type intent struct {
	ID        string                     `json:"id"`
	CreatedAt time.Time                  `json:"createdAt"`
	Writes    map[string]json.RawMessage `json:"writes"`
}

// collections はインテントが書き込むコレクション名をソートして返す。
func (in intent) collections() []string {
	names := make([]string, 0, len(in.Writes))
	for name := range in.Writes {
		names = append(names, name)
	}
	return sortedCopy(names)
}

// Store はコレクション単位のロックとコミットを管理する。
type Store struct {
	backend Backend
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// NewStore は Store を生成する。
func NewStore(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend: backend,
		logger:  logger,
		locks:   make(map[string]*sync.RWMutex),
	}
}

// Backend は内部のバックエンドを返す。
func (s *Store) Backend() Backend {
	return s.backend
}

// BackendName はヘルスチェックで表示するバックエンド名を返す。
func (s *Store) BackendName() string {
	return BackendName(s.backend)
}

// Ping はバックエンドの疎通を確認する。
func (s *Store) Ping(ctx context.Context) error {
	return Ping(ctx, s.backend)
}

// View は names のコレクションを共有ロックして fn を実行する。
// 未適用のインテントが names に書き込む場合は、先に再適用してから読む。
func (s *Store) View(ctx context.Context, names []string, fn func(tx *Tx) error) error {
	if s.tracksIntents() {
		settle, err := s.lockSettled(ctx, names)
		if err != nil {
			return err
		}
		settle()
	}

	unlock := s.lock(names, false)
	defer unlock()

	return fn(newTx(ctx, s.backend, names, false))
}

// Update は names のコレクションを排他ロックして fn を実行し、
// fn が成功した場合は変更されたコレクションをまとめてコミットする。
// fn がエラーを返した場合は何も書き込まない。
// names に書き込む未適用のインテントがあれば fn の前に再適用し、
// 再適用できない間はそのコレクションへの書き込みを受け付けない。
func (s *Store) Update(ctx context.Context, names []string, fn func(tx *Tx) error) error {
	unlock, err := s.lockSettled(ctx, names)
	if err != nil {
		return err
	}
	defer unlock()

	tx := newTx(ctx, s.backend, names, true)
	if err := fn(tx); err != nil {
		return err
	}
	return s.commit(ctx, tx.staged)
}

// Recover は残っているインテントを再適用して削除する。
// 適用したインテントの件数を返す。
func (s *Store) Recover(ctx context.Context) (int, error) {
	keys, err := s.backend.Keys(ctx, IntentPrefix)
	if err != nil {
		return 0, fmt.Errorf("list intents: %w", err)
	}

	applied := 0
	for _, key := range keys {
		ok, err := s.replay(ctx, key)
		if err != nil {
			return applied, err
		}
		if ok {
			applied++
		}
	}
	return applied, nil
}

func (s *Store) replay(ctx context.Context, key string) (bool, error) {
	raw, err := s.backend.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read intent %s: %w", key, err)
	}

	var in intent
	if err := json.Unmarshal(raw, &in); err != nil {
		s.logger.Error("discarding unreadable intent", "key", key, "error", err)
		return false, s.backend.Delete(ctx, key)
	}

	unlock := s.lock(in.collections(), true)
	defer unlock()

	// 書き込み中の Update が完了して削除済みなら何もしない
	if _, err := s.backend.Get(ctx, key); errors.Is(err, ErrNotFound) {
		return false, nil
	}

	if err := s.apply(ctx, key, in); err != nil {
		return false, err
	}
	return true, nil
}

// apply はインテントの全コレクションを書き込んでから削除する。
// 呼び出し側はインテントの全コレクションを排他ロックしていること。
func (s *Store) apply(ctx context.Context, key string, in intent) error {
	names := in.collections()
	for _, name := range names {
		if err := s.backend.Set(ctx, name, in.Writes[name]); err != nil {
			return fmt.Errorf("replay intent %s collection %s: %w", in.ID, name, err)
		}
	}
	if err := s.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete intent %s: %w", in.ID, err)
	}

	s.logger.Warn("replayed pending write intent",
		"intent_id", in.ID,
		"collections", names,
		"created_at", in.CreatedAt,
	)
	return nil
}

// tracksIntents はバックエンドがインテント経由でコミットするかを返す。
// SetMulti を持つバックエンドはインテントを書かない。
func (s *Store) tracksIntents() bool {
	_, batch := s.backend.(BatchSetter)
	return !batch
}

type pendingIntent struct {
	key string
	in  intent
}

// lockSettled は names を排他ロックし、names のいずれかに書き込む未適用のインテントを再適用する。
// インテントが names 以外のコレクションにも書き込む場合は、それらも含めてロックを取り直す。
// 返り値の解除関数は、エラーがない場合のみ呼び出し側が実行する。
func (s *Store) lockSettled(ctx context.Context, names []string) (func(), error) {
	held := sortedCopy(names)
	if !s.tracksIntents() {
		return s.lock(held, true), nil
	}

	for {
		unlock := s.lock(held, true)
		pending, err := s.pendingIntents(ctx, held)
		if err != nil {
			unlock()
			return nil, err
		}

		wider := held
		for _, p := range pending {
			wider = sortedCopy(append(wider, p.in.collections()...))
		}
		if len(wider) != len(held) {
			unlock()
			held = wider
			continue
		}

		for _, p := range pending {
			if err := s.apply(ctx, p.key, p.in); err != nil {
				unlock()
				return nil, fmt.Errorf("pending intent blocks write: %w", err)
			}
		}
		return unlock, nil
	}
}

// pendingIntents は names のいずれかに書き込む未適用のインテントを作成順に返す。
// 読めないインテントは削除する。
func (s *Store) pendingIntents(ctx context.Context, names []string) ([]pendingIntent, error) {
	keys, err := s.backend.Keys(ctx, IntentPrefix)
	if err != nil {
		return nil, fmt.Errorf("list intents: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}

	var pending []pendingIntent
	for _, key := range keys {
		raw, err := s.backend.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read intent %s: %w", key, err)
		}

		var in intent
		if err := json.Unmarshal(raw, &in); err != nil {
			s.logger.Error("discarding unreadable intent", "key", key, "error", err)
			if err := s.backend.Delete(ctx, key); err != nil {
				return nil, fmt.Errorf("delete intent %s: %w", key, err)
			}
			continue
		}
		for name := range in.Writes {
			if _, ok := want[name]; ok {
				pending = append(pending, pendingIntent{key: key, in: in})
				break
			}
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].in.CreatedAt.Before(pending[j].in.CreatedAt)
	})
	return pending, nil
}

func (s *Store) commit(ctx context.Context, staged map[string][]byte) error {
	switch len(staged) {
	case 0:
		return nil
	case 1:
		for name, data := range staged {
			if err := s.backend.Set(ctx, name, data); err != nil {
				return fmt.Errorf("write collection %s: %w", name, err)
			}
		}
		return nil
	}

	if bs, ok := s.backend.(BatchSetter); ok {
		if err := bs.SetMulti(ctx, staged); err != nil {
			return fmt.Errorf("write collections: %w", err)
		}
		return nil
	}

	in := intent{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Writes:    make(map[string]json.RawMessage, len(staged)),
	}
	for name, data := range staged {
		in.Writes[name] = data
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode intent: %w", err)
	}

	key := IntentPrefix + in.ID
	if err := s.backend.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("write intent: %w", err)
	}

	names := make([]string, 0, len(staged))
	for name := range staged {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.backend.Set(ctx, name, staged[name]); err != nil {
			s.logger.Error("partial write, intent kept for recovery",
				"intent_id", in.ID,
				"collection", name,
				"error", err,
			)
			return fmt.Errorf("write collection %s: %w", name, err)
		}
	}

	if err := s.backend.Delete(ctx, key); err != nil {
		// 全コレクションの書き込みは完了しているため、残ったインテントは次回の Recover で冪等に処理される
		s.logger.Warn("failed to delete write intent", "intent_id", in.ID, "error", err)
	}
	return nil
}

// lock は names をソート順にロックし、解除関数を返す。
// 常に同じ順序で取得するため、複数コレクションを扱う Update 同士でデッドロックしない。
func (s *Store) lock(names []string, exclusive bool) func() {
	ordered := sortedCopy(names)
	acquired := make([]*sync.RWMutex, 0, len(ordered))
	for _, name := range ordered {
		l := s.lockFor(name)
		if exclusive {
			l.Lock()
		} else {
			l.RLock()
		}
		acquired = append(acquired, l)
	}

	return func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			if exclusive {
				acquired[i].Unlock()
			} else {
				acquired[i].RUnlock()
			}
		}
	}
}

func (s *Store) lockFor(name string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[name]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[name] = l
	}
	return l
}

func sortedCopy(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Tx は View/Update の中で使用するコレクションアクセサ。
type Tx struct {
	ctx      context.Context
	backend  Backend
	declared map[string]struct{}
	writable bool
	staged   map[string][]byte
}

func newTx(ctx context.Context, backend Backend, names []string, writable bool) *Tx {
	declared := make(map[string]struct{}, len(names))
	for _, n := range names {
		declared[n] = struct{}{}
	}
	return &Tx{
		ctx:      ctx,
		backend:  backend,
		declared: declared,
		writable: writable,
		staged:   make(map[string][]byte),
	}
}

// Context はトランザクションのcontextを返す。
func (tx *Tx) Context() context.Context {
	return tx.ctx
}

// read はコレクションの生JSONを返す。存在しない場合は nil を返す。
func (tx *Tx) read(name string) ([]byte, error) {
	if _, ok := tx.declared[name]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUndeclaredCollection, name)
	}
	if data, ok := tx.staged[name]; ok {
		return data, nil
	}
	data, err := tx.backend.Get(tx.ctx, name)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (tx *Tx) write(name string, data []byte) error {
	if !tx.writable {
		return ErrReadOnly
	}
	if _, ok := tx.declared[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUndeclaredCollection, name)
	}
	tx.staged[name] = data
	return nil
}
