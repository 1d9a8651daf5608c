package auth

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost は既存データと同じハッシュコスト。
const DefaultBcryptCost = 12

// PasswordHasher はbcryptでパスワードをハッシュ化・照合する。
type PasswordHasher struct {
	cost int

	dummyOnce sync.Once
	dummy     []byte
}

// NewPasswordHasher は PasswordHasher を生成する。
// bcryptの許容範囲外のコストは DefaultBcryptCost に置き換える。
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash は平文パスワードのハッシュを返す。
func (h *PasswordHasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(b), nil
}

// Verify は平文パスワードがハッシュと一致するか判定する。
// ハッシュが壊れている場合も false を返す。
func (h *PasswordHasher) Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// VerifyMissing は該当ユーザーがいない場合に、同じコストのダミーハッシュと照合する。
// 所要時間は Verify と同程度で、常に false を返す。
func (h *PasswordHasher) VerifyMissing(plain string) bool {
	h.dummyOnce.Do(func() {
		b, err := bcrypt.GenerateFromPassword([]byte("capacita-missing-user"), h.cost)
		if err == nil {
			h.dummy = b
		}
	})
	if h.dummy != nil {
		_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plain))
	}
	return false
}
