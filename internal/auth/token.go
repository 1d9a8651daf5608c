// Package auth はJWTの発行・検証とパスワードハッシュを提供する。
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/capacita/internal/model"
)

// ErrInvalidToken はトークンの形式不正、署名不一致、期限切れを表す。
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims はセッショントークンに含まれるクレーム。
// 旧形式のトークンはユーザーIDを userId に持つため、そちらも受け付ける。
type Claims struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	TipoUsuario string `json:"tipoUsuario"`
	Nome        string `json:"nome"`
	LegacyID    string `json:"userId,omitempty"`
	jwt.RegisteredClaims
}

// UserID はクレームからユーザーIDを返す。
func (c *Claims) UserID() string {
	if c.ID != "" {
		return c.ID
	}
	if c.LegacyID != "" {
		return c.LegacyID
	}
	return c.Subject
}

// Identity は /api/auth/verify で返すクレームの公開部分。
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	TipoUsuario string `json:"tipoUsuario"`
	Nome        string `json:"nome"`
}

// Identity はクレームから公開用の識別情報を返す。
func (c *Claims) Identity() Identity {
	return Identity{
		ID:          c.UserID(),
		Email:       c.Email,
		TipoUsuario: c.TipoUsuario,
		Nome:        c.Nome,
	}
}

// TokenManager はHS256で署名したセッショントークンを発行・検証する。
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager は TokenManager を生成する。
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL はトークンの有効期間を返す。
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue はユーザーのトークンを発行する。
func (m *TokenManager) Issue(u model.User) (string, error) {
	now := m.now()
	claims := Claims{
		ID:          u.ID,
		Email:       u.Email,
		TipoUsuario: u.TipoUsuario,
		Nome:        u.DisplayName(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Verify はトークンを検証してクレームを返す。
// 失敗した場合は ErrInvalidToken をラップしたエラーを返す。
func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID() == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
