// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/capacita/internal/auth"
	"github.com/hitoshi/capacita/internal/model"
)

// AuthCookieName はセッショントークンを保持するCookieの名前。
const AuthCookieName = "authToken"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// claimsContextKey はリクエストコンテキストに検証済みクレームを格納するためのキー。
var claimsContextKey = contextKey("claims")

// TokenVerifier はトークン検証に必要なインターフェース。
// auth.TokenManager が実装する。
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// NewAuthMiddleware はCookieまたはAuthorizationヘッダーからトークンを読み取り、
// 検証したクレームをリクエストコンテキストに注入するミドルウェアを返す。
// トークンがない場合は401、どのトークンも検証に失敗した場合は403を返す。
func NewAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokens := TokensFromRequest(r)
			if len(tokens) == 0 {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewTokenRequiredError())
				return
			}

			var claims *auth.Claims
			for _, token := range tokens {
				c, err := verifier.Verify(token)
				if err != nil {
					slog.Debug("token verification failed",
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)
					continue
				}
				claims = c
				break
			}
			if claims == nil {
				WriteErrorResponse(w, http.StatusForbidden, model.NewTokenInvalidError())
				return
			}

			setRequestUser(r.Context(), claims.UserID())
			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// TokensFromRequest はリクエストに含まれるトークンを検証する順に返す。
// authToken Cookie が先、Bearer ヘッダーが後。期限切れのCookieが残っていても
// ヘッダーのトークンで認証できるよう、両方を返す。
func TokensFromRequest(r *http.Request) []string {
	var tokens []string
	if c, err := r.Cookie(AuthCookieName); err == nil && c.Value != "" {
		tokens = append(tokens, c.Value)
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		if t := strings.TrimSpace(h[7:]); t != "" && (len(tokens) == 0 || tokens[0] != t) {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// ClaimsFromContext はリクエストコンテキストから検証済みクレームを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*auth.Claims)
	return claims, ok && claims != nil
}

// UserIDFromContext はリクエストコンテキストから認証済みユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) string {
	if claims, ok := ClaimsFromContext(ctx); ok {
		return claims.UserID()
	}
	return ""
}

// ContextWithClaims はコンテキストにクレームを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}
