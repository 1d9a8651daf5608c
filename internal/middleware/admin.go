package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/hitoshi/capacita/internal/model"
)

const adminKeyHeader = "X-Admin-Key"

// NewAdminKeyMiddleware は講座の管理操作を X-Admin-Key ヘッダーで保護するミドルウェアを返す。
// key が空の場合は検証しない。
func NewAdminKeyMiddleware(key string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(adminKeyHeader)
			if got == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewAdminKeyRequiredError())
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				slog.Warn("admin key mismatch",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewAdminKeyInvalidError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
