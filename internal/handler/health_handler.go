package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthChecker はストレージの疎通確認に必要なインターフェース。
// storage.Store が実装する。
type HealthChecker interface {
	BackendName() string
	Ping(ctx context.Context) error
}

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Storage   string    `json:"storage"`
}

// NewHealthHandler はヘルスチェックのハンドラーを返す。
// ストレージへの疎通に失敗した場合は503で DEGRADED を返す。
// GET /api/health
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{
			Status:    "OK",
			Timestamp: time.Now().UTC(),
			Storage:   checker.BackendName(),
		}
		status := http.StatusOK
		if err := checker.Ping(ctx); err != nil {
			slog.Warn("storage health check failed",
				slog.String("backend", resp.Storage),
				slog.String("error", err.Error()),
			)
			resp.Status = "DEGRADED"
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}
