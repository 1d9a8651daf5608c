package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/capacita/internal/model"
)

func TestAdminKeyMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		header     string
		wantStatus int
		wantCode   string
	}{
		{name: "キー未設定なら検証しない", key: "", header: "", wantStatus: http.StatusOK},
		{name: "正しいキー", key: "s3cret", header: "s3cret", wantStatus: http.StatusOK},
		{name: "キーなし", key: "s3cret", header: "", wantStatus: http.StatusUnauthorized, wantCode: model.ErrCodeAdminKeyRequired},
		{name: "キー不一致", key: "s3cret", header: "guess", wantStatus: http.StatusForbidden, wantCode: model.ErrCodeAdminKeyInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAdminKeyMiddleware(tt.key)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/courses", nil)
			if tt.header != "" {
				req.Header.Set("X-Admin-Key", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantCode != "" {
				if code := decodeErrorCode(t, w); code != tt.wantCode {
					t.Errorf("code = %q, want %q", code, tt.wantCode)
				}
			}
		})
	}
}
