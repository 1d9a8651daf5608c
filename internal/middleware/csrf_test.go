package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/capacita/internal/model"
)

func csrfHandler(called *bool) http.Handler {
	return NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCSRFMiddleware_GETSetsCookie(t *testing.T) {
	called := false
	w := httptest.NewRecorder()
	csrfHandler(&called).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/profile", nil))

	if !called {
		t.Fatal("handler should have been called for GET request")
	}
	found := false
	for _, c := range w.Result().Cookies() {
		if c.Name == csrfCookieName && c.Value != "" && !c.HttpOnly {
			found = true
		}
	}
	if !found {
		t.Error("expected readable csrf_token cookie to be set")
	}
}

func TestCSRFMiddleware_StateChangingRequests(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
	}{
		{
			name:       "未認証のリクエストは対象外",
			setup:      func(r *http.Request) {},
			wantStatus: http.StatusOK,
		},
		{
			name:       "Bearer認証は対象外",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer tok") },
			wantStatus: http.StatusOK,
		},
		{
			name: "Cookie認証でトークン一致",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: AuthCookieName, Value: "tok"})
				r.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "abc"})
				r.Header.Set(csrfHeaderName, "abc")
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "Cookie認証でヘッダーなし",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: AuthCookieName, Value: "tok"})
				r.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "abc"})
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name: "Cookie認証でCSRF Cookieなし",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: AuthCookieName, Value: "tok"})
				r.Header.Set(csrfHeaderName, "abc")
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name: "Cookie認証でトークン不一致",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: AuthCookieName, Value: "tok"})
				r.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "abc"})
				r.Header.Set(csrfHeaderName, "xyz")
			},
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			req := httptest.NewRequest(http.MethodPut, "/api/profile", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			csrfHandler(&called).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusForbidden {
				if called {
					t.Error("handler should not be called")
				}
				if code := decodeErrorCode(t, w); code != model.ErrCodeCSRFInvalid {
					t.Errorf("code = %q, want %q", code, model.ErrCodeCSRFInvalid)
				}
			}
		})
	}
}

// TestCSRFTokenHandler_WithRouter はCSRFトークン取得エンドポイントがchi.Routerで動作することを検証する。
func TestCSRFTokenHandler_WithRouter(t *testing.T) {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/api/csrf-token", NewCSRFTokenHandler(CSRFConfig{}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Token == "" {
		t.Error("expected non-empty token")
	}

	// 既存のCookieがあればそのまま返す
	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	json.NewDecoder(w.Body).Decode(&body)
	if body.Token != "existing" {
		t.Errorf("token = %q, want %q", body.Token, "existing")
	}
}
