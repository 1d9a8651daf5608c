package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/hitoshi/capacita/internal/account"
	"github.com/hitoshi/capacita/internal/auth"
	"github.com/hitoshi/capacita/internal/course"
	"github.com/hitoshi/capacita/internal/middleware"
	"github.com/hitoshi/capacita/internal/model"
	"github.com/hitoshi/capacita/internal/storage"
	"github.com/hitoshi/capacita/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

// 実際のサービスとメモリバックエンドでルーター全体を通すテスト

type apiClient struct {
	t      *testing.T
	router http.Handler
}

func newAPIClient(t *testing.T) *apiClient {
	t.Helper()

	store := storage.NewStore(storage.NewMemoryBackend(), nil)
	v := validation.New()
	tokens := auth.NewTokenManager(testSecret, 7*24*time.Hour)

	router := NewRouter(&RouterDeps{
		TokenVerifier:  tokens,
		Cookie:         CookieConfig{MaxAge: 7 * 24 * time.Hour},
		CourseService:  course.NewService(store, v, []string{"empreend.html", "primeiroemprego.html", "financ.html"}),
		AccountService: account.NewService(store, v, auth.NewPasswordHasher(bcrypt.MinCost), tokens, nil),
		Health:         store,
	})
	return &apiClient{t: t, router: router}
}

func (c *apiClient) do(method, path, token string, body any) *httptest.ResponseRecorder {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	return w
}

func (c *apiClient) expect(w *httptest.ResponseRecorder, status int, dst any) {
	c.t.Helper()
	if w.Code != status {
		c.t.Fatalf("status = %d, want %d (body %s)", w.Code, status, w.Body.String())
	}
	if dst != nil {
		if err := json.NewDecoder(w.Body).Decode(dst); err != nil {
			c.t.Fatalf("failed to decode body: %v", err)
		}
	}
}

func sampleCourse(title, page string) model.CourseInput {
	return model.CourseInput{
		Title:       title,
		Category:    "Empreendedorismo",
		Description: "Curso introdutório",
		ImageURL:    "https://img.example.com/" + page + ".png",
		CourseURL:   "https://cursos.example.com/" + url.PathEscape(title),
		Page:        page,
	}
}

func anaRegistration() map[string]any {
	return map[string]any{
		"nome":        "Ana Silva",
		"email":       "ana@x.com",
		"senha":       "Abcdef1",
		"telefone":    "(82) 99999-9999",
		"cidade":      "Maceió",
		"habilidades": "Excel, atendimento ao público",
	}
}

func TestIntegration_CreateThenListByPage(t *testing.T) {
	c := newAPIClient(t)

	var created model.Course
	c.expect(c.do(http.MethodPost, "/api/courses", "", sampleCourse("Excel", "empreend.html")), http.StatusCreated, &created)
	if created.ID == "" || created.ButtonText != model.DefaultButtonText {
		t.Errorf("created = %+v", created)
	}
	c.expect(c.do(http.MethodPost, "/api/courses", "", sampleCourse("Finanças", "financ.html")), http.StatusCreated, nil)

	var page []model.Course
	c.expect(c.do(http.MethodGet, "/api/courses/empreend.html", "", nil), http.StatusOK, &page)
	if len(page) != 1 || page[0].ID != created.ID {
		t.Errorf("page = %+v, want only %s", page, created.ID)
	}

	var all []model.Course
	c.expect(c.do(http.MethodGet, "/api/courses", "", nil), http.StatusOK, &all)
	if len(all) != 2 {
		t.Errorf("len(all) = %d, want 2", len(all))
	}
}

func TestIntegration_ReorderIsIdempotent(t *testing.T) {
	c := newAPIClient(t)

	var a, b, d model.Course
	c.expect(c.do(http.MethodPost, "/api/courses", "", sampleCourse("A", "empreend.html")), http.StatusCreated, &a)
	c.expect(c.do(http.MethodPost, "/api/courses", "", sampleCourse("B", "empreend.html")), http.StatusCreated, &b)
	c.expect(c.do(http.MethodPost, "/api/courses", "", sampleCourse("D", "financ.html")), http.StatusCreated, &d)

	order := map[string]any{"orderedIds": []string{d.ID, b.ID, a.ID}}
	var first, second []model.Course
	c.expect(c.do(http.MethodPut, "/api/courses/reorder", "", order), http.StatusOK, &first)
	c.expect(c.do(http.MethodPut, "/api/courses/reorder", "", order), http.StatusOK, &second)

	var listed []model.Course
	c.expect(c.do(http.MethodGet, "/api/courses", "", nil), http.StatusOK, &listed)
	for i, want := range []string{d.ID, b.ID, a.ID} {
		if first[i].ID != want || second[i].ID != want || listed[i].ID != want {
			t.Errorf("position %d: first=%s second=%s listed=%s, want %s",
				i, first[i].ID, second[i].ID, listed[i].ID, want)
		}
	}

	// 一部のIDだけでは並べ替えない
	partial := map[string]any{"orderedIds": []string{a.ID}}
	c.expect(c.do(http.MethodPut, "/api/courses/reorder", "", partial), http.StatusBadRequest, nil)
}

func TestIntegration_UpdateThenListByPage(t *testing.T) {
	c := newAPIClient(t)

	var created model.Course
	c.expect(c.do(http.MethodPost, "/api/courses", "", sampleCourse("Excel", "empreend.html")), http.StatusCreated, &created)

	moved := sampleCourse("Excel Avançado", "financ.html")
	var updated model.Course
	c.expect(c.do(http.MethodPut, "/api/courses/"+created.ID, "", moved), http.StatusOK, &updated)
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("createdAt changed: %v -> %v", created.CreatedAt, updated.CreatedAt)
	}

	var oldPage, newPage []model.Course
	c.expect(c.do(http.MethodGet, "/api/courses/empreend.html", "", nil), http.StatusOK, &oldPage)
	c.expect(c.do(http.MethodGet, "/api/courses/financ.html", "", nil), http.StatusOK, &newPage)
	if len(oldPage) != 0 {
		t.Errorf("old page still has %d courses", len(oldPage))
	}
	if len(newPage) != 1 || newPage[0].Title != "Excel Avançado" {
		t.Errorf("new page = %+v", newPage)
	}
}

func TestIntegration_DeleteUnknownCourse(t *testing.T) {
	c := newAPIClient(t)

	w := c.do(http.MethodDelete, "/api/courses/does-not-exist", "", nil)
	c.expect(w, http.StatusNotFound, nil)
}

func TestIntegration_RegisterAndLogin(t *testing.T) {
	c := newAPIClient(t)

	var reg sessionResponse
	w := c.do(http.MethodPost, "/api/students", "", anaRegistration())
	c.expect(w, http.StatusCreated, &reg)
	if reg.User.TipoUsuario != model.KindStudent || reg.User.Senha != "" {
		t.Errorf("registered user = %+v", reg.User)
	}
	if findCookie(w, middleware.AuthCookieName) == nil {
		t.Error("registration must set the auth cookie")
	}

	var login sessionResponse
	c.expect(c.do(http.MethodPost, "/api/login", "", map[string]string{"email": "ANA@x.com", "senha": "Abcdef1"}), http.StatusOK, &login)
	if login.User.ID != reg.User.ID || login.Token == "" {
		t.Errorf("login = %+v", login)
	}

	var me struct {
		User model.User `json:"user"`
	}
	c.expect(c.do(http.MethodGet, "/api/auth/me", login.Token, nil), http.StatusOK, &me)
	if me.User.Email != "ana@x.com" || me.User.UltimoLogin == nil {
		t.Errorf("me = %+v", me.User)
	}

	var students []model.Student
	c.expect(c.do(http.MethodGet, "/api/students", "", nil), http.StatusOK, &students)
	if len(students) != 1 {
		t.Errorf("len(students) = %d, want 1", len(students))
	}

	w = c.do(http.MethodPost, "/api/login", "", map[string]string{"email": "ana@x.com", "senha": "Errada1"})
	c.expect(w, http.StatusUnauthorized, nil)
}

func TestIntegration_DuplicateEmailAcrossKinds(t *testing.T) {
	c := newAPIClient(t)

	c.expect(c.do(http.MethodPost, "/api/students", "", anaRegistration()), http.StatusCreated, nil)

	company := map[string]any{
		"nomeEmpresa": "Padaria Central",
		"email":       "Ana@X.com",
		"senha":       "Padaria1",
		"cidade":      "Maceió",
	}
	w := c.do(http.MethodPost, "/api/companies", "", company)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	if body := decodeError(t, w); body.Code != model.ErrCodeDuplicateEmail {
		t.Errorf("code = %q", body.Code)
	}
}

func TestIntegration_ForeignUpdateIsRejected(t *testing.T) {
	c := newAPIClient(t)

	var ana sessionResponse
	c.expect(c.do(http.MethodPost, "/api/students", "", anaRegistration()), http.StatusCreated, &ana)

	bia := anaRegistration()
	bia["nome"] = "Bia Souza"
	bia["email"] = "bia@x.com"
	var other sessionResponse
	c.expect(c.do(http.MethodPost, "/api/students", "", bia), http.StatusCreated, &other)

	w := c.do(http.MethodPut, "/api/users/"+ana.User.ID, other.Token, map[string]string{"cidade": "Arapiraca"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusForbidden)
	}

	var me struct {
		User model.User `json:"user"`
	}
	c.expect(c.do(http.MethodGet, "/api/profile", ana.Token, nil), http.StatusOK, &me)
	if me.User.Cidade != "Maceió" {
		t.Errorf("cidade = %q, want unchanged", me.User.Cidade)
	}

	var history struct {
		History []model.ChangeEntry `json:"history"`
	}
	c.expect(c.do(http.MethodGet, "/api/users/"+ana.User.ID+"/history", ana.Token, nil), http.StatusOK, &history)
	if len(history.History) != 0 {
		t.Errorf("history = %+v, want empty", history.History)
	}
}

func TestIntegration_SelfUpdateRecordsHistory(t *testing.T) {
	c := newAPIClient(t)

	var ana sessionResponse
	c.expect(c.do(http.MethodPost, "/api/students", "", anaRegistration()), http.StatusCreated, &ana)

	var updated struct {
		User model.User `json:"user"`
	}
	c.expect(c.do(http.MethodPatch, "/api/users/"+ana.User.ID, ana.Token, map[string]string{"cidade": "Arapiraca"}), http.StatusOK, &updated)
	if updated.User.Cidade != "Arapiraca" {
		t.Errorf("cidade = %q", updated.User.Cidade)
	}

	var history struct {
		History []model.ChangeEntry `json:"history"`
	}
	c.expect(c.do(http.MethodGet, "/api/users/"+ana.User.ID+"/history", ana.Token, nil), http.StatusOK, &history)
	if len(history.History) != 1 {
		t.Fatalf("len(history) = %d, want 1", len(history.History))
	}
	if ch, ok := history.History[0].Changes["cidade"]; !ok || ch.New != "Arapiraca" {
		t.Errorf("changes = %+v", history.History[0].Changes)
	}
}

func TestIntegration_Health(t *testing.T) {
	c := newAPIClient(t)

	var body healthResponse
	c.expect(c.do(http.MethodGet, "/api/health", "", nil), http.StatusOK, &body)
	if body.Status != "OK" || body.Storage != "memory" {
		t.Errorf("body = %+v", body)
	}
}
