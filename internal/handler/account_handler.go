package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/capacita/internal/account"
	"github.com/hitoshi/capacita/internal/middleware"
	"github.com/hitoshi/capacita/internal/model"
)

const (
	msgRegistered = "Usuário registrado com sucesso"
	msgLoggedIn   = "Login realizado com sucesso"
	msgLoggedOut  = "Logout realizado com sucesso"
)

// AccountServiceInterface はアカウント関連ハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	RegisterStudent(ctx context.Context, req account.StudentRequest) (*account.Session, error)
	RegisterCompany(ctx context.Context, req account.CompanyRequest) (*account.Session, error)
	Register(ctx context.Context, req account.RegisterRequest) (*account.Session, error)
	Login(ctx context.Context, req account.LoginRequest) (*account.Session, error)
	Get(ctx context.Context, id string) (*model.User, error)
	ListStudents(ctx context.Context) ([]model.Student, error)
	ListCompanies(ctx context.Context) ([]model.Company, error)
	Update(ctx context.Context, actorID, targetID string, req account.UpdateRequest) (*model.User, error)
	Deactivate(ctx context.Context, actorID, targetID string) error
	History(ctx context.Context, actorID, targetID string) ([]model.ChangeEntry, error)
}

// AccountHandler は登録・ログイン・セッション確認のHTTPハンドラー。
type AccountHandler struct {
	service AccountServiceInterface
	cookie  CookieConfig
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface, cookie CookieConfig) *AccountHandler {
	return &AccountHandler{
		service: service,
		cookie:  cookie,
	}
}

// sessionResponse は登録・ログイン成功時のレスポンス。
type sessionResponse struct {
	Message string     `json:"message"`
	User    model.User `json:"user"`
	Token   string     `json:"token"`
}

func (h *AccountHandler) writeSession(w http.ResponseWriter, status int, message string, s *account.Session) {
	setAuthCookie(w, h.cookie, s.Token)
	writeJSON(w, status, sessionResponse{Message: message, User: s.User, Token: s.Token})
}

// RegisterStudent は求職者を登録する。
// POST /api/students
func (h *AccountHandler) RegisterStudent(w http.ResponseWriter, r *http.Request) {
	var req account.StudentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s, err := h.service.RegisterStudent(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	h.writeSession(w, http.StatusCreated, msgRegistered, s)
}

// ListStudents は有効な求職者の一覧を返す。
// GET /api/students
func (h *AccountHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.service.ListStudents(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, students)
}

// RegisterCompany は企業を登録する。
// POST /api/companies
func (h *AccountHandler) RegisterCompany(w http.ResponseWriter, r *http.Request) {
	var req account.CompanyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s, err := h.service.RegisterCompany(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	h.writeSession(w, http.StatusCreated, msgRegistered, s)
}

// ListCompanies は有効な企業の一覧を返す。
// GET /api/companies
func (h *AccountHandler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.service.ListCompanies(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, companies)
}

// Register は種別を指定してユーザーを登録する。
// POST /api/auth/register
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req account.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s, err := h.service.Register(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	h.writeSession(w, http.StatusCreated, msgRegistered, s)
}

// Login はメールアドレスとパスワードで認証し、トークンを発行する。
// POST /api/login, POST /api/auth/login
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req account.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s, err := h.service.Login(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	h.writeSession(w, http.StatusOK, msgLoggedIn, s)
}

// Logout はセッションCookieを削除する。
// トークンはサーバー側で失効させないため、発行済みのトークンは期限まで有効。
// POST /api/logout, POST /api/auth/logout
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	clearAuthCookie(w, h.cookie)
	writeJSON(w, http.StatusOK, map[string]string{"message": msgLoggedOut})
}

// Me は現在のログインユーザー情報を返す。
// GET /api/auth/me, GET /api/profile
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Get(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// Verify はトークンが有効であることとそのクレームを返す。
// GET /api/auth/verify
func (h *AccountHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewTokenRequiredError())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid": true,
		"user":  claims.Identity(),
	})
}
