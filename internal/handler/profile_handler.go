package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/capacita/internal/account"
	"github.com/hitoshi/capacita/internal/middleware"
)

const (
	msgProfileUpdated = "Perfil atualizado com sucesso"
	msgDeactivated    = "Conta desativada com sucesso"
)

// UpdateProfile はログインユーザー自身のプロフィールを更新する。
// PUT /api/profile
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.UserIDFromContext(r.Context())
	h.update(w, r, actorID, actorID)
}

// UpdateUser はパスで指定したユーザーのプロフィールを更新する。本人のみ可能。
// PUT /api/users/{id}, PATCH /api/users/{id}
func (h *AccountHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
}

func (h *AccountHandler) update(w http.ResponseWriter, r *http.Request, actorID, targetID string) {
	var req account.UpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.Update(r.Context(), actorID, targetID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": msgProfileUpdated,
		"user":    user,
	})
}

// DeactivateUser は本人のアカウントを無効化し、セッションCookieを削除する。
// DELETE /api/users/{id}
func (h *AccountHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	err := h.service.Deactivate(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	clearAuthCookie(w, h.cookie)
	writeJSON(w, http.StatusOK, map[string]string{"message": msgDeactivated})
}

// History は本人のプロフィール変更履歴を新しい順に返す。
// GET /api/users/{id}/history
func (h *AccountHandler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.History(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}
