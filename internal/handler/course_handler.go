package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/capacita/internal/importer"
	"github.com/hitoshi/capacita/internal/middleware"
	"github.com/hitoshi/capacita/internal/model"
)

// CourseServiceInterface は講座ハンドラーが必要とするサービスインターフェース。
type CourseServiceInterface interface {
	List(ctx context.Context) ([]model.Course, error)
	ListByPage(ctx context.Context, page string) ([]model.Course, error)
	Create(ctx context.Context, in model.CourseInput) (*model.Course, error)
	Update(ctx context.Context, id string, in model.CourseInput) (*model.Course, error)
	Delete(ctx context.Context, id string) (*model.Course, error)
	Reorder(ctx context.Context, orderedIDs []string) ([]model.Course, error)
}

// CourseImporter はフィードからの講座インポートのインターフェース。
type CourseImporter interface {
	Import(ctx context.Context, req importer.Request) (*importer.Result, error)
}

// CourseHandler は講座管理のHTTPハンドラー。
type CourseHandler struct {
	service  CourseServiceInterface
	importer CourseImporter
}

// NewCourseHandler はCourseHandlerを生成する。
func NewCourseHandler(service CourseServiceInterface, imp CourseImporter) *CourseHandler {
	return &CourseHandler{
		service:  service,
		importer: imp,
	}
}

// reorderRequest は並べ替えリクエストのボディ。
// 配列以外が送られた場合を区別するため、生のJSONで受け取る。
type reorderRequest struct {
	OrderedIDs json.RawMessage `json:"orderedIds"`
}

// List は全講座を返す。
// GET /api/courses
func (h *CourseHandler) List(w http.ResponseWriter, r *http.Request) {
	courses, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

// ListByPage は指定ページの講座を返す。
// GET /api/courses/{page}
func (h *CourseHandler) ListByPage(w http.ResponseWriter, r *http.Request) {
	courses, err := h.service.ListByPage(r.Context(), chi.URLParam(r, "page"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

// Create は講座を作成する。
// POST /api/courses
func (h *CourseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in model.CourseInput
	if !decodeJSON(w, r, &in) {
		return
	}

	course, err := h.service.Create(r.Context(), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, course)
}

// Update は講座を更新する。
// PUT /api/courses/{id}
func (h *CourseHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in model.CourseInput
	if !decodeJSON(w, r, &in) {
		return
	}

	course, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

// Delete は講座を削除し、削除した講座を返す。
// DELETE /api/courses/{id}
func (h *CourseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	course, err := h.service.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Course deleted successfully",
		"course":  course,
	})
}

// Reorder は講座を指定されたID順に並べ替える。
// PUT /api/courses/reorder
func (h *CourseHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var ids []string
	if len(req.OrderedIDs) == 0 || string(req.OrderedIDs) == "null" || json.Unmarshal(req.OrderedIDs, &ids) != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidReorderError("Ordered IDs must be an array"))
		return
	}

	courses, err := h.service.Reorder(r.Context(), ids)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

// Import はRSS/Atomフィードから講座を一括登録する。
// POST /api/courses/import
func (h *CourseHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req importer.Request
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.importer.Import(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
