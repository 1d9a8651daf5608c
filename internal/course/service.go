// Package course は講座一覧の管理（一覧・作成・更新・削除・並べ替え）を提供する。
package course

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/capacita/internal/model"
	"github.com/hitoshi/capacita/internal/repository"
	"github.com/hitoshi/capacita/internal/storage"
	"github.com/hitoshi/capacita/internal/validation"
)

// 並べ替え指定が既存の講座集合と一致しない場合のメッセージ
const msgIncompleteReorder = "Incomplete list of courses provided"

// Service は講座管理のサービス層。
type Service struct {
	store     *storage.Store
	validator *validation.Validator
	pages     []string
	now       func() time.Time
}

// NewService は Service を生成する。
// pages が空でない場合、講座の page はその中のいずれかでなければならない。
func NewService(store *storage.Store, v *validation.Validator, pages []string) *Service {
	return &Service{
		store:     store,
		validator: v,
		pages:     pages,
		now:       time.Now,
	}
}

// List は全講座を保存順で返す。
func (s *Service) List(ctx context.Context) ([]model.Course, error) {
	var courses []model.Course
	err := s.store.View(ctx, []string{repository.CoursesName}, func(tx *storage.Tx) error {
		var err error
		courses, err = repository.Courses.Load(tx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("講座一覧の取得に失敗しました: %w", err)
	}
	return courses, nil
}

// ListByPage は指定ページに掲載される講座を保存順で返す。
func (s *Service) ListByPage(ctx context.Context, page string) ([]model.Course, error) {
	courses, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	filtered := make([]model.Course, 0, len(courses))
	for _, c := range courses {
		if c.Page == page {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

// Create は講座を末尾に追加する。
func (s *Service) Create(ctx context.Context, in model.CourseInput) (*model.Course, error) {
	in = normalizeInput(in)
	if err := s.validate(in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	course := model.Course{
		ID:                repository.NewRecordID(now),
		Title:             in.Title,
		Category:          in.Category,
		Description:       in.Description,
		ImageURL:          in.ImageURL,
		CourseURL:         in.CourseURL,
		Page:              in.Page,
		DownloadURL:       in.DownloadURL,
		ButtonText:        in.ButtonText,
		CreatedAt:         now,
		UpdatedAt:         now,
		UltimaAtualizacao: now,
	}
	if course.ButtonText == "" {
		course.ButtonText = model.DefaultButtonText
	}

	err := s.store.Update(ctx, []string{repository.CoursesName}, func(tx *storage.Tx) error {
		courses, err := repository.Courses.Load(tx)
		if err != nil {
			return err
		}
		return repository.Courses.Save(tx, append(courses, course))
	})
	if err != nil {
		return nil, fmt.Errorf("講座の作成に失敗しました: %w", err)
	}

	slog.Info("course created", slog.String("course_id", course.ID), slog.String("page", course.Page))
	return &course, nil
}

// Update は講座を置き換える。作成日時は保持し、buttonText が空の場合は既存の値を残す。
func (s *Service) Update(ctx context.Context, id string, in model.CourseInput) (*model.Course, error) {
	in = normalizeInput(in)
	if err := s.validate(in); err != nil {
		return nil, err
	}

	var updated model.Course
	err := s.store.Update(ctx, []string{repository.CoursesName}, func(tx *storage.Tx) error {
		courses, err := repository.Courses.Load(tx)
		if err != nil {
			return err
		}
		i := repository.IndexCourse(courses, id)
		if i < 0 {
			return model.NewCourseNotFoundError()
		}

		now := s.now().UTC()
		c := courses[i]
		c.Title = in.Title
		c.Category = in.Category
		c.Description = in.Description
		c.ImageURL = in.ImageURL
		c.CourseURL = in.CourseURL
		c.Page = in.Page
		c.DownloadURL = in.DownloadURL
		if in.ButtonText != "" {
			c.ButtonText = in.ButtonText
		}
		if c.ButtonText == "" {
			c.ButtonText = model.DefaultButtonText
		}
		c.UpdatedAt = now
		c.UltimaAtualizacao = now

		courses[i] = c
		updated = c
		return repository.Courses.Save(tx, courses)
	})
	if err != nil {
		return nil, wrap("講座の更新に失敗しました", err)
	}

	slog.Info("course updated", slog.String("course_id", id))
	return &updated, nil
}

// Delete は講座を削除し、削除したレコードを返す。
func (s *Service) Delete(ctx context.Context, id string) (*model.Course, error) {
	var removed model.Course
	err := s.store.Update(ctx, []string{repository.CoursesName}, func(tx *storage.Tx) error {
		courses, err := repository.Courses.Load(tx)
		if err != nil {
			return err
		}
		i := repository.IndexCourse(courses, id)
		if i < 0 {
			return model.NewCourseNotFoundError()
		}
		removed = courses[i]
		courses = append(courses[:i], courses[i+1:]...)
		return repository.Courses.Save(tx, courses)
	})
	if err != nil {
		return nil, wrap("講座の削除に失敗しました", err)
	}

	slog.Info("course deleted", slog.String("course_id", id))
	return &removed, nil
}

// Reorder は orderedIDs の順に講座を並べ替える。
// orderedIDs は既存の全講座IDを重複なく1回ずつ含んでいなければならない。
func (s *Service) Reorder(ctx context.Context, orderedIDs []string) ([]model.Course, error) {
	var reordered []model.Course
	err := s.store.Update(ctx, []string{repository.CoursesName}, func(tx *storage.Tx) error {
		courses, err := repository.Courses.Load(tx)
		if err != nil {
			return err
		}
		if len(orderedIDs) != len(courses) {
			return model.NewInvalidReorderError(msgIncompleteReorder)
		}

		byID := make(map[string]model.Course, len(courses))
		for _, c := range courses {
			byID[c.ID] = c
		}

		reordered = make([]model.Course, 0, len(orderedIDs))
		for _, id := range orderedIDs {
			c, ok := byID[id]
			if !ok {
				return model.NewInvalidReorderError(msgIncompleteReorder)
			}
			delete(byID, id)
			reordered = append(reordered, c)
		}
		return repository.Courses.Save(tx, reordered)
	})
	if err != nil {
		return nil, wrap("講座の並べ替えに失敗しました", err)
	}

	slog.Info("courses reordered", slog.Int("count", len(reordered)))
	return reordered, nil
}

// AddMany は複数の講座をまとめて追加する。
// courseUrl が既存の講座または同じ入力内で重複するものは追加せず、件数だけ数える。
// 入力検証に失敗したものも追加しない。
func (s *Service) AddMany(ctx context.Context, inputs []model.CourseInput) ([]model.Course, int, error) {
	var added []model.Course
	skipped := 0

	err := s.store.Update(ctx, []string{repository.CoursesName}, func(tx *storage.Tx) error {
		courses, err := repository.Courses.Load(tx)
		if err != nil {
			return err
		}

		seen := make(map[string]bool, len(courses))
		for _, c := range courses {
			seen[c.CourseURL] = true
		}

		now := s.now().UTC()
		for _, in := range inputs {
			in = normalizeInput(in)
			if seen[in.CourseURL] || s.validate(in) != nil {
				skipped++
				continue
			}
			seen[in.CourseURL] = true

			c := model.Course{
				ID:                repository.NewRecordID(now),
				Title:             in.Title,
				Category:          in.Category,
				Description:       in.Description,
				ImageURL:          in.ImageURL,
				CourseURL:         in.CourseURL,
				Page:              in.Page,
				DownloadURL:       in.DownloadURL,
				ButtonText:        in.ButtonText,
				CreatedAt:         now,
				UpdatedAt:         now,
				UltimaAtualizacao: now,
			}
			if c.ButtonText == "" {
				c.ButtonText = model.DefaultButtonText
			}
			added = append(added, c)
		}

		if len(added) == 0 {
			return nil
		}
		return repository.Courses.Save(tx, append(courses, added...))
	})
	if err != nil {
		return nil, 0, fmt.Errorf("講座の一括追加に失敗しました: %w", err)
	}
	if added == nil {
		added = []model.Course{}
	}
	return added, skipped, nil
}

func (s *Service) validate(in model.CourseInput) error {
	if err := s.validator.Struct(in); err != nil {
		return err
	}
	return s.ValidatePage(in.Page)
}

// ValidatePage は page が掲載可能なページか検証する。ページ一覧が未設定の場合は常に成功する。
func (s *Service) ValidatePage(page string) error {
	if len(s.pages) == 0 {
		return nil
	}
	for _, p := range s.pages {
		if p == page {
			return nil
		}
	}
	return model.NewValidationError("", model.FieldError{
		Field:   "page",
		Message: fmt.Sprintf("page deve ser uma das páginas: %s", strings.Join(s.pages, ", ")),
	})
}

func normalizeInput(in model.CourseInput) model.CourseInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.CourseURL = strings.TrimSpace(in.CourseURL)
	in.Page = strings.TrimSpace(in.Page)
	in.DownloadURL = strings.TrimSpace(in.DownloadURL)
	in.ButtonText = strings.TrimSpace(in.ButtonText)
	return in
}

// wrap はドメインエラー（*model.APIError）はそのまま返し、それ以外は文脈を付けて包む。
func wrap(msg string, err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}
