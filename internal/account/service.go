// Package account は求職者・企業ユーザーの登録、ログイン、プロフィール管理を提供する。
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/capacita/internal/auth"
	"github.com/hitoshi/capacita/internal/model"
	"github.com/hitoshi/capacita/internal/repository"
	"github.com/hitoshi/capacita/internal/storage"
	"github.com/hitoshi/capacita/internal/validation"
)

// MetricsRecorder はアカウント操作のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordRegistration(kind string)
	RecordLogin(success bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordRegistration(string) {}
func (nopRecorder) RecordLogin(bool)          {}

// Session は登録・ログイン成功時に返すユーザーとトークン。
type Session struct {
	User  model.User
	Token string
}

// Service はアカウント管理のサービス層。
type Service struct {
	store     *storage.Store
	validator *validation.Validator
	hasher    *auth.PasswordHasher
	tokens    *auth.TokenManager
	metrics   MetricsRecorder
	now       func() time.Time
}

// NewService は Service を生成する。metrics が nil の場合は記録しない。
func NewService(
	store *storage.Store,
	v *validation.Validator,
	hasher *auth.PasswordHasher,
	tokens *auth.TokenManager,
	metrics MetricsRecorder,
) *Service {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Service{
		store:     store,
		validator: v,
		hasher:    hasher,
		tokens:    tokens,
		metrics:   metrics,
		now:       time.Now,
	}
}

// RegisterStudent は求職者を登録する。
func (s *Service) RegisterStudent(ctx context.Context, req StudentRequest) (*Session, error) {
	req = req.normalize()
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	return s.register(ctx, req.user(), req.Senha)
}

// RegisterCompany は企業を登録する。
func (s *Service) RegisterCompany(ctx context.Context, req CompanyRequest) (*Session, error) {
	req = req.normalize()
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	return s.register(ctx, req.user(), req.Senha)
}

// Register は tipoUsuario に応じて求職者または企業を登録する。
// 種別と性別の指定が必須で、それ以外は種別ごとの登録と同じルールで検証する。
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	var details []model.FieldError
	if err := s.validator.Struct(req); err != nil {
		details = append(details, err.Details...)
	}

	var (
		u     model.User
		senha string
		kind  *model.APIError
	)
	switch req.TipoUsuario {
	case model.KindStudent:
		sreq := req.student().normalize()
		kind = s.validator.Struct(sreq)
		u, senha = sreq.user(), sreq.Senha
	case model.KindCompany:
		creq := req.company().normalize()
		kind = s.validator.Struct(creq)
		u, senha = creq.user(), creq.Senha
	}
	if kind != nil {
		details = mergeDetails(details, kind.Details)
	}
	if len(details) > 0 {
		return nil, model.NewValidationError("", details...)
	}

	return s.register(ctx, u, senha)
}

func (s *Service) register(ctx context.Context, u model.User, senha string) (*Session, error) {
	hash, err := s.hasher.Hash(senha)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	now := s.now().UTC()
	u.ID = repository.NewRecordID(now)
	u.Senha = hash
	u.Ativo = true
	u.DataRegistro = now
	u.UltimaAtualizacao = now

	mirror := repository.MirrorName(u.TipoUsuario)
	err = s.store.Update(ctx, []string{repository.UsersName, mirror}, func(tx *storage.Tx) error {
		users, err := repository.Users.Load(tx)
		if err != nil {
			return err
		}

		switch u.TipoUsuario {
		case model.KindStudent:
			students, err := repository.Students.Load(tx)
			if err != nil {
				return err
			}
			if repository.EmailTaken(users, students, nil, u.Email, "") {
				return model.NewDuplicateEmailError()
			}
			if err := repository.Students.Save(tx, append(students, model.StudentFromUser(u))); err != nil {
				return err
			}

		case model.KindCompany:
			companies, err := repository.Companies.Load(tx)
			if err != nil {
				return err
			}
			if repository.EmailTaken(users, nil, companies, u.Email, "") {
				return model.NewDuplicateEmailError()
			}
			if repository.CNPJTaken(companies, u.CNPJ, "") {
				return model.NewDuplicateCNPJError()
			}
			if err := repository.Companies.Save(tx, append(companies, model.CompanyFromUser(u))); err != nil {
				return err
			}
		}

		return repository.Users.Save(tx, append(users, u))
	})
	if err != nil {
		return nil, wrap("ユーザーの登録に失敗しました", err)
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, fmt.Errorf("トークンの発行に失敗しました: %w", err)
	}

	s.metrics.RecordRegistration(u.TipoUsuario)
	slog.Info("user registered",
		slog.String("user_id", u.ID),
		slog.String("tipo_usuario", u.TipoUsuario),
	)
	return &Session{User: u.Public(), Token: token}, nil
}

// Login はメールアドレスとパスワードで認証し、最終ログイン日時を記録する。
// 無効化されたユーザーはログインできない。
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	req.Email = model.NormalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	var found model.User
	err := s.store.View(ctx, []string{repository.UsersName}, func(tx *storage.Tx) error {
		users, err := repository.Users.Load(tx)
		if err != nil {
			return err
		}
		for _, u := range users {
			if u.Ativo && model.NormalizeEmail(u.Email) == req.Email {
				found = u
				return nil
			}
		}
		return model.NewInvalidCredentialsError()
	})
	if err != nil {
		if isAPIError(err) {
			s.hasher.VerifyMissing(req.Senha)
			s.metrics.RecordLogin(false)
		}
		return nil, wrap("ユーザーの取得に失敗しました", err)
	}

	if !s.hasher.Verify(req.Senha, found.Senha) {
		s.metrics.RecordLogin(false)
		return nil, model.NewInvalidCredentialsError()
	}

	now := s.now().UTC()
	err = s.store.Update(ctx, []string{repository.UsersName}, func(tx *storage.Tx) error {
		users, err := repository.Users.Load(tx)
		if err != nil {
			return err
		}
		i := repository.IndexUser(users, found.ID)
		if i < 0 || !users[i].Ativo {
			return model.NewInvalidCredentialsError()
		}
		users[i].UltimoLogin = &now
		found = users[i]
		return repository.Users.Save(tx, users)
	})
	if err != nil {
		return nil, wrap("最終ログイン日時の更新に失敗しました", err)
	}

	token, err := s.tokens.Issue(found)
	if err != nil {
		return nil, fmt.Errorf("トークンの発行に失敗しました: %w", err)
	}

	s.metrics.RecordLogin(true)
	slog.Info("user logged in", slog.String("user_id", found.ID))
	return &Session{User: found.Public(), Token: token}, nil
}

// Get は有効なユーザーをパスワードを除いて返す。
func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	var found *model.User
	err := s.store.View(ctx, []string{repository.UsersName}, func(tx *storage.Tx) error {
		users, err := repository.Users.Load(tx)
		if err != nil {
			return err
		}
		i := repository.IndexUser(users, id)
		if i < 0 || !users[i].Ativo {
			return model.NewUserNotFoundError()
		}
		u := users[i].Public()
		found = &u
		return nil
	})
	if err != nil {
		return nil, wrap("ユーザーの取得に失敗しました", err)
	}
	return found, nil
}

// ListStudents は求職者プロフィールの一覧を返す。
// 無効化されたユーザーのプロフィールは含めない。
func (s *Service) ListStudents(ctx context.Context) ([]model.Student, error) {
	var result []model.Student
	err := s.store.View(ctx, []string{repository.UsersName, repository.StudentsName}, func(tx *storage.Tx) error {
		inactive, err := inactiveUserIDs(tx)
		if err != nil {
			return err
		}
		students, err := repository.Students.Load(tx)
		if err != nil {
			return err
		}
		result = make([]model.Student, 0, len(students))
		for _, st := range students {
			if !inactive[st.ID] {
				result = append(result, st)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("求職者一覧の取得に失敗しました: %w", err)
	}
	return result, nil
}

// ListCompanies は企業プロフィールの一覧を返す。
// 無効化されたユーザーのプロフィールは含めない。
func (s *Service) ListCompanies(ctx context.Context) ([]model.Company, error) {
	var result []model.Company
	err := s.store.View(ctx, []string{repository.UsersName, repository.CompaniesName}, func(tx *storage.Tx) error {
		inactive, err := inactiveUserIDs(tx)
		if err != nil {
			return err
		}
		companies, err := repository.Companies.Load(tx)
		if err != nil {
			return err
		}
		result = make([]model.Company, 0, len(companies))
		for _, c := range companies {
			if !inactive[c.ID] {
				result = append(result, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("企業一覧の取得に失敗しました: %w", err)
	}
	return result, nil
}

// inactiveUserIDs は無効化されたユーザーのIDを返す。
// ユーザーレコードを持たない旧形式のプロフィールは有効とみなす。
func inactiveUserIDs(tx *storage.Tx) (map[string]bool, error) {
	users, err := repository.Users.Load(tx)
	if err != nil {
		return nil, err
	}
	inactive := make(map[string]bool)
	for _, u := range users {
		if !u.Ativo {
			inactive[u.ID] = true
		}
	}
	return inactive, nil
}

func mergeDetails(base, extra []model.FieldError) []model.FieldError {
	seen := make(map[string]bool, len(base))
	for _, d := range base {
		seen[d.Field] = true
	}
	for _, d := range extra {
		if !seen[d.Field] {
			base = append(base, d)
			seen[d.Field] = true
		}
	}
	return base
}

func isAPIError(err error) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr)
}

// wrap はドメインエラー（*model.APIError）はそのまま返し、それ以外は文脈を付けて包む。
func wrap(msg string, err error) error {
	if isAPIError(err) {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}
