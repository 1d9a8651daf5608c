package account

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/hitoshi/capacita/internal/model"
	"github.com/hitoshi/capacita/internal/repository"
	"github.com/hitoshi/capacita/internal/storage"
)

// Update は本人のプロフィールを部分更新する。
// ユーザー、種別ごとのプロフィール、変更履歴を1回のコミットで書き込む。
// actorID と targetID が異なる場合はレコードを参照せずに拒否する。
func (s *Service) Update(ctx context.Context, actorID, targetID string, req UpdateRequest) (*model.User, error) {
	if actorID == "" || actorID != targetID {
		return nil, model.NewAccessDeniedError()
	}

	req = req.normalize()
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	var newHash string
	if req.Senha != nil {
		hash, err := s.hasher.Hash(*req.Senha)
		if err != nil {
			return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
		}
		newHash = hash
	}

	tipo, err := s.kindOf(ctx, targetID)
	if err != nil {
		return nil, err
	}

	names := []string{repository.UsersName, repository.HistoryName}
	if mirror := repository.MirrorName(tipo); mirror != "" {
		names = append(names, mirror)
	}

	var updated model.User
	err = s.store.Update(ctx, names, func(tx *storage.Tx) error {
		users, err := repository.Users.Load(tx)
		if err != nil {
			return err
		}
		i := repository.IndexUser(users, targetID)
		if i < 0 || !users[i].Ativo {
			return model.NewUserNotFoundError()
		}
		before := users[i]

		var students []model.Student
		var companies []model.Company
		switch before.TipoUsuario {
		case model.KindStudent:
			if students, err = repository.Students.Load(tx); err != nil {
				return err
			}
		case model.KindCompany:
			if companies, err = repository.Companies.Load(tx); err != nil {
				return err
			}
		}

		if req.Email != nil && repository.EmailTaken(users, students, companies, *req.Email, targetID) {
			return model.NewDuplicateEmailError()
		}
		if req.CNPJ != nil && repository.CNPJTaken(companies, *req.CNPJ, targetID) {
			return model.NewDuplicateCNPJError()
		}

		after, changes := applyUpdate(before, req, newHash)
		if len(changes) == 0 {
			updated = before
			return nil
		}

		now := s.now().UTC()
		after.UltimaAtualizacao = now
		users[i] = after
		updated = after
		if err := repository.Users.Save(tx, users); err != nil {
			return err
		}
		if err := saveMirror(tx, after, students, companies); err != nil {
			return err
		}
		return appendHistory(tx, model.ChangeEntry{
			ID:          uuid.NewString(),
			UserID:      after.ID,
			TipoUsuario: after.TipoUsuario,
			Changes:     changes,
			Timestamp:   now,
		})
	})
	if err != nil {
		return nil, wrap("プロフィールの更新に失敗しました", err)
	}

	slog.Info("profile updated", slog.String("user_id", targetID))
	pub := updated.Public()
	return &pub, nil
}

// Deactivate は本人のアカウントを無効化する。レコードは削除しない。
func (s *Service) Deactivate(ctx context.Context, actorID, targetID string) error {
	if actorID == "" || actorID != targetID {
		return model.NewAccessDeniedError()
	}

	tipo, err := s.kindOf(ctx, targetID)
	if err != nil {
		return err
	}

	names := []string{repository.UsersName, repository.HistoryName}
	if mirror := repository.MirrorName(tipo); mirror != "" {
		names = append(names, mirror)
	}

	err = s.store.Update(ctx, names, func(tx *storage.Tx) error {
		users, err := repository.Users.Load(tx)
		if err != nil {
			return err
		}
		i := repository.IndexUser(users, targetID)
		if i < 0 || !users[i].Ativo {
			return model.NewUserNotFoundError()
		}

		now := s.now().UTC()
		users[i].Ativo = false
		users[i].UltimaAtualizacao = now
		u := users[i]
		if err := repository.Users.Save(tx, users); err != nil {
			return err
		}

		var students []model.Student
		var companies []model.Company
		switch u.TipoUsuario {
		case model.KindStudent:
			if students, err = repository.Students.Load(tx); err != nil {
				return err
			}
		case model.KindCompany:
			if companies, err = repository.Companies.Load(tx); err != nil {
				return err
			}
		}
		if err := saveMirror(tx, u, students, companies); err != nil {
			return err
		}

		return appendHistory(tx, model.ChangeEntry{
			ID:          uuid.NewString(),
			UserID:      u.ID,
			TipoUsuario: u.TipoUsuario,
			Changes:     map[string]model.FieldChange{"ativo": {Old: true, New: false}},
			Timestamp:   now,
		})
	})
	if err != nil {
		return wrap("アカウントの無効化に失敗しました", err)
	}

	slog.Info("account deactivated", slog.String("user_id", targetID))
	return nil
}

// History は本人のプロフィール変更履歴を新しい順に返す。
func (s *Service) History(ctx context.Context, actorID, targetID string) ([]model.ChangeEntry, error) {
	if actorID == "" || actorID != targetID {
		return nil, model.NewAccessDeniedError()
	}

	var entries []model.ChangeEntry
	err := s.store.View(ctx, []string{repository.HistoryName}, func(tx *storage.Tx) error {
		all, err := repository.History.Load(tx)
		if err != nil {
			return err
		}
		entries = make([]model.ChangeEntry, 0)
		for _, e := range all {
			if e.UserID == targetID {
				entries = append(entries, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("変更履歴の取得に失敗しました: %w", err)
	}

	// 保存順は古い順なので、逆順にしてから時刻で安定ソートする
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}

// kindOf はユーザー種別を返す。ロックするコレクションを決めるために使う。
func (s *Service) kindOf(ctx context.Context, id string) (string, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return u.TipoUsuario, nil
}

func saveMirror(tx *storage.Tx, u model.User, students []model.Student, companies []model.Company) error {
	switch u.TipoUsuario {
	case model.KindStudent:
		return repository.Students.Save(tx, repository.UpsertStudent(students, model.StudentFromUser(u)))
	case model.KindCompany:
		return repository.Companies.Save(tx, repository.UpsertCompany(companies, model.CompanyFromUser(u)))
	default:
		return nil
	}
}

func appendHistory(tx *storage.Tx, entry model.ChangeEntry) error {
	history, err := repository.History.Load(tx)
	if err != nil {
		return err
	}
	return repository.History.Save(tx, append(history, entry))
}

// applyUpdate は req の指定項目を u に反映し、値が変わった項目の差分を返す。
// パスワードは差分にハッシュを残さず MaskedValue で記録する。
func applyUpdate(u model.User, req UpdateRequest, newHash string) (model.User, map[string]model.FieldChange) {
	changes := make(map[string]model.FieldChange)

	setString := func(field string, dst *string, src *string) {
		if src == nil || *dst == *src {
			return
		}
		changes[field] = model.FieldChange{Old: *dst, New: *src}
		*dst = *src
	}

	setString("nome", &u.Nome, req.Nome)
	setString("email", &u.Email, req.Email)
	setString("telefone", &u.Telefone, req.Telefone)
	setString("cidade", &u.Cidade, req.Cidade)
	setString("escolaridade", &u.Escolaridade, req.Escolaridade)
	setString("habilidades", &u.Habilidades, req.Habilidades)
	setString("experiencia", &u.Experiencia, req.Experiencia)
	setString("formacao", &u.Formacao, req.Formacao)
	setString("sexo", &u.Sexo, req.Sexo)
	setString("situacaoMilitar", &u.SituacaoMilitar, req.SituacaoMilitar)
	setString("tiroGuerra", &u.TiroGuerra, req.TiroGuerra)
	setString("nomeEmpresa", &u.NomeEmpresa, req.NomeEmpresa)
	setString("cnpj", &u.CNPJ, req.CNPJ)
	setString("setor", &u.Setor, req.Setor)
	setString("informacoes", &u.Informacoes, req.Informacoes)

	if req.Idade != nil && (u.Idade == nil || *u.Idade != *req.Idade) {
		var old any
		if u.Idade != nil {
			old = *u.Idade
		}
		changes["idade"] = model.FieldChange{Old: old, New: *req.Idade}
		idade := *req.Idade
		u.Idade = &idade
	}

	if newHash != "" {
		changes["senha"] = model.FieldChange{Old: model.MaskedValue, New: model.MaskedValue}
		u.Senha = newHash
	}

	if u.TipoUsuario == model.KindStudent {
		eligible := model.IsEligibleAtirador(u.Sexo, u.SituacaoMilitar, u.TiroGuerra)
		if eligible != u.IsAtirador {
			changes["isAtirador"] = model.FieldChange{Old: u.IsAtirador, New: eligible}
			u.IsAtirador = eligible
		}
	}

	return u, changes
}
