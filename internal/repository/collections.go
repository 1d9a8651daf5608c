// Package repository はコレクション定義と、コレクション内のレコード検索を提供する。
package repository

import (
	"github.com/hitoshi/capacita/internal/model"
	"github.com/hitoshi/capacita/internal/storage"
)

// コレクション名（バックエンドのキー）
const (
	CoursesName   = "courses"
	StudentsName  = "students"
	CompaniesName = "companies"
	UsersName     = "users"
	HistoryName   = "change_history"
)

var (
	// Courses は講座一覧。配列の順序がそのまま表示順になる。
	Courses = storage.NewCollection[model.Course](CoursesName)
	// Students は求職者プロフィールのミラー。
	Students = storage.NewCollection[model.Student](StudentsName)
	// Companies は企業プロフィールのミラー。
	Companies = storage.NewCollection[model.Company](CompaniesName)
	// Users は認証情報を持つ統合ユーザー。
	Users = storage.NewCollection[model.User](UsersName)
	// History はプロフィール変更履歴。
	History = storage.NewCollection[model.ChangeEntry](HistoryName)
)

// AllNames は全コレクション名を返す。
func AllNames() []string {
	return []string{CoursesName, StudentsName, CompaniesName, UsersName, HistoryName}
}

// MirrorName はユーザー種別に対応するミラーコレクション名を返す。
// 種別が不明な場合は空文字列を返す。
func MirrorName(tipoUsuario string) string {
	switch tipoUsuario {
	case model.KindStudent:
		return StudentsName
	case model.KindCompany:
		return CompaniesName
	default:
		return ""
	}
}
