package model

import "time"

// MaskedValue はパスワード変更履歴で値の代わりに記録される文字列。
const MaskedValue = "********"

// FieldChange は1フィールド分の変更前後の値を表す。
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// ChangeEntry は change_history コレクションに追記されるプロフィール変更履歴を表す。
type ChangeEntry struct {
	ID          string                 `json:"id"`
	UserID      string                 `json:"userId"`
	TipoUsuario string                 `json:"tipoUsuario"`
	Changes     map[string]FieldChange `json:"changes"`
	Timestamp   time.Time              `json:"timestamp"`
}
