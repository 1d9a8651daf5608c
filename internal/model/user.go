package model

import (
	"strings"
	"time"
)

// ユーザー種別
const (
	// KindStudent は求職者（atirador）を表す。
	KindStudent = "atirador"
	// KindCompany は求人企業（empregador）を表す。
	KindCompany = "empregador"
)

// 兵役状況と射撃隊の判定に使う値
const (
	SexoMasculino         = "masculino"
	SexoFeminino          = "feminino"
	SituacaoServindo      = "matriculado e servindo"
	TiroGuerraUnspecified = "Outro TG"
)

// User は認証情報を持つ統合ユーザーレコードを表す。
// TipoUsuario によって students / companies のどちらにミラーされるかが決まる。
// Senha にはbcryptハッシュが入り、レスポンスに出す前に必ず Public で除去する。
type User struct {
	ID                string     `json:"id"`
	Nome              string     `json:"nome"`
	Email             string     `json:"email"`
	Senha             string     `json:"senha,omitempty"`
	TipoUsuario       string     `json:"tipoUsuario"`
	Sexo              string     `json:"sexo,omitempty"`
	SituacaoMilitar   string     `json:"situacaoMilitar,omitempty"`
	TiroGuerra        string     `json:"tiroGuerra,omitempty"`
	Telefone          string     `json:"telefone,omitempty"`
	Cidade            string     `json:"cidade,omitempty"`
	Idade             *int       `json:"idade,omitempty"`
	Escolaridade      string     `json:"escolaridade,omitempty"`
	Habilidades       string     `json:"habilidades,omitempty"`
	Experiencia       string     `json:"experiencia,omitempty"`
	Formacao          string     `json:"formacao,omitempty"`
	NomeEmpresa       string     `json:"nomeEmpresa,omitempty"`
	CNPJ              string     `json:"cnpj,omitempty"`
	Setor             string     `json:"setor,omitempty"`
	Informacoes       string     `json:"informacoes,omitempty"`
	IsAtirador        bool       `json:"isAtirador"`
	Ativo             bool       `json:"ativo"`
	DataRegistro      time.Time  `json:"dataRegistro"`
	UltimaAtualizacao time.Time  `json:"ultimaAtualizacao"`
	UltimoLogin       *time.Time `json:"ultimoLogin,omitempty"`
}

// Public はパスワードハッシュを除いたコピーを返す。
func (u User) Public() User {
	u.Senha = ""
	return u
}

// DisplayName は企業ユーザーなら企業名、それ以外は氏名を返す。
func (u User) DisplayName() string {
	if u.TipoUsuario == KindCompany && u.NomeEmpresa != "" {
		return u.NomeEmpresa
	}
	return u.Nome
}

// IsEligibleAtirador は射撃隊（Tiro de Guerra）に在籍中の男性かどうかを判定する。
// 所属TGが未指定または「Outro TG」の場合は対象外。
func IsEligibleAtirador(sexo, situacaoMilitar, tiroGuerra string) bool {
	return sexo == SexoMasculino &&
		situacaoMilitar == SituacaoServindo &&
		strings.TrimSpace(tiroGuerra) != "" &&
		tiroGuerra != TiroGuerraUnspecified
}

// NormalizeEmail はメールアドレスを比較・保存用に正規化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeCNPJ はCNPJから区切り文字を取り除き数字のみにする。
func NormalizeCNPJ(cnpj string) string {
	var b strings.Builder
	for _, r := range cnpj {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
