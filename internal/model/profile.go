package model

import "time"

// 種別ごとのミラーレコードに付与される tipo の値
const (
	MirrorTypeStudent = "candidato"
	MirrorTypeCompany = "empresa"
)

// Student は students コレクションに保存される求職者プロフィールを表す。
// 認証情報は持たず、同じIDの User レコードから生成される。
type Student struct {
	ID                string    `json:"id"`
	Nome              string    `json:"nome"`
	Email             string    `json:"email"`
	Sexo              string    `json:"sexo,omitempty"`
	SituacaoMilitar   string    `json:"situacaoMilitar,omitempty"`
	TiroGuerra        string    `json:"tiroGuerra,omitempty"`
	IsAtirador        bool      `json:"isAtirador"`
	Cidade            string    `json:"cidade,omitempty"`
	Telefone          string    `json:"telefone,omitempty"`
	Idade             *int      `json:"idade,omitempty"`
	Escolaridade      string    `json:"escolaridade,omitempty"`
	Habilidades       string    `json:"habilidades,omitempty"`
	Experiencia       string    `json:"experiencia,omitempty"`
	Formacao          string    `json:"formacao,omitempty"`
	Tipo              string    `json:"tipo"`
	Ativo             bool      `json:"ativo"`
	DataRegistro      time.Time `json:"dataRegistro"`
	UltimaAtualizacao time.Time `json:"ultimaAtualizacao"`
}

// Company は companies コレクションに保存される企業プロフィールを表す。
type Company struct {
	ID                string    `json:"id"`
	NomeEmpresa       string    `json:"nomeEmpresa"`
	Email             string    `json:"email"`
	Sexo              string    `json:"sexo,omitempty"`
	CNPJ              string    `json:"cnpj,omitempty"`
	Cidade            string    `json:"cidade,omitempty"`
	Telefone          string    `json:"telefone,omitempty"`
	Setor             string    `json:"setor,omitempty"`
	Informacoes       string    `json:"informacoes,omitempty"`
	Tipo              string    `json:"tipo"`
	Ativo             bool      `json:"ativo"`
	DataRegistro      time.Time `json:"dataRegistro"`
	UltimaAtualizacao time.Time `json:"ultimaAtualizacao"`
}

// StudentFromUser は User から students 用のミラーレコードを生成する。
func StudentFromUser(u User) Student {
	return Student{
		ID:                u.ID,
		Nome:              u.Nome,
		Email:             u.Email,
		Sexo:              u.Sexo,
		SituacaoMilitar:   u.SituacaoMilitar,
		TiroGuerra:        u.TiroGuerra,
		IsAtirador:        u.IsAtirador,
		Cidade:            u.Cidade,
		Telefone:          u.Telefone,
		Idade:             u.Idade,
		Escolaridade:      u.Escolaridade,
		Habilidades:       u.Habilidades,
		Experiencia:       u.Experiencia,
		Formacao:          u.Formacao,
		Tipo:              MirrorTypeStudent,
		Ativo:             u.Ativo,
		DataRegistro:      u.DataRegistro,
		UltimaAtualizacao: u.UltimaAtualizacao,
	}
}

// CompanyFromUser は User から companies 用のミラーレコードを生成する。
// 企業名が空の場合は氏名で代替する。
func CompanyFromUser(u User) Company {
	name := u.NomeEmpresa
	if name == "" {
		name = u.Nome
	}
	return Company{
		ID:                u.ID,
		NomeEmpresa:       name,
		Email:             u.Email,
		Sexo:              u.Sexo,
		CNPJ:              u.CNPJ,
		Cidade:            u.Cidade,
		Telefone:          u.Telefone,
		Setor:             u.Setor,
		Informacoes:       u.Informacoes,
		Tipo:              MirrorTypeCompany,
		Ativo:             u.Ativo,
		DataRegistro:      u.DataRegistro,
		UltimaAtualizacao: u.UltimaAtualizacao,
	}
}
