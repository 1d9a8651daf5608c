package account

import (
	"strings"

	"github.com/hitoshi/capacita/internal/model"
)

// StudentRequest は求職者登録（POST /api/students）のリクエストボディ。
type StudentRequest struct {
	Nome            string `json:"nome" validate:"required,min=2,max=100,person_name"`
	Email           string `json:"email" validate:"required,email"`
	Senha           string `json:"senha" validate:"required,min=6,max=72,strong_password"`
	Telefone        string `json:"telefone" validate:"required,br_phone"`
	Cidade          string `json:"cidade" validate:"required"`
	Idade           *int   `json:"idade" validate:"omitempty,gte=14,lte=120"`
	Escolaridade    string `json:"escolaridade" validate:"max=100"`
	Habilidades     string `json:"habilidades" validate:"required,min=10,max=1000"`
	Experiencia     string `json:"experiencia" validate:"max=2000"`
	Formacao        string `json:"formacao" validate:"max=1000"`
	Sexo            string `json:"sexo" validate:"omitempty,oneof=masculino feminino"`
	SituacaoMilitar string `json:"situacaoMilitar" validate:"max=100"`
	TiroGuerra      string `json:"tiroGuerra" validate:"max=100"`
}

func (r StudentRequest) normalize() StudentRequest {
	r.Nome = strings.TrimSpace(r.Nome)
	r.Email = model.NormalizeEmail(r.Email)
	r.Telefone = strings.TrimSpace(r.Telefone)
	r.Cidade = strings.TrimSpace(r.Cidade)
	r.Escolaridade = strings.TrimSpace(r.Escolaridade)
	r.Habilidades = strings.TrimSpace(r.Habilidades)
	r.Experiencia = strings.TrimSpace(r.Experiencia)
	r.Formacao = strings.TrimSpace(r.Formacao)
	r.Sexo = strings.TrimSpace(r.Sexo)
	r.SituacaoMilitar = strings.TrimSpace(r.SituacaoMilitar)
	r.TiroGuerra = strings.TrimSpace(r.TiroGuerra)
	return r
}

func (r StudentRequest) user() model.User {
	return model.User{
		Nome:            r.Nome,
		Email:           r.Email,
		TipoUsuario:     model.KindStudent,
		Sexo:            r.Sexo,
		SituacaoMilitar: r.SituacaoMilitar,
		TiroGuerra:      r.TiroGuerra,
		Telefone:        r.Telefone,
		Cidade:          r.Cidade,
		Idade:           r.Idade,
		Escolaridade:    r.Escolaridade,
		Habilidades:     r.Habilidades,
		Experiencia:     r.Experiencia,
		Formacao:        r.Formacao,
		IsAtirador:      model.IsEligibleAtirador(r.Sexo, r.SituacaoMilitar, r.TiroGuerra),
	}
}

// CompanyRequest は企業登録（POST /api/companies）のリクエストボディ。
// nomeEmpresa を省略した場合は nome を企業名として使う。
type CompanyRequest struct {
	Nome        string `json:"nome" validate:"max=100"`
	NomeEmpresa string `json:"nomeEmpresa" validate:"required,min=2,max=100"`
	Email       string `json:"email" validate:"required,email"`
	Senha       string `json:"senha" validate:"required,min=6,max=72,strong_password"`
	CNPJ        string `json:"cnpj" validate:"omitempty,cnpj"`
	Cidade      string `json:"cidade" validate:"required"`
	Telefone    string `json:"telefone" validate:"omitempty,br_phone"`
	Setor       string `json:"setor" validate:"max=100"`
	Informacoes string `json:"informacoes" validate:"max=2000"`
	Sexo        string `json:"sexo" validate:"omitempty,oneof=masculino feminino"`
}

func (r CompanyRequest) normalize() CompanyRequest {
	r.Nome = strings.TrimSpace(r.Nome)
	r.NomeEmpresa = strings.TrimSpace(r.NomeEmpresa)
	if r.NomeEmpresa == "" {
		r.NomeEmpresa = r.Nome
	}
	r.Email = model.NormalizeEmail(r.Email)
	r.CNPJ = strings.TrimSpace(r.CNPJ)
	r.Cidade = strings.TrimSpace(r.Cidade)
	r.Telefone = strings.TrimSpace(r.Telefone)
	r.Setor = strings.TrimSpace(r.Setor)
	r.Informacoes = strings.TrimSpace(r.Informacoes)
	r.Sexo = strings.TrimSpace(r.Sexo)
	return r
}

func (r CompanyRequest) user() model.User {
	nome := r.Nome
	if nome == "" {
		nome = r.NomeEmpresa
	}
	return model.User{
		Nome:        nome,
		Email:       r.Email,
		TipoUsuario: model.KindCompany,
		Sexo:        r.Sexo,
		Telefone:    r.Telefone,
		Cidade:      r.Cidade,
		NomeEmpresa: r.NomeEmpresa,
		CNPJ:        r.CNPJ,
		Setor:       r.Setor,
		Informacoes: r.Informacoes,
	}
}

// RegisterRequest は統合登録（POST /api/auth/register）のリクエストボディ。
// tipoUsuario に応じて StudentRequest か CompanyRequest のルールでも検証する。
type RegisterRequest struct {
	TipoUsuario     string `json:"tipoUsuario" validate:"required,oneof=atirador empregador"`
	Sexo            string `json:"sexo" validate:"required,oneof=masculino feminino"`
	Nome            string `json:"nome" validate:"required"`
	Email           string `json:"email"`
	Senha           string `json:"senha"`
	Telefone        string `json:"telefone"`
	Cidade          string `json:"cidade"`
	Idade           *int   `json:"idade"`
	Escolaridade    string `json:"escolaridade"`
	Habilidades     string `json:"habilidades"`
	Experiencia     string `json:"experiencia"`
	Formacao        string `json:"formacao"`
	SituacaoMilitar string `json:"situacaoMilitar"`
	TiroGuerra      string `json:"tiroGuerra"`
	NomeEmpresa     string `json:"nomeEmpresa"`
	CNPJ            string `json:"cnpj"`
	Setor           string `json:"setor"`
	Informacoes     string `json:"informacoes"`
}

func (r RegisterRequest) student() StudentRequest {
	return StudentRequest{
		Nome:            r.Nome,
		Email:           r.Email,
		Senha:           r.Senha,
		Telefone:        r.Telefone,
		Cidade:          r.Cidade,
		Idade:           r.Idade,
		Escolaridade:    r.Escolaridade,
		Habilidades:     r.Habilidades,
		Experiencia:     r.Experiencia,
		Formacao:        r.Formacao,
		Sexo:            r.Sexo,
		SituacaoMilitar: r.SituacaoMilitar,
		TiroGuerra:      r.TiroGuerra,
	}
}

func (r RegisterRequest) company() CompanyRequest {
	return CompanyRequest{
		Nome:        r.Nome,
		NomeEmpresa: r.NomeEmpresa,
		Email:       r.Email,
		Senha:       r.Senha,
		CNPJ:        r.CNPJ,
		Cidade:      r.Cidade,
		Telefone:    r.Telefone,
		Setor:       r.Setor,
		Informacoes: r.Informacoes,
		Sexo:        r.Sexo,
	}
}

// LoginRequest はログインのリクエストボディ。
type LoginRequest struct {
	Email string `json:"email" validate:"required,email"`
	Senha string `json:"senha" validate:"required"`
}

// UpdateRequest はプロフィール更新（PUT/PATCH）のリクエストボディ。
// nil のフィールドは変更しない。id・tipoUsuario・dataRegistro・ativo・isAtirador は受け付けない。
type UpdateRequest struct {
	Nome            *string `json:"nome" validate:"omitempty,min=2,max=100,person_name"`
	Email           *string `json:"email" validate:"omitempty,email"`
	Senha           *string `json:"senha" validate:"omitempty,min=6,max=72,strong_password"`
	Telefone        *string `json:"telefone" validate:"omitempty,br_phone"`
	Cidade          *string `json:"cidade" validate:"omitempty,max=100"`
	Idade           *int    `json:"idade" validate:"omitempty,gte=14,lte=120"`
	Escolaridade    *string `json:"escolaridade" validate:"omitempty,max=100"`
	Habilidades     *string `json:"habilidades" validate:"omitempty,min=10,max=1000"`
	Experiencia     *string `json:"experiencia" validate:"omitempty,max=2000"`
	Formacao        *string `json:"formacao" validate:"omitempty,max=1000"`
	Sexo            *string `json:"sexo" validate:"omitempty,oneof=masculino feminino"`
	SituacaoMilitar *string `json:"situacaoMilitar" validate:"omitempty,max=100"`
	TiroGuerra      *string `json:"tiroGuerra" validate:"omitempty,max=100"`
	NomeEmpresa     *string `json:"nomeEmpresa" validate:"omitempty,min=2,max=100"`
	CNPJ            *string `json:"cnpj" validate:"omitempty,cnpj"`
	Setor           *string `json:"setor" validate:"omitempty,max=100"`
	Informacoes     *string `json:"informacoes" validate:"omitempty,max=2000"`
}

// normalize は文字列をトリムし、空にできない項目（nome, email, senha, cidade, nomeEmpresa）が
// 空文字列で送られた場合は未指定として扱う。
func (r UpdateRequest) normalize() UpdateRequest {
	r.Nome = trimmed(r.Nome)
	r.Telefone = trimmed(r.Telefone)
	r.Cidade = trimmed(r.Cidade)
	r.Escolaridade = trimmed(r.Escolaridade)
	r.Habilidades = trimmed(r.Habilidades)
	r.Experiencia = trimmed(r.Experiencia)
	r.Formacao = trimmed(r.Formacao)
	r.Sexo = trimmed(r.Sexo)
	r.SituacaoMilitar = trimmed(r.SituacaoMilitar)
	r.TiroGuerra = trimmed(r.TiroGuerra)
	r.NomeEmpresa = trimmed(r.NomeEmpresa)
	r.CNPJ = trimmed(r.CNPJ)
	r.Setor = trimmed(r.Setor)
	r.Informacoes = trimmed(r.Informacoes)
	if r.Email != nil {
		email := model.NormalizeEmail(*r.Email)
		r.Email = &email
	}

	for _, p := range []**string{&r.Nome, &r.Email, &r.Senha, &r.Cidade, &r.NomeEmpresa} {
		if *p != nil && strings.TrimSpace(**p) == "" {
			*p = nil
		}
	}
	return r
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}
