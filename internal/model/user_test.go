package model

import (
	"testing"
	"time"
)

func TestIsEligibleAtirador(t *testing.T) {
	tests := []struct {
		name     string
		sexo     string
		situacao string
		tg       string
		want     bool
	}{
		{name: "在籍中の男性", sexo: SexoMasculino, situacao: SituacaoServindo, tg: "TG 02-017", want: true},
		{name: "女性", sexo: SexoFeminino, situacao: SituacaoServindo, tg: "TG 02-017", want: false},
		{name: "兵役状況が異なる", sexo: SexoMasculino, situacao: "reservista", tg: "TG 02-017", want: false},
		{name: "TG未指定", sexo: SexoMasculino, situacao: SituacaoServindo, tg: "  ", want: false},
		{name: "Outro TG", sexo: SexoMasculino, situacao: SituacaoServindo, tg: TiroGuerraUnspecified, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEligibleAtirador(tt.sexo, tt.situacao, tt.tg); got != tt.want {
				t.Errorf("IsEligibleAtirador() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Ana@X.com "); got != "ana@x.com" {
		t.Errorf("NormalizeEmail() = %q, want %q", got, "ana@x.com")
	}
}

func TestNormalizeCNPJ(t *testing.T) {
	if got := NormalizeCNPJ("12.345.678/0001-95"); got != "12345678000195" {
		t.Errorf("NormalizeCNPJ() = %q, want %q", got, "12345678000195")
	}
	if got := NormalizeCNPJ(""); got != "" {
		t.Errorf("NormalizeCNPJ(\"\") = %q, want empty", got)
	}
}

func TestUser_Public(t *testing.T) {
	u := User{ID: "u1", Senha: "$2a$12$hash"}
	pub := u.Public()
	if pub.Senha != "" {
		t.Errorf("Public().Senha = %q, want empty", pub.Senha)
	}
	if u.Senha == "" {
		t.Error("Public must not modify the receiver")
	}
}

func TestUser_DisplayName(t *testing.T) {
	company := User{Nome: "Carlos", NomeEmpresa: "Padaria Central", TipoUsuario: KindCompany}
	if got := company.DisplayName(); got != "Padaria Central" {
		t.Errorf("DisplayName() = %q, want %q", got, "Padaria Central")
	}
	student := User{Nome: "Ana Silva", NomeEmpresa: "ignored", TipoUsuario: KindStudent}
	if got := student.DisplayName(); got != "Ana Silva" {
		t.Errorf("DisplayName() = %q, want %q", got, "Ana Silva")
	}
}

func TestMirrorsFromUser(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	idade := 19
	u := User{
		ID:                "u1",
		Nome:              "Ana Silva",
		Email:             "ana@x.com",
		Senha:             "hash",
		Idade:             &idade,
		Habilidades:       "Atendimento ao cliente",
		CNPJ:              "12345678000195",
		Ativo:             true,
		DataRegistro:      now,
		UltimaAtualizacao: now,
	}

	s := StudentFromUser(u)
	if s.ID != "u1" || s.Tipo != MirrorTypeStudent || !s.Ativo || s.Idade == nil || *s.Idade != 19 {
		t.Errorf("StudentFromUser() = %+v", s)
	}

	c := CompanyFromUser(u)
	if c.NomeEmpresa != "Ana Silva" {
		t.Errorf("NomeEmpresa = %q, want fallback to nome", c.NomeEmpresa)
	}
	if c.Tipo != MirrorTypeCompany || c.CNPJ != "12345678000195" || !c.DataRegistro.Equal(now) {
		t.Errorf("CompanyFromUser() = %+v", c)
	}
}

func TestAPIError_Error(t *testing.T) {
	err := NewCourseNotFoundError()
	if got := err.Error(); got != "[COURSE_NOT_FOUND] Course not found" {
		t.Errorf("Error() = %q", got)
	}
	v := NewValidationError("")
	if v.Message != "Dados inválidos" {
		t.Errorf("Message = %q, want default", v.Message)
	}
}
