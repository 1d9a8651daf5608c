package validation

import (
	"testing"

	"github.com/hitoshi/capacita/internal/model"
)

type sample struct {
	Nome     string `json:"nome" validate:"required,min=2,max=100,person_name"`
	Email    string `json:"email" validate:"required,email"`
	Senha    string `json:"senha" validate:"required,min=6,max=72,strong_password"`
	Telefone string `json:"telefone" validate:"omitempty,br_phone"`
	CNPJ     string `json:"cnpj" validate:"omitempty,cnpj"`
	Sexo     string `json:"sexo" validate:"omitempty,oneof=masculino feminino"`
}

func validSample() sample {
	return sample{
		Nome:     "José da Silva",
		Email:    "jose@example.com",
		Senha:    "Senha123",
		Telefone: "(82) 99999-0000",
		CNPJ:     "12.345.678/0001-90",
		Sexo:     "masculino",
	}
}

func TestValidator_Valid(t *testing.T) {
	v := New()
	if err := v.Struct(validSample()); err != nil {
		t.Fatalf("Struct returned error: %v (details=%v)", err, err.Details)
	}
}

func TestValidator_FieldErrors(t *testing.T) {
	v := New()

	tests := []struct {
		name   string
		mutate func(s *sample)
		field  string
	}{
		{name: "名前が短い", mutate: func(s *sample) { s.Nome = "A" }, field: "nome"},
		{name: "名前に数字", mutate: func(s *sample) { s.Nome = "Ana 2" }, field: "nome"},
		{name: "メール形式不正", mutate: func(s *sample) { s.Email = "ana" }, field: "email"},
		{name: "パスワードが短い", mutate: func(s *sample) { s.Senha = "Ab1" }, field: "senha"},
		{name: "パスワードに大文字なし", mutate: func(s *sample) { s.Senha = "senha123" }, field: "senha"},
		{name: "パスワードに数字なし", mutate: func(s *sample) { s.Senha = "SenhaForte" }, field: "senha"},
		{name: "電話番号形式不正", mutate: func(s *sample) { s.Telefone = "82999990000" }, field: "telefone"},
		{name: "CNPJ桁数不正", mutate: func(s *sample) { s.CNPJ = "123" }, field: "cnpj"},
		{name: "性別が範囲外", mutate: func(s *sample) { s.Sexo = "outro" }, field: "sexo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSample()
			tt.mutate(&s)

			err := v.Struct(s)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if err.Code != model.ErrCodeValidation {
				t.Errorf("Code = %q, want %q", err.Code, model.ErrCodeValidation)
			}
			if err.Message != "Dados inválidos" {
				t.Errorf("Message = %q, want %q", err.Message, "Dados inválidos")
			}
			if len(err.Details) != 1 {
				t.Fatalf("len(Details) = %d, want 1 (%v)", len(err.Details), err.Details)
			}
			if err.Details[0].Field != tt.field {
				t.Errorf("Field = %q, want %q", err.Details[0].Field, tt.field)
			}
			if err.Details[0].Message == "" {
				t.Error("Message must not be empty")
			}
		})
	}
}

func TestValidator_ReportsEveryMissingField(t *testing.T) {
	v := New()
	err := v.Struct(sample{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(err.Details) != 3 {
		t.Errorf("len(Details) = %d, want 3 (nome, email, senha)", len(err.Details))
	}
}

func TestIsStrongPassword(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Senha123", true},
		{"Ação2024", true},
		{"senha123", false},
		{"SENHA123", false},
		{"SenhaSenha", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsStrongPassword(tt.in); got != tt.want {
			t.Errorf("IsStrongPassword(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
