// Package validation はリクエスト入力の検証を提供する。
// go-playground/validator の構造体タグに、電話番号やパスワード強度などの独自ルールを追加して使う。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/hitoshi/capacita/internal/model"
)

var (
	personNamePattern = regexp.MustCompile(`^[A-Za-zÀ-ÿ\s'.-]+$`)
	phonePattern      = regexp.MustCompile(`^\(\d{2}\)\s\d{4,5}-\d{4}$`)
)

// Validator は構造体タグに基づいて入力を検証する。
type Validator struct {
	v *validator.Validate
}

// New は独自ルールを登録した Validator を生成する。
//
//	person_name     … 英字・アクセント付き文字・空白のみ
//	strong_password … 小文字・大文字・数字をそれぞれ1文字以上含む
//	br_phone        … (XX) XXXX-XXXX または (XX) XXXXX-XXXX
//	cnpj            … 区切り文字を除いて14桁
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// エラー詳細のフィールド名はJSONのキー名にする
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	mustRegister(v, "person_name", func(fl validator.FieldLevel) bool {
		return personNamePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "strong_password", func(fl validator.FieldLevel) bool {
		return IsStrongPassword(fl.Field().String())
	})
	mustRegister(v, "br_phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "cnpj", func(fl validator.FieldLevel) bool {
		return len(model.NormalizeCNPJ(fl.Field().String())) == 14
	})

	return &Validator{v: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %s: %v", tag, err))
	}
}

// Struct は s を検証し、違反があれば詳細付きの検証エラーを返す。
func (v *Validator) Struct(s any) *model.APIError {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return model.NewValidationError("", model.FieldError{Message: err.Error()})
	}

	details := make([]model.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, model.FieldError{
			Field:   fe.Field(),
			Message: message(fe),
		})
	}
	return model.NewValidationError("", details...)
}

// IsStrongPassword は小文字・大文字・数字をそれぞれ含むか判定する。
func IsStrongPassword(s string) bool {
	var lower, upper, digit bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return lower && upper && digit
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return fmt.Sprintf("%s é obrigatório", fe.Field())
	case "email":
		return "Email deve ter um formato válido"
	case "min":
		return fmt.Sprintf("%s deve ter pelo menos %s caracteres", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s deve ter no máximo %s caracteres", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s deve ser maior ou igual a %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s deve ser menor ou igual a %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s deve ser um dos valores: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url":
		return fmt.Sprintf("%s deve ser uma URL válida", fe.Field())
	case "person_name":
		return fmt.Sprintf("%s deve conter apenas letras e espaços", fe.Field())
	case "strong_password":
		return "Senha deve conter pelo menos uma letra minúscula, uma maiúscula e um número"
	case "br_phone":
		return "Telefone deve estar no formato (XX) XXXXX-XXXX"
	case "cnpj":
		return "CNPJ deve conter 14 dígitos"
	default:
		return fmt.Sprintf("%s é inválido", fe.Field())
	}
}
