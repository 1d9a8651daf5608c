// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// Message はクライアントにそのまま返すため、利用者向けの文言（ポルトガル語）で記述する。
type APIError struct {
	Code     string       // エラーコード
	Message  string       // エラーメッセージ
	Category string       // カテゴリ: auth, validation, course, account, system
	Details  []FieldError // 入力検証エラーの詳細
}

// FieldError は入力検証エラー1件分を表す。
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodePayloadTooLarge   = "PAYLOAD_TOO_LARGE"
	ErrCodeDuplicateEmail    = "DUPLICATE_EMAIL"
	ErrCodeDuplicateCNPJ     = "DUPLICATE_CNPJ"
	ErrCodeTokenRequired     = "TOKEN_REQUIRED"
	ErrCodeTokenInvalid      = "TOKEN_INVALID"
	ErrCodeInvalidCredential = "INVALID_CREDENTIALS"
	ErrCodeAccessDenied      = "ACCESS_DENIED"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeCourseNotFound    = "COURSE_NOT_FOUND"
	ErrCodeInvalidReorder    = "INVALID_REORDER"
	ErrCodeAdminKeyRequired  = "ADMIN_KEY_REQUIRED"
	ErrCodeAdminKeyInvalid   = "ADMIN_KEY_INVALID"
	ErrCodeFeedNotDetected   = "FEED_NOT_DETECTED"
	ErrCodeInvalidURL        = "INVALID_URL"
	ErrCodeSSRFBlocked       = "SSRF_BLOCKED"
	ErrCodeFetchFailed       = "FETCH_FAILED"
	ErrCodeParseFailed       = "PARSE_FAILED"
	ErrCodeRateLimited       = "RATE_LIMIT_EXCEEDED"
	ErrCodeCSRFInvalid       = "CSRF_INVALID"
	ErrCodePersistence       = "PERSISTENCE_ERROR"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewValidationError は入力検証エラーを生成する。
// details が空の場合は message だけを返す。
func NewValidationError(message string, details ...FieldError) *APIError {
	if message == "" {
		message = "Dados inválidos"
	}
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Details:  details,
	}
}

// NewPayloadTooLargeError はリクエストボディが上限を超えたエラーを生成する。
func NewPayloadTooLargeError() *APIError {
	return &APIError{
		Code:     ErrCodePayloadTooLarge,
		Message:  "Corpo da requisição muito grande",
		Category: "validation",
	}
}

// NewDuplicateEmailError はメールアドレス重複エラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "Este email já está cadastrado",
		Category: "account",
	}
}

// NewDuplicateCNPJError はCNPJ重複エラーを生成する。
func NewDuplicateCNPJError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateCNPJ,
		Message:  "Já existe uma empresa cadastrada com este CNPJ",
		Category: "account",
	}
}

// NewTokenRequiredError はトークン未指定エラーを生成する。
func NewTokenRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenRequired,
		Message:  "Token de acesso requerido",
		Category: "auth",
	}
}

// NewTokenInvalidError はトークン不正エラーを生成する。
func NewTokenInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenInvalid,
		Message:  "Token inválido",
		Category: "auth",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// メールアドレスとパスワードのどちらが誤っているかは区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredential,
		Message:  "Email ou senha incorretos",
		Category: "auth",
	}
}

// NewAccessDeniedError は他人のリソースへのアクセスを拒否するエラーを生成する。
func NewAccessDeniedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccessDenied,
		Message:  "Acesso negado.",
		Category: "auth",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "Usuário não encontrado",
		Category: "account",
	}
}

// NewCourseNotFoundError はコースが見つからない場合のエラーを生成する。
func NewCourseNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeCourseNotFound,
		Message:  "Course not found",
		Category: "course",
	}
}

// NewInvalidReorderError は並べ替え指定が不正な場合のエラーを生成する。
func NewInvalidReorderError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidReorder,
		Message:  reason,
		Category: "course",
	}
}

// NewAdminKeyRequiredError は管理者キー未指定エラーを生成する。
func NewAdminKeyRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeAdminKeyRequired,
		Message:  "Chave de administrador requerida",
		Category: "auth",
	}
}

// NewAdminKeyInvalidError は管理者キー不一致エラーを生成する。
func NewAdminKeyInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeAdminKeyInvalid,
		Message:  "Chave de administrador inválida",
		Category: "auth",
	}
}

// NewFeedNotDetectedError はフィード未検出エラーを生成する。
func NewFeedNotDetectedError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotDetected,
		Message:  fmt.Sprintf("Nenhum feed RSS/Atom encontrado em: %s", url),
		Category: "course",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("URL inválida: %s", reason),
		Category: "validation",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "O acesso a esta URL foi bloqueado pela política de segurança.",
		Category: "validation",
	}
}

// NewFetchFailedError はフェッチ失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("Falha ao buscar a URL: %s", reason),
		Category: "course",
	}
}

// NewParseFailedError はフィード解析失敗エラーを生成する。
func NewParseFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeParseFailed,
		Message:  "Falha ao interpretar o feed.",
		Category: "course",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Muitas requisições. Tente novamente mais tarde.",
		Category: "system",
	}
}

// NewCSRFInvalidError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "Token CSRF inválido",
		Category: "auth",
	}
}

// NewPersistenceError は永続化層の失敗を表すエラーを生成する。
// 内部の詳細はログにのみ出力し、クライアントには汎用メッセージを返す。
func NewPersistenceError() *APIError {
	return &APIError{
		Code:     ErrCodePersistence,
		Message:  "Erro interno do servidor",
		Category: "system",
	}
}

// NewInternalError は想定外のエラーに対してクライアントへ返す汎用エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Erro interno do servidor",
		Category: "system",
	}
}
