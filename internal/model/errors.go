// Package model はドメインモデルを定義する。
package model

import "fmt"

// エラーカテゴリ。境界層でHTTPステータスへ対応付けられる。
const (
	CategoryAuth       = "auth"       // 401 Unauthorized
	CategoryPermission = "permission" // 403 Forbidden
	CategoryValidation = "validation" // 400 Bad Request
	CategoryNotFound   = "not_found"  // 404 Not Found
	CategorySystem     = "system"     // 500 Internal Server Error
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, permission, validation, not_found, system
	Action   string // ユーザー向け対処方法
	Field    string // バリデーションエラーの対象フィールド（判明している場合のみ）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidIDToken      = "INVALID_ID_TOKEN"
	ErrCodeEmailNotVerified    = "EMAIL_NOT_VERIFIED"
	ErrCodeEmailMissing        = "EMAIL_MISSING"
	ErrCodeInvalidSessionToken = "INVALID_SESSION_TOKEN"
	ErrCodeInvalidTokenSubject = "INVALID_TOKEN_SUBJECT"
	ErrCodeNotAuthenticated    = "NOT_AUTHENTICATED"
	ErrCodeInsufficientRole    = "INSUFFICIENT_ROLE"
	ErrCodeNotAllowed          = "NOT_ALLOWED"
	ErrCodeInvalidField        = "INVALID_FIELD"
	ErrCodeInvalidURL          = "INVALID_URL"
	ErrCodeBookmarkNotFound    = "BOOKMARK_NOT_FOUND"
	ErrCodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
)

// NewInvalidIDTokenError は外部IDトークンの検証失敗エラーを生成する。
func NewInvalidIDTokenError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidIDToken,
		Message:  fmt.Sprintf("IDトークンの検証に失敗しました: %s", reason),
		Category: CategoryAuth,
		Action:   "再度サインインしてください。",
	}
}

// NewEmailNotVerifiedError はIdP側でメールアドレスが未検証の場合のエラーを生成する。
func NewEmailNotVerifiedError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailNotVerified,
		Message:  "Googleアカウントのメールアドレスが未検証です。",
		Category: CategoryAuth,
		Action:   "Googleアカウントでメールアドレスを検証してから再度お試しください。",
	}
}

// NewEmailMissingError はIDトークンにメールアドレスが含まれない場合のエラーを生成する。
func NewEmailMissingError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailMissing,
		Message:  "IDトークンにメールアドレスが含まれていません。",
		Category: CategoryAuth,
		Action:   "メールアドレスのスコープを許可して再度サインインしてください。",
	}
}

// NewInvalidSessionTokenError はセッショントークンの検証失敗エラーを生成する。
func NewInvalidSessionTokenError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSessionToken,
		Message:  fmt.Sprintf("セッショントークンが無効です: %s", reason),
		Category: CategoryAuth,
		Action:   "再度サインインしてください。",
	}
}

// NewInvalidTokenSubjectError はsubjectクレームがアカウントIDとして
// 解釈できない場合のエラーを生成する。プロトコル違反として認証エラー扱い。
func NewInvalidTokenSubjectError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTokenSubject,
		Message:  "トークンのsubjectが不正です。",
		Category: CategoryAuth,
		Action:   "再度サインインしてください。",
	}
}

// NewNotAuthenticatedError は未認証リクエストに対するエラーを生成する。
func NewNotAuthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthenticated,
		Message:  "認証が必要です。",
		Category: CategoryAuth,
		Action:   "サインインしてから再度お試しください。",
	}
}

// NewInsufficientRoleError はロール不足のエラーを生成する。
func NewInsufficientRoleError() *APIError {
	return &APIError{
		Code:     ErrCodeInsufficientRole,
		Message:  "この操作に必要なロールがありません。",
		Category: CategoryPermission,
		Action:   "管理者に問い合わせてください。",
	}
}

// NewNotAllowedError はオーナー以外による操作や非公開リソースへの
// アクセス拒否のエラーを生成する。
func NewNotAllowedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAllowed,
		Message:  "この操作は許可されていません。",
		Category: CategoryPermission,
		Action:   "リソースのオーナーのみが実行できます。",
	}
}

// NewValidationError は必須フィールドの欠落や形式不正のエラーを生成する。
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidField,
		Message:  fmt.Sprintf("%s が不正です: %s", field, reason),
		Category: CategoryValidation,
		Action:   "入力内容を確認してください。",
		Field:    field,
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  "無効なURLです。",
		Category: CategoryValidation,
		Action:   "スキームとホストを含む正しいURLを入力してください。",
		Field:    "url",
	}
}

// NewBookmarkNotFoundError はブックマーク未検出エラーを生成する。
func NewBookmarkNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeBookmarkNotFound,
		Message:  fmt.Sprintf("指定されたブックマークが見つかりません: %s", id),
		Category: CategoryNotFound,
		Action:   "ブックマークIDを確認してください。",
	}
}

// NewAccountNotFoundError はアカウント未検出エラーを生成する。
func NewAccountNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotFound,
		Message:  "アカウントが見つかりません。",
		Category: CategoryNotFound,
		Action:   "アカウントIDを確認してください。",
	}
}
