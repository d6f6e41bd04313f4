package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, record, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeInvalidRecord     = "INVALID_RECORD"
	ErrCodeRecordNotFound    = "RECORD_NOT_FOUND"
	ErrCodePasswordMismatch  = "PASSWORD_MISMATCH"
	ErrCodePasswordTooShort  = "PASSWORD_TOO_SHORT"
	ErrCodeProviderFailure   = "PROVIDER_FAILURE"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidRequestError はリクエストボディ解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewInvalidRecordError は学習記録の入力不備エラーを生成する。
func NewInvalidRecordError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRecord,
		Message:  "学習内容と時間を入力してください",
		Category: "validation",
		Action:   "学習内容を入力し、学習時間には1分以上を指定してください。",
	}
}

// NewRecordNotFoundError は学習記録が見つからない場合のエラーを生成する。
func NewRecordNotFoundError(recordID string) *APIError {
	return &APIError{
		Code:     ErrCodeRecordNotFound,
		Message:  fmt.Sprintf("指定された学習記録が見つかりません: %s", recordID),
		Category: "record",
		Action:   "一覧を再読み込みしてください。",
	}
}

// NewProviderFailureError は外部サービス呼び出し失敗エラーを生成する。
// 原因文字列はそのままメッセージに含める。
func NewProviderFailureError(title string, cause error) *APIError {
	return &APIError{
		Code:     ErrCodeProviderFailure,
		Message:  fmt.Sprintf("%s: %v", title, cause),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitExceededError はレート制限超過エラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
