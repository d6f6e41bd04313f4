package tracker

import "time"

// Severity は通知の種別。
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notice は画面に一時表示する通知。
type Notice struct {
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Severity    Severity      `json:"status"`
	Duration    time.Duration `json:"duration"`
}

const (
	shortNotice = 2 * time.Second
	longNotice  = 4 * time.Second
)

// 画面のルート。
const (
	RouteHome           = "/"
	RouteLogin          = "/login"
	RouteRegister       = "/register"
	RouteSendReset      = "/sendReset"
	RouteUpdatePassword = "/updatePassword"
)

// 通知タイトル。
const (
	MsgLoginSucceeded     = "ログインしました"
	MsgLoginFailed        = "ログインに失敗しました"
	MsgPasswordMismatch   = "パスワードが一致しません"
	MsgPasswordTooShort   = "パスワードは6文字以上にしてください"
	MsgSignupSucceeded    = "ユーザー登録が完了しました。"
	MsgSignupFailed       = "サインアップに失敗しました"
	MsgLogoutSucceeded    = "ログアウトしました"
	MsgLogoutFailed       = "ログアウトに失敗しました"
	MsgPasswordUpdated    = "パスワード更新が完了しました"
	MsgPasswordFailed     = "パスワード更新に失敗しました"
	MsgResetMailSent      = "パスワード設定メールを確認してください"
	MsgFetchFailed        = "データ取得に失敗しました"
	MsgRecordUpdated      = "データ更新が完了しました"
	MsgRecordUpdateFailed = "データ更新に失敗しました"
	MsgRecordCreated      = "データ登録が完了しました"
	MsgRecordCreateFailed = "データ登録に失敗しました"
	MsgRecordDeleted      = "データを削除しました"
	MsgRecordDeleteFailed = "データ削除に失敗しました"
	MsgRecordInvalid      = "学習内容と時間を入力してください"
)
