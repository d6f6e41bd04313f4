package identity

import "errors"

var (
	// ErrInvalidCredentials はメールアドレスまたはパスワードが誤っていることを示す。
	ErrInvalidCredentials = errors.New("identity: invalid email or password")
	// ErrEmailInUse はメールアドレスが登録済みであることを示す。
	ErrEmailInUse = errors.New("identity: email already in use")
	// ErrWeakPassword はパスワードが短すぎることを示す。
	ErrWeakPassword = errors.New("identity: password should be at least 6 characters")
	// ErrInvalidEmail はメールアドレスの形式が不正であることを示す。
	ErrInvalidEmail = errors.New("identity: invalid email address")
	// ErrUserNotFound は該当するアカウントが存在しないことを示す。
	ErrUserNotFound = errors.New("identity: user not found")
	// ErrResetTokenInvalid は再設定トークンが無効・期限切れ・使用済みであることを示す。
	ErrResetTokenInvalid = errors.New("identity: reset token is invalid or expired")
	// ErrNotSignedIn はサインイン状態が必要な操作をサインインなしで呼んだことを示す。
	ErrNotSignedIn = errors.New("identity: not signed in")
)
