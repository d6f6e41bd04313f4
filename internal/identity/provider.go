// Package identity はメールアドレスとパスワードによる認証、セッション、
// パスワード再設定、ブラウザ単位の認証状態通知を提供する。
package identity

import (
	"context"

	"github.com/hitoshi/studylog/internal/model"
)

// MinPasswordLength はパスワードの最小文字数。
const MinPasswordLength = 6

// Credential は再認証に使う資格情報。
type Credential struct {
	Email    string
	Password string
}

// EmailCredential はメールアドレスとパスワードから資格情報を作る。
func EmailCredential(email, password string) Credential {
	return Credential{Email: email, Password: password}
}

// Provider は認証プロバイダーのインターフェース。
type Provider interface {
	// SignIn はメールアドレスとパスワードで認証し、新しいセッションを発行する。
	SignIn(ctx context.Context, email, password string) (*model.Principal, error)
	// SignUp はアカウントを作成し、そのままサインインする。
	SignUp(ctx context.Context, email, password string) (*model.Principal, error)
	// SignOut はプリンシパルのセッションを破棄する。
	SignOut(ctx context.Context, principal *model.Principal) error
	// SendPasswordResetEmail はパスワード再設定リンクをメール送信する。
	SendPasswordResetEmail(ctx context.Context, email string) error
	// Reauthenticate はサインイン中のプリンシパルに対して資格情報を再確認する。
	Reauthenticate(ctx context.Context, principal *model.Principal, cred Credential) error
	// UpdatePassword はプリンシパルのパスワードを変更する。
	UpdatePassword(ctx context.Context, principal *model.Principal, newPassword string) error
	// Verify はセッションIDを検証し、有効ならプリンシパルを返す。
	// 期限切れや失効済みの場合はErrNotSignedInを返す。
	Verify(ctx context.Context, sessionID string) (*model.Principal, error)
}
