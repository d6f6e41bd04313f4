package tracker

import (
	"context"
	"unicode/utf8"

	"github.com/hitoshi/studylog/internal/identity"
)

// LoginForm はログイン画面の入力。
type LoginForm struct {
	Email    string
	Password string
}

// SignupForm はユーザー登録画面の入力。
type SignupForm struct {
	Email        string
	Password     string
	PasswordConf string
}

// PasswordForm はパスワード変更画面の入力。
type PasswordForm struct {
	CurrentPassword string
	Password        string
	PasswordConf    string
}

// ResetForm はパスワード再設定申請画面の入力。
type ResetForm struct {
	Email string
}

// Login はメールアドレスとパスワードでサインインし、ホームへ遷移する。
func (t *Tracker) Login(ctx context.Context, form LoginForm) {
	t.setEmail(form.Email)
	t.begin()
	defer t.end()

	if _, err := t.auth.SignIn(ctx, form.Email, form.Password); err != nil {
		t.fail("login", MsgLoginFailed, err, shortNotice)
		return
	}
	t.succeed("login", MsgLoginSucceeded)
	t.navigate(RouteHome)
}

// Signup はアカウントを作成してサインインし、ホームへ遷移する。
// 確認用パスワードの不一致と文字数不足は外部呼び出しの前に拒否する。
func (t *Tracker) Signup(ctx context.Context, form SignupForm) {
	if !t.validateNewPassword(form.Password, form.PasswordConf) {
		return
	}

	t.setEmail(form.Email)
	t.begin()
	defer t.end()

	if _, err := t.auth.SignUp(ctx, form.Email, form.Password); err != nil {
		t.fail("signup", MsgSignupFailed, err, longNotice)
		return
	}
	t.succeed("signup", MsgSignupSucceeded)
	t.navigate(RouteHome)
}

// Logout はサインアウトしてログイン画面へ遷移する。
func (t *Tracker) Logout(ctx context.Context) {
	t.begin()
	defer t.end()

	if err := t.auth.SignOut(ctx); err != nil {
		t.fail("logout", MsgLogoutFailed, err, longNotice)
		return
	}
	t.succeed("logout", MsgLogoutSucceeded)
	t.navigate(RouteLogin)
}

// UpdateCurrentPassword は現在のパスワードで再認証してからパスワードを変更する。
// 再認証と変更の両方が成功した場合のみホームへ遷移する。
func (t *Tracker) UpdateCurrentPassword(ctx context.Context, form PasswordForm) {
	if !t.validateNewPassword(form.Password, form.PasswordConf) {
		return
	}

	t.begin()
	defer t.end()

	principal := t.auth.CurrentPrincipal()
	if principal == nil {
		t.fail("update_password", MsgPasswordFailed, identity.ErrNotSignedIn, longNotice)
		return
	}

	cred := identity.EmailCredential(principal.Email, form.CurrentPassword)
	if err := t.auth.Reauthenticate(ctx, cred); err != nil {
		t.fail("update_password", MsgPasswordFailed, err, longNotice)
		return
	}
	if err := t.auth.UpdatePassword(ctx, form.Password); err != nil {
		t.fail("update_password", MsgPasswordFailed, err, longNotice)
		return
	}
	t.succeed("update_password", MsgPasswordUpdated)
	t.navigate(RouteHome)
}

// RequestPasswordReset はパスワード再設定メールを送信し、ログイン画面へ遷移する。
func (t *Tracker) RequestPasswordReset(ctx context.Context, form ResetForm) {
	t.setEmail(form.Email)
	t.begin()
	defer t.end()

	if err := t.auth.SendPasswordResetEmail(ctx, form.Email); err != nil {
		t.fail("password_reset", MsgPasswordFailed, err, shortNotice)
		return
	}
	t.succeed("password_reset", MsgResetMailSent)
	t.navigate(RouteLogin)
}

func (t *Tracker) validateNewPassword(password, confirmation string) bool {
	if password != confirmation {
		t.reject(MsgPasswordMismatch)
		return false
	}
	if utf8.RuneCountInString(password) < identity.MinPasswordLength {
		t.reject(MsgPasswordTooShort)
		return false
	}
	return true
}
