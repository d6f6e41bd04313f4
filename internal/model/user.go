// Package model はドメインモデルを定義する。
package model

import "time"

// User はメールアドレスとパスワードで登録されたアカウントを表す。
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Principal はIDプロバイダーが発行する認証済みの主体を表す。
// Emailはログイン識別子であり、学習記録の所有者キーでもある。
type Principal struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ResetToken はパスワード再設定用のワンタイムトークンを表す。
// TokenHashには平文トークンのSHA-256を保存する。
type ResetToken struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// PasswordChange はパスワード変更で同時に行う更新をまとめたもの。
// ResetTokenHashが空でなければ、そのトークンを使用済みにする。
// KeepSessionIDが空の場合はユーザーの全セッションを失効させる。
type PasswordChange struct {
	UserID         string
	PasswordHash   string
	KeepSessionID  string
	ResetTokenHash string
	ChangedAt      time.Time
}

// Usable はトークンが未使用かつ有効期限内かを判定する。
func (t *ResetToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}
