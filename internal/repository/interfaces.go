// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/studylog/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	// メールアドレスは小文字に正規化された値で比較する。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// メールアドレスが登録済みの場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// ChangePassword はパスワードハッシュの更新、セッションの失効、再設定トークンの消費を
	// 同一トランザクションで行う。いずれかが失敗した場合は何も反映しない。
	// トークンが使用済みまたは期限切れの場合はErrTokenAlreadyUsedを返す。
	ChangePassword(ctx context.Context, change *model.PasswordChange) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ResetTokenRepository はパスワード再設定トークンの永続化インターフェース。
type ResetTokenRepository interface {
	// Create はトークンを保存する。
	Create(ctx context.Context, token *model.ResetToken) error
	// FindByHash はトークンハッシュで検索する。見つからない場合はnilを返す。
	FindByHash(ctx context.Context, tokenHash string) (*model.ResetToken, error)
	// DeleteExpired は期限切れまたは使用済みのトークンを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
