package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/studylog/internal/model"
)

// PostgresResetTokenRepo はPostgreSQLを使用したパスワード再設定トークンリポジトリ。
type PostgresResetTokenRepo struct {
	db *sql.DB
}

// NewPostgresResetTokenRepo はPostgresResetTokenRepoを生成する。
func NewPostgresResetTokenRepo(db *sql.DB) *PostgresResetTokenRepo {
	return &PostgresResetTokenRepo{db: db}
}

// Create はトークンを保存する。
func (r *PostgresResetTokenRepo) Create(ctx context.Context, token *model.ResetToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO password_reset_tokens (token_hash, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		token.TokenHash, token.UserID, token.ExpiresAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create reset token: %w", err)
	}
	return nil
}

// FindByHash はトークンハッシュで検索する。見つからない場合はnilを返す。
func (r *PostgresResetTokenRepo) FindByHash(ctx context.Context, tokenHash string) (*model.ResetToken, error) {
	token := &model.ResetToken{}
	var usedAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT token_hash, user_id, expires_at, used_at, created_at
		 FROM password_reset_tokens
		 WHERE token_hash = $1`,
		tokenHash,
	).Scan(&token.TokenHash, &token.UserID, &token.ExpiresAt, &usedAt, &token.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find reset token: %w", err)
	}
	if usedAt.Valid {
		token.UsedAt = &usedAt.Time
	}

	return token, nil
}

// DeleteExpired は期限切れまたは使用済みのトークンを削除し、削除件数を返す。
func (r *PostgresResetTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM password_reset_tokens WHERE expires_at <= $1 OR used_at IS NOT NULL`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired reset tokens: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ ResetTokenRepository = (*PostgresResetTokenRepo)(nil)
