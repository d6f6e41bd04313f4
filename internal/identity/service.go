package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/studylog/internal/mail"
	"github.com/hitoshi/studylog/internal/model"
	"github.com/hitoshi/studylog/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int           // セッション有効期間（秒）
	ResetTokenTTL time.Duration // パスワード再設定トークンの有効期間
	BaseURL       string        // 再設定リンクの組み立てに使う公開URL
	BcryptCost    int           // 0の場合はbcrypt.DefaultCost
}

// Service はPostgreSQLに永続化されたアカウントとセッションで認証を行うProvider実装。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	tokenRepo   repository.ResetTokenRepository
	mailer      mail.Sender
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	tokenRepo repository.ResetTokenRepository,
	mailer mail.Sender,
	config ServiceConfig,
) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if config.ResetTokenTTL == 0 {
		config.ResetTokenTTL = time.Hour
	}
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		tokenRepo:   tokenRepo,
		mailer:      mailer,
		config:      config,
		now:         time.Now,
	}
}

// SignIn はメールアドレスとパスワードで認証し、セッションを発行する。
// 未登録のメールアドレスとパスワード不一致は区別せずErrInvalidCredentialsを返す。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Principal, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := verifyPassword(user.PasswordHash, password); err != nil {
		return nil, err
	}

	principal, err := s.createSession(ctx, user)
	if err != nil {
		return nil, err
	}

	slog.Info("user signed in", slog.String("user_id", user.ID))
	return principal, nil
}

// SignUp はアカウントを作成してサインインする。
func (s *Service) SignUp(ctx context.Context, email, password string) (*model.Principal, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := hashPassword(password, s.config.BcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        normalized,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	principal, err := s.createSession(ctx, user)
	if err != nil {
		return nil, err
	}

	slog.Info("new user created", slog.String("user_id", user.ID))
	return principal, nil
}

// SignOut はセッションを破棄する。
func (s *Service) SignOut(ctx context.Context, principal *model.Principal) error {
	if principal == nil || principal.SessionID == "" {
		return ErrNotSignedIn
	}

	if err := s.sessionRepo.DeleteByID(ctx, principal.SessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user signed out", slog.String("user_id", principal.UserID))
	return nil
}

// SendPasswordResetEmail は一度限り有効な再設定トークンを発行し、リンクをメール送信する。
// トークンはハッシュ値のみを保存する。
func (s *Service) SendPasswordResetEmail(ctx context.Context, email string) error {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	user, err := s.userRepo.FindByEmail(ctx, normalized)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	token, err := generateToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	now := s.now()
	if err := s.tokenRepo.Create(ctx, &model.ResetToken{
		TokenHash: hashToken(token),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.config.ResetTokenTTL),
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("failed to save reset token: %w", err)
	}

	msg, err := mail.ResetMessage(user.Email, s.resetLink(token), formatTTL(s.config.ResetTokenTTL))
	if err != nil {
		return err
	}
	if _, err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send reset mail: %w", err)
	}

	slog.Info("password reset mail sent", slog.String("user_id", user.ID))
	return nil
}

// ConfirmPasswordReset は再設定トークンを消費してパスワードを変更する。
// 変更後はそのユーザーの全セッションを失効させる。
// 更新に失敗した場合はトークンも未使用のまま残るため、同じリンクで再試行できる。
func (s *Service) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	tokenHash := hashToken(token)
	stored, err := s.tokenRepo.FindByHash(ctx, tokenHash)
	if err != nil {
		return fmt.Errorf("failed to find reset token: %w", err)
	}
	now := s.now()
	if stored == nil || !stored.Usable(now) {
		return ErrResetTokenInvalid
	}

	if err := s.setPassword(ctx, &model.PasswordChange{
		UserID:         stored.UserID,
		ResetTokenHash: tokenHash,
	}, newPassword); err != nil {
		if errors.Is(err, repository.ErrTokenAlreadyUsed) {
			return ErrResetTokenInvalid
		}
		return err
	}

	slog.Info("password reset completed", slog.String("user_id", stored.UserID))
	return nil
}

// Reauthenticate はサインイン中のユーザーのパスワードを再確認する。
// 資格情報のメールアドレスがプリンシパルと異なる場合も失敗とする。
func (s *Service) Reauthenticate(ctx context.Context, principal *model.Principal, cred Credential) error {
	if principal == nil {
		return ErrNotSignedIn
	}
	email, err := normalizeEmail(cred.Email)
	if err != nil {
		return err
	}
	if email != principal.Email {
		return ErrInvalidCredentials
	}

	user, err := s.userRepo.FindByID(ctx, principal.UserID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return ErrNotSignedIn
	}

	return verifyPassword(user.PasswordHash, cred.Password)
}

// UpdatePassword はパスワードを変更し、現在のセッション以外を失効させる。
func (s *Service) UpdatePassword(ctx context.Context, principal *model.Principal, newPassword string) error {
	if principal == nil {
		return ErrNotSignedIn
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	if err := s.setPassword(ctx, &model.PasswordChange{
		UserID:        principal.UserID,
		KeepSessionID: principal.SessionID,
	}, newPassword); err != nil {
		return err
	}

	slog.Info("password updated", slog.String("user_id", principal.UserID))
	return nil
}

// Verify はセッションIDからプリンシパルを復元する。
func (s *Service) Verify(ctx context.Context, sessionID string) (*model.Principal, error) {
	if sessionID == "" {
		return nil, ErrNotSignedIn
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, ErrNotSignedIn
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrNotSignedIn
	}

	return &model.Principal{
		UserID:    user.ID,
		Email:     user.Email,
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// setPassword は新しいパスワードをハッシュ化し、changeの内容と合わせて一括で反映する。
func (s *Service) setPassword(ctx context.Context, change *model.PasswordChange, newPassword string) error {
	hash, err := hashPassword(newPassword, s.config.BcryptCost)
	if err != nil {
		return err
	}
	change.PasswordHash = hash
	change.ChangedAt = s.now()
	if err := s.userRepo.ChangePassword(ctx, change); err != nil {
		if errors.Is(err, repository.ErrTokenAlreadyUsed) {
			return err
		}
		return fmt.Errorf("failed to change password: %w", err)
	}
	return nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, user *model.User) (*model.Principal, error) {
	sessionID, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    user.ID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return &model.Principal{
		UserID:    user.ID,
		Email:     user.Email,
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

func (s *Service) resetLink(token string) string {
	return s.config.BaseURL + "/resetPassword?token=" + url.QueryEscape(token)
}

// generateToken は暗号的に安全な32バイトのランダム値を16進文字列で返す。
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func formatTTL(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%d時間", int(d/time.Hour))
	}
	return fmt.Sprintf("%d分", int(d/time.Minute))
}

// compile-time interface check
var _ Provider = (*Service)(nil)
