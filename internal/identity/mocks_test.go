package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/studylog/internal/mail"
	"github.com/hitoshi/studylog/internal/model"
	"github.com/hitoshi/studylog/internal/repository"
)

// --- モック定義 ---

// memUserRepo はメモリ上のUserRepository。errFnを設定するとその結果を返す。
// ChangePasswordはsessionsとtokensにも反映する。
type memUserRepo struct {
	mu       sync.Mutex
	users    map[string]*model.User
	sessions *memSessionRepo
	tokens   *memTokenRepo
	errFn    func(op string) error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*model.User)}
}

func (m *memUserRepo) fail(op string) error {
	if m.errFn != nil {
		return m.errFn(op)
	}
	return nil
}

func (m *memUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	if err := m.fail("FindByID"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	if err := m.fail("FindByEmail"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == strings.ToLower(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUserRepo) Create(_ context.Context, user *model.User) error {
	if err := m.fail("Create"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == strings.ToLower(user.Email) {
			return repository.ErrDuplicateEmail
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

// ChangePassword は失敗時に何も変更しない。
func (m *memUserRepo) ChangePassword(_ context.Context, change *model.PasswordChange) error {
	if err := m.fail("ChangePassword"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[change.UserID]
	if !ok {
		return repository.ErrUserNotFound
	}
	if change.ResetTokenHash != "" {
		if err := m.tokens.markUsed(change.ResetTokenHash, change.ChangedAt); err != nil {
			return err
		}
	}
	u.PasswordHash = change.PasswordHash
	u.UpdatedAt = change.ChangedAt
	m.sessions.deleteByUserIDExcept(change.UserID, change.KeepSessionID)
	return nil
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	now      func() time.Time
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*model.Session), now: time.Now}
}

func (m *memSessionRepo) Create(_ context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memSessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || !s.ExpiresAt.After(m.now()) {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memSessionRepo) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memSessionRepo) deleteByUserIDExcept(userID, keepID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.UserID == userID && id != keepID {
			delete(m.sessions, id)
		}
	}
}

func (m *memSessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if !s.ExpiresAt.After(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *memSessionRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

type memTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*model.ResetToken
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{tokens: make(map[string]*model.ResetToken)}
}

func (m *memTokenRepo) Create(_ context.Context, t *model.ResetToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tokens[t.TokenHash] = &cp
	return nil
}

func (m *memTokenRepo) FindByHash(_ context.Context, hash string) (*model.ResetToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[hash]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *memTokenRepo) markUsed(hash string, usedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[hash]
	if !ok || !t.Usable(usedAt) {
		return repository.ErrTokenAlreadyUsed
	}
	t.UsedAt = &usedAt
	return nil
}

func (m *memTokenRepo) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type mockMailer struct {
	sendFn func(ctx context.Context, msg mail.Message) (mail.Receipt, error)
	sent   []mail.Message
}

func (m *mockMailer) Send(ctx context.Context, msg mail.Message) (mail.Receipt, error) {
	m.sent = append(m.sent, msg)
	if m.sendFn != nil {
		return m.sendFn(ctx, msg)
	}
	return mail.Receipt{MessageID: "test"}, nil
}

// mockProvider はProviderのモック。未設定の関数はゼロ値を返す。
type mockProvider struct {
	signInFn         func(ctx context.Context, email, password string) (*model.Principal, error)
	signUpFn         func(ctx context.Context, email, password string) (*model.Principal, error)
	signOutFn        func(ctx context.Context, p *model.Principal) error
	sendResetFn      func(ctx context.Context, email string) error
	reauthenticateFn func(ctx context.Context, p *model.Principal, cred Credential) error
	updatePasswordFn func(ctx context.Context, p *model.Principal, newPassword string) error
	verifyFn         func(ctx context.Context, sessionID string) (*model.Principal, error)
}

func (m *mockProvider) SignIn(ctx context.Context, email, password string) (*model.Principal, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockProvider) SignUp(ctx context.Context, email, password string) (*model.Principal, error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockProvider) SignOut(ctx context.Context, p *model.Principal) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, p)
	}
	return nil
}

func (m *mockProvider) SendPasswordResetEmail(ctx context.Context, email string) error {
	if m.sendResetFn != nil {
		return m.sendResetFn(ctx, email)
	}
	return nil
}

func (m *mockProvider) Reauthenticate(ctx context.Context, p *model.Principal, cred Credential) error {
	if m.reauthenticateFn != nil {
		return m.reauthenticateFn(ctx, p, cred)
	}
	return nil
}

func (m *mockProvider) UpdatePassword(ctx context.Context, p *model.Principal, newPassword string) error {
	if m.updatePasswordFn != nil {
		return m.updatePasswordFn(ctx, p, newPassword)
	}
	return nil
}

func (m *mockProvider) Verify(ctx context.Context, sessionID string) (*model.Principal, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, sessionID)
	}
	return nil, ErrNotSignedIn
}
