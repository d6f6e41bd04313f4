package handler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hitoshi/studylog/internal/identity"
	"github.com/hitoshi/studylog/internal/model"
)

// --- テスト用モック ---

// fakeProvider はメモリ上でアカウントとセッションを管理するidentity.Provider。
type fakeProvider struct {
	mu       sync.Mutex
	users    map[string]string
	sessions map[string]*model.Principal
	resets   []string
	nextID   int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		users:    map[string]string{},
		sessions: map[string]*model.Principal{},
	}
}

func (p *fakeProvider) SignIn(ctx context.Context, email, password string) (*model.Principal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pw, ok := p.users[email]; !ok || pw != password {
		return nil, identity.ErrInvalidCredentials
	}
	return p.newSessionLocked(email), nil
}

func (p *fakeProvider) SignUp(ctx context.Context, email, password string) (*model.Principal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.users[email]; ok {
		return nil, identity.ErrEmailInUse
	}
	p.users[email] = password
	return p.newSessionLocked(email), nil
}

func (p *fakeProvider) SignOut(ctx context.Context, principal *model.Principal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, principal.SessionID)
	return nil
}

func (p *fakeProvider) SendPasswordResetEmail(ctx context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets = append(p.resets, email)
	return nil
}

func (p *fakeProvider) Reauthenticate(ctx context.Context, principal *model.Principal, cred identity.Credential) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.users[principal.Email] != cred.Password {
		return identity.ErrInvalidCredentials
	}
	return nil
}

func (p *fakeProvider) UpdatePassword(ctx context.Context, principal *model.Principal, newPassword string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[principal.Email] = newPassword
	return nil
}

func (p *fakeProvider) Verify(ctx context.Context, sessionID string) (*model.Principal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if principal, ok := p.sessions[sessionID]; ok {
		return principal, nil
	}
	return nil, identity.ErrNotSignedIn
}

func (p *fakeProvider) newSessionLocked(email string) *model.Principal {
	p.nextID++
	principal := &model.Principal{
		UserID:    fmt.Sprintf("user-%s", email),
		Email:     email,
		SessionID: fmt.Sprintf("session-%d", p.nextID),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	p.sessions[principal.SessionID] = principal
	return principal
}

// mockRecordStore は関数フィールドで振る舞いを差し替えるtracker.RecordStore。
type mockRecordStore struct {
	listByOwnerFn func(ctx context.Context, owner string) ([]model.StudyRecord, error)
	createFn      func(ctx context.Context, owner string, rec model.StudyRecord) (string, error)
	updateFn      func(ctx context.Context, rec model.StudyRecord) error
	deleteFn      func(ctx context.Context, id string) error
}

func (m *mockRecordStore) ListByOwner(ctx context.Context, owner string) ([]model.StudyRecord, error) {
	if m.listByOwnerFn != nil {
		return m.listByOwnerFn(ctx, owner)
	}
	return nil, nil
}

func (m *mockRecordStore) Create(ctx context.Context, owner string, rec model.StudyRecord) (string, error) {
	if m.createFn != nil {
		return m.createFn(ctx, owner, rec)
	}
	return "", errors.New("not implemented")
}

func (m *mockRecordStore) Update(ctx context.Context, rec model.StudyRecord) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, rec)
	}
	return errors.New("not implemented")
}

func (m *mockRecordStore) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return errors.New("not implemented")
}

// mockResetter はPasswordResetterのモック。
type mockResetter struct {
	confirmFn func(ctx context.Context, token, newPassword string) error
	calls     []string
}

func (m *mockResetter) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	m.calls = append(m.calls, token)
	if m.confirmFn != nil {
		return m.confirmFn(ctx, token, newPassword)
	}
	return nil
}

// mockHealthChecker はHealthCheckerのモック。
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}
