package tracker

import (
	"context"
	"fmt"
	"sync"

	"github.com/hitoshi/studylog/internal/identity"
	"github.com/hitoshi/studylog/internal/model"
)

// fakeProvider はメモリ上のidentity.Provider。呼び出し回数を記録する。
type fakeProvider struct {
	mu        sync.Mutex
	passwords map[string]string // email -> password
	sessions  map[string]string // sessionID -> email
	nextID    int
	calls     map[string]int

	signInErr  error
	signOutErr error
	resetErr   error
	updateErr  error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		passwords: map[string]string{},
		sessions:  map[string]string{},
		calls:     map[string]int{},
	}
}

func (p *fakeProvider) called(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

func (p *fakeProvider) totalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for op, c := range p.calls {
		if op != "Verify" {
			n += c
		}
	}
	return n
}

func (p *fakeProvider) newSession(email string) *model.Principal {
	p.nextID++
	id := fmt.Sprintf("session-%d", p.nextID)
	p.sessions[id] = email
	return &model.Principal{UserID: "uid-" + email, Email: email, SessionID: id}
}

func (p *fakeProvider) SignIn(_ context.Context, email, password string) (*model.Principal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["SignIn"]++
	if p.signInErr != nil {
		return nil, p.signInErr
	}
	if pw, ok := p.passwords[email]; !ok || pw != password {
		return nil, identity.ErrInvalidCredentials
	}
	return p.newSession(email), nil
}

func (p *fakeProvider) SignUp(_ context.Context, email, password string) (*model.Principal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["SignUp"]++
	if _, ok := p.passwords[email]; ok {
		return nil, identity.ErrEmailInUse
	}
	p.passwords[email] = password
	return p.newSession(email), nil
}

func (p *fakeProvider) SignOut(_ context.Context, principal *model.Principal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["SignOut"]++
	if p.signOutErr != nil {
		return p.signOutErr
	}
	delete(p.sessions, principal.SessionID)
	return nil
}

func (p *fakeProvider) SendPasswordResetEmail(_ context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["SendPasswordResetEmail"]++
	if p.resetErr != nil {
		return p.resetErr
	}
	if _, ok := p.passwords[email]; !ok {
		return identity.ErrUserNotFound
	}
	return nil
}

func (p *fakeProvider) Reauthenticate(_ context.Context, principal *model.Principal, cred identity.Credential) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["Reauthenticate"]++
	if cred.Email != principal.Email || p.passwords[cred.Email] != cred.Password {
		return identity.ErrInvalidCredentials
	}
	return nil
}

func (p *fakeProvider) UpdatePassword(_ context.Context, principal *model.Principal, newPassword string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["UpdatePassword"]++
	if p.updateErr != nil {
		return p.updateErr
	}
	p.passwords[principal.Email] = newPassword
	return nil
}

func (p *fakeProvider) Verify(_ context.Context, sessionID string) (*model.Principal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["Verify"]++
	email, ok := p.sessions[sessionID]
	if !ok {
		return nil, identity.ErrNotSignedIn
	}
	return &model.Principal{UserID: "uid-" + email, Email: email, SessionID: sessionID}, nil
}

// revoke はセッションを外部から失効させる。
func (p *fakeProvider) revoke(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, sessionID)
}

// mockRecordStore はRecordStoreのモック。未設定の関数はゼロ値を返す。
type mockRecordStore struct {
	listFn   func(ctx context.Context, owner string) ([]model.StudyRecord, error)
	createFn func(ctx context.Context, owner string, rec model.StudyRecord) (string, error)
	updateFn func(ctx context.Context, rec model.StudyRecord) error
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockRecordStore) ListByOwner(ctx context.Context, owner string) ([]model.StudyRecord, error) {
	if m.listFn != nil {
		return m.listFn(ctx, owner)
	}
	return nil, nil
}

func (m *mockRecordStore) Create(ctx context.Context, owner string, rec model.StudyRecord) (string, error) {
	if m.createFn != nil {
		return m.createFn(ctx, owner, rec)
	}
	return "new-id", nil
}

func (m *mockRecordStore) Update(ctx context.Context, rec model.StudyRecord) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, rec)
	}
	return nil
}

func (m *mockRecordStore) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// recordingRecorder は操作結果を記録するRecorder。
type recordingRecorder struct {
	mu  sync.Mutex
	ops []string
}

func (r *recordingRecorder) ObserveOperation(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.ops = append(r.ops, op+":"+result)
}
