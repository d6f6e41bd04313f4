package identity

import (
	"context"
	"errors"
	"sync"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/hitoshi/studylog/internal/model"
)

// Listener は認証状態の変化を受け取るコールバック。
type Listener func(ctx context.Context, event cloudevents.Event)

// Client はブラウザ1つ分の認証状態を保持するProviderのハンドル。
// 状態が変化するたびに登録済みのListenerへイベントを配信する。
type Client struct {
	provider Provider

	mu        sync.Mutex
	principal *model.Principal
	listeners map[int]Listener
	nextID    int
}

// NewClient はサインアウト状態のClientを生成する。
func NewClient(provider Provider) *Client {
	return &Client{
		provider:  provider,
		listeners: make(map[int]Listener),
	}
}

// CurrentPrincipal は現在のプリンシパルを返す。サインアウト中はnil。
func (c *Client) CurrentPrincipal() *model.Principal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.principal
}

// OnAuthStateChanged はListenerを登録し、現在の状態で即座に1回呼び出す。
// 戻り値の関数で登録を解除する。
func (c *Client) OnAuthStateChanged(ctx context.Context, listener Listener) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = listener
	current := c.principal
	c.mu.Unlock()

	listener(ctx, newAuthEvent(current))

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// SignIn は認証に成功するとサインイン状態に遷移する。
func (c *Client) SignIn(ctx context.Context, email, password string) (*model.Principal, error) {
	principal, err := c.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.setPrincipal(ctx, principal)
	return principal, nil
}

// SignUp はアカウント作成に成功するとサインイン状態に遷移する。
func (c *Client) SignUp(ctx context.Context, email, password string) (*model.Principal, error) {
	principal, err := c.provider.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.setPrincipal(ctx, principal)
	return principal, nil
}

// SignOut はセッションを破棄してサインアウト状態に遷移する。
func (c *Client) SignOut(ctx context.Context) error {
	principal := c.CurrentPrincipal()
	if principal == nil {
		return ErrNotSignedIn
	}
	if err := c.provider.SignOut(ctx, principal); err != nil {
		return err
	}
	c.setPrincipal(ctx, nil)
	return nil
}

// SendPasswordResetEmail はパスワード再設定メールを送信する。認証状態は変えない。
func (c *Client) SendPasswordResetEmail(ctx context.Context, email string) error {
	return c.provider.SendPasswordResetEmail(ctx, email)
}

// Reauthenticate は現在のプリンシパルで資格情報を再確認する。
func (c *Client) Reauthenticate(ctx context.Context, cred Credential) error {
	principal := c.CurrentPrincipal()
	if principal == nil {
		return ErrNotSignedIn
	}
	return c.provider.Reauthenticate(ctx, principal, cred)
}

// UpdatePassword は現在のプリンシパルのパスワードを変更する。
func (c *Client) UpdatePassword(ctx context.Context, newPassword string) error {
	principal := c.CurrentPrincipal()
	if principal == nil {
		return ErrNotSignedIn
	}
	return c.provider.UpdatePassword(ctx, principal, newPassword)
}

// Restore はCookieに保存されたセッションIDから認証状態を復元する。
// セッションが無効な場合はサインアウト状態になる。
func (c *Client) Restore(ctx context.Context, sessionID string) error {
	principal, err := c.provider.Verify(ctx, sessionID)
	if errors.Is(err, ErrNotSignedIn) {
		c.setPrincipal(ctx, nil)
		return nil
	}
	if err != nil {
		return err
	}
	c.setPrincipal(ctx, principal)
	return nil
}

// Refresh は現在のセッションを再検証し、期限切れや失効を検出したらサインアウト状態にする。
func (c *Client) Refresh(ctx context.Context) error {
	principal := c.CurrentPrincipal()
	if principal == nil {
		return nil
	}
	return c.Restore(ctx, principal.SessionID)
}

// setPrincipal は状態を更新し、変化があった場合のみListenerに通知する。
func (c *Client) setPrincipal(ctx context.Context, principal *model.Principal) {
	c.mu.Lock()
	if samePrincipal(c.principal, principal) {
		c.mu.Unlock()
		return
	}
	c.principal = principal
	listeners := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	event := newAuthEvent(principal)
	for _, l := range listeners {
		l(ctx, event)
	}
}

func samePrincipal(a, b *model.Principal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.SessionID == b.SessionID && a.UserID == b.UserID
}
