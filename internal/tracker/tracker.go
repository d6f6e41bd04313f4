// Package tracker はブラウザ1つ分の認証状態と学習記録一覧を保持する状態コンテナを提供する。
//
// すべての操作はエラーを返さない。失敗は通知として蓄積され、
// 画面側はDrainNoticesとTakeNavigationで結果を受け取る。
package tracker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/hitoshi/studylog/internal/identity"
	"github.com/hitoshi/studylog/internal/model"
)

// Auth はTrackerが利用するブラウザ単位の認証クライアント。
type Auth interface {
	CurrentPrincipal() *model.Principal
	OnAuthStateChanged(ctx context.Context, listener identity.Listener) (unsubscribe func())
	SignIn(ctx context.Context, email, password string) (*model.Principal, error)
	SignUp(ctx context.Context, email, password string) (*model.Principal, error)
	SignOut(ctx context.Context) error
	SendPasswordResetEmail(ctx context.Context, email string) error
	Reauthenticate(ctx context.Context, cred identity.Credential) error
	UpdatePassword(ctx context.Context, newPassword string) error
	Restore(ctx context.Context, sessionID string) error
	Refresh(ctx context.Context) error
}

// RecordStore は学習記録の永続化先。
type RecordStore interface {
	ListByOwner(ctx context.Context, owner string) ([]model.StudyRecord, error)
	Create(ctx context.Context, owner string, rec model.StudyRecord) (string, error)
	Update(ctx context.Context, rec model.StudyRecord) error
	Delete(ctx context.Context, id string) error
}

// Recorder は操作結果を計測する。
type Recorder interface {
	ObserveOperation(op string, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, error) {}

// Options はTrackerの任意設定。
type Options struct {
	Logger   *slog.Logger
	Recorder Recorder
}

// Tracker はブラウザ1つ分の状態コンテナ。
// mu は状態のみを保護し、外部呼び出しの間は保持しない。
type Tracker struct {
	auth     Auth
	store    RecordStore
	logger   *slog.Logger
	recorder Recorder

	mu sync.Mutex
	// loading は実行中の操作数。サインイン中の記録取得のように操作は入れ子になりうる。
	loading    int
	email      string
	principal  *model.Principal
	records    []model.StudyRecord
	notices    []Notice
	navigation string
	// generation は認証状態が変わるたびに進み、古い取得結果の反映を防ぐ。
	generation  uint64
	unsubscribe func()
}

// New はTrackerを生成する。認証状態の購読はStartで開始する。
func New(auth Auth, store RecordStore, opts Options) *Tracker {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	return &Tracker{
		auth:     auth,
		store:    store,
		logger:   opts.Logger,
		recorder: opts.Recorder,
	}
}

// Start は認証状態の購読を開始する。2回目以降の呼び出しは何もしない。
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	if t.unsubscribe != nil {
		t.mu.Unlock()
		return
	}
	// 購読直後の同期コールバック中に再入しないよう、先に印を付ける
	t.unsubscribe = func() {}
	t.mu.Unlock()

	unsubscribe := t.auth.OnAuthStateChanged(ctx, t.onAuthStateChanged)

	t.mu.Lock()
	t.unsubscribe = unsubscribe
	t.mu.Unlock()
}

// Close は認証状態の購読を解除する。
func (t *Tracker) Close() {
	t.mu.Lock()
	unsubscribe := t.unsubscribe
	t.unsubscribe = nil
	t.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Restore はCookieのセッションIDから認証状態を復元する。
func (t *Tracker) Restore(ctx context.Context, sessionID string) error {
	if err := t.auth.Restore(ctx, sessionID); err != nil {
		t.logger.Error("failed to restore session", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// Refresh は現在のセッションを再検証する。失効していればサインアウト状態になる。
func (t *Tracker) Refresh(ctx context.Context) error {
	if err := t.auth.Refresh(ctx); err != nil {
		t.logger.Error("failed to refresh session", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func (t *Tracker) onAuthStateChanged(ctx context.Context, event cloudevents.Event) {
	principal, err := identity.PrincipalFromEvent(event)
	if err != nil {
		t.logger.Error("invalid auth state event",
			slog.String("type", event.Type()),
			slog.String("error", err.Error()),
		)
		return
	}

	t.mu.Lock()
	t.generation++
	t.principal = principal
	if principal == nil {
		t.records = nil
		t.navigation = RouteLogin
		t.mu.Unlock()
		return
	}
	t.email = principal.Email
	t.mu.Unlock()

	t.FetchRecords(ctx, principal.Email)
}

// Loading は処理中かを返す。
func (t *Tracker) Loading() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loading > 0
}

// Email は入力中またはサインイン中のメールアドレスを返す。
func (t *Tracker) Email() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.email
}

// Principal は現在のプリンシパルを返す。サインアウト中はnil。
func (t *Tracker) Principal() *model.Principal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.principal
}

// Records は現在の記録一覧の複製を返す。
func (t *Tracker) Records() []model.StudyRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]model.StudyRecord(nil), t.records...)
}

// DrainNotices は蓄積された通知を返して空にする。
func (t *Tracker) DrainNotices() []Notice {
	t.mu.Lock()
	defer t.mu.Unlock()
	notices := t.notices
	t.notices = nil
	return notices
}

// TakeNavigation は保留中の遷移先を返して消去する。遷移がなければ空文字。
func (t *Tracker) TakeNavigation() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	route := t.navigation
	t.navigation = ""
	return route
}

// begin は実行中の操作数を増やし、現在の世代を返す。
func (t *Tracker) begin() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loading++
	return t.generation
}

func (t *Tracker) end() {
	t.mu.Lock()
	if t.loading > 0 {
		t.loading--
	}
	t.mu.Unlock()
}

func (t *Tracker) setEmail(email string) {
	t.mu.Lock()
	t.email = email
	t.mu.Unlock()
}

func (t *Tracker) navigate(route string) {
	t.mu.Lock()
	t.navigation = route
	t.mu.Unlock()
}

func (t *Tracker) notify(n Notice) {
	t.mu.Lock()
	t.notices = append(t.notices, n)
	t.mu.Unlock()
}

func (t *Tracker) succeed(op, title string) {
	t.recorder.ObserveOperation(op, nil)
	t.notify(Notice{Title: title, Severity: SeveritySuccess, Duration: shortNotice})
}

// fail は失敗をログに記録し、エラー文字列をそのまま載せた通知を積む。
func (t *Tracker) fail(op, title string, err error, duration time.Duration) {
	t.recorder.ObserveOperation(op, err)
	t.logger.Error(op+" failed", slog.String("error", err.Error()))
	t.notify(Notice{Title: title, Description: err.Error(), Severity: SeverityError, Duration: duration})
}

// reject は外部呼び出し前の入力検証エラーを通知する。
func (t *Tracker) reject(title string) {
	t.notify(Notice{Title: title, Severity: SeverityError, Duration: shortNotice})
}
