// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"crypto/sha256"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/hitoshi/studylog/internal/tracker"
)

const (
	// BrowserSessionName はブラウザコンテキストを保持するCookieの名前。
	BrowserSessionName = "studylog"

	browserIDKey       = "browser_id"
	identitySessionKey = "session_id"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	trackerContextKey        = contextKey("tracker")
	browserSessionContextKey = contextKey("browser_session")
	browserIDContextKey      = contextKey("browser_id")
)

// ErrNoBrowserContext はブラウザコンテキストミドルウェアを通過していないリクエストで返る。
var ErrNoBrowserContext = errors.New("browser context not found")

// TrackerSource はブラウザコンテキストIDに対応するTrackerを返す。
// tracker.Registryが実装する。
type TrackerSource interface {
	Get(ctx context.Context, browserID, sessionID string) (*tracker.Tracker, error)
	// Remove はTrackerを破棄する。次のGetで新しく作成される。
	Remove(browserID string)
}

// BrowserSessionConfig はブラウザコンテキストCookieの設定。
type BrowserSessionConfig struct {
	Secret string
	MaxAge int
	Secure bool
	Domain string
}

// NewBrowserSessionStore は署名と暗号化を行うCookieストアを生成する。
// 暗号鍵はSecretのSHA-256から導出する。
func NewBrowserSessionStore(cfg BrowserSessionConfig) *sessions.CookieStore {
	blockKey := sha256.Sum256([]byte(cfg.Secret))
	store := sessions.NewCookieStore([]byte(cfg.Secret), blockKey[:])

	store.MaxAge(cfg.MaxAge)
	store.Options.Path = "/"
	store.Options.Domain = cfg.Domain
	store.Options.HttpOnly = true
	store.Options.Secure = cfg.Secure
	store.Options.SameSite = http.SameSiteLaxMode

	return store
}

// NewBrowserContextMiddleware はCookieからブラウザコンテキストを読み取り、
// 対応するTrackerをリクエストコンテキストに注入するミドルウェアを返す。
// 初回アクセスではブラウザコンテキストIDを発行してCookieに保存する。
func NewBrowserContextMiddleware(store sessions.Store, source TrackerSource, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 復号できないCookieでも新しいセッションが返る
			session, err := store.Get(r, BrowserSessionName)
			if err != nil {
				logger.Warn("discarding unreadable browser session",
					slog.String("error", err.Error()),
				)
			}

			browserID, _ := session.Values[browserIDKey].(string)
			if browserID == "" {
				browserID = uuid.NewString()
				session.Values = map[interface{}]interface{}{browserIDKey: browserID}
				if err := session.Save(r, w); err != nil {
					logger.Error("failed to save browser session",
						slog.String("error", err.Error()),
					)
				}
			}
			sessionID, _ := session.Values[identitySessionKey].(string)

			annotate(r.Context(), slog.String("browser_id", browserID))

			t, err := source.Get(r.Context(), browserID, sessionID)
			if err != nil {
				logger.Error("failed to load browser context",
					slog.String("browser_id", browserID),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			if p := t.Principal(); p != nil {
				annotate(r.Context(), slog.String("user_id", p.UserID))
			}

			ctx := context.WithValue(r.Context(), trackerContextKey, t)
			ctx = context.WithValue(ctx, browserSessionContextKey, session)
			ctx = context.WithValue(ctx, browserIDContextKey, browserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TrackerFromContext はリクエストコンテキストからTrackerを取得する。
func TrackerFromContext(ctx context.Context) (*tracker.Tracker, error) {
	t, ok := ctx.Value(trackerContextKey).(*tracker.Tracker)
	if !ok || t == nil {
		return nil, ErrNoBrowserContext
	}
	return t, nil
}

// BrowserSessionFromContext はリクエストコンテキストからブラウザコンテキストCookieのセッションを取得する。
func BrowserSessionFromContext(ctx context.Context) (*sessions.Session, error) {
	s, ok := ctx.Value(browserSessionContextKey).(*sessions.Session)
	if !ok || s == nil {
		return nil, ErrNoBrowserContext
	}
	return s, nil
}

// BrowserIDFromContext はリクエストコンテキストからブラウザコンテキストIDを取得する。
func BrowserIDFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(browserIDContextKey).(string)
	if !ok || id == "" {
		return "", ErrNoBrowserContext
	}
	return id, nil
}

// SaveBrowserContext はTrackerの認証状態をCookieへ反映して保存する。
// レスポンス本文を書き込む前に呼び出す必要がある。
func SaveBrowserContext(w http.ResponseWriter, r *http.Request) error {
	session, err := BrowserSessionFromContext(r.Context())
	if err != nil {
		return err
	}
	t, err := TrackerFromContext(r.Context())
	if err != nil {
		return err
	}

	if p := t.Principal(); p != nil {
		session.Values[identitySessionKey] = p.SessionID
	} else {
		delete(session.Values, identitySessionKey)
	}
	return session.Save(r, w)
}
