package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/studylog/internal/identity"
	"github.com/hitoshi/studylog/internal/middleware"
	"github.com/hitoshi/studylog/internal/model"
	"github.com/hitoshi/studylog/internal/security"
	"github.com/hitoshi/studylog/internal/tracker"
)

// RouteResetPassword はメールのリンクから開くパスワード再設定画面。
const RouteResetPassword = "/resetPassword"

// PasswordResetter はメールで届いたトークンでパスワードを再設定する。
type PasswordResetter interface {
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
}

// PageHandler はHTML画面のハンドラー。
type PageHandler struct {
	sanitizer security.TitleSanitizer
	resetter  PasswordResetter
	trackers  middleware.TrackerSource
}

// NewPageHandler は新しいPageHandlerを生成する。
func NewPageHandler(sanitizer security.TitleSanitizer, resetter PasswordResetter, trackers middleware.TrackerSource) *PageHandler {
	return &PageHandler{sanitizer: sanitizer, resetter: resetter, trackers: trackers}
}

// Home は学習記録一覧を表示する。未ログインの場合はログイン画面へ遷移する。
// GET /
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTracker(w, r)
	if !ok {
		return
	}
	if t.Principal() == nil {
		redirect(w, r, t, tracker.RouteLogin)
		return
	}
	renderPage(w, r, t, "home", pageData{
		Title:        "学習記録",
		Records:      t.Records(),
		TotalMinutes: t.TotalMinutes(),
	})
}

// LoginPage はログイン画面を表示する。
// GET /login
func (h *PageHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTracker(w, r)
	if !ok {
		return
	}
	if t.Principal() != nil {
		redirect(w, r, t, tracker.RouteHome)
		return
	}
	renderPage(w, r, t, "login", pageData{Title: "ログイン"})
}

// Login はログインフォームを処理する。
// POST /login
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTracker(w, r)
	if !ok {
		return
	}
	t.Login(r.Context(), tracker.LoginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	})
	finish(w, r, t, tracker.RouteLogin)
}

// RegisterPage はユーザー登録画面を表示する。
// GET /register
func (h *PageHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTracker(w, r)
	if !ok {
		return
	}
	renderPage(w, r, t, "register", pageData{Title: "ユーザー登録"})
}

// Register はユーザー登録フォームを処理する。
// POST /register
func (h *PageHandler) Register(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTracker(w, r)
	if !ok {
		return
	}
	t.Signup(r.Context(), tracker.SignupForm{
		Email:        strings.TrimSpace(r.PostFormValue("email")),
		Password:     r.PostFormValue("password"),
		PasswordConf: r.PostFormValue("passwordConf"),
	})
	finish(w, r, t, tracker.RouteRegister)
}

// Logout はサインアウトする。
// POST /logout
func (h *PageHandler) Logout(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTracker(w, r)
	if !ok {
		return
	}
	t.Logout(r.Context())
	finish(w, r, t, tracker.RouteLogin)

	// 通知はCookieへ移したため、サインアウト済みのTrackerは破棄してよい
	if t.Principal() == nil {
		if browserID, err := middleware.BrowserIDFromContext(r.Context()); err == nil {
			h.trackers.Remove(browserID)
		}
	}
}

// SendResetPage はパスワード再設定メールの送信画面を表示する。
// GET /sendReset
func (h *PageHandler) SendResetPage(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTracker(w, r)
	if !ok {
		return
	}
	renderPage(w, r, t, "send_reset", pageData{Title: "パスワード再設定"})
}

// SendReset はパスワード再設定メールを送信する。
// POST /sendReset
func (h *PageHandler) SendReset(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTracker(w, r)
	if !ok {
		return
	}
	t.RequestPasswordReset(r.Context(), tracker.ResetForm{
		Email: strings.TrimSpace(r.PostFormValue("email")),
	})
	finish(w, r, t, tracker.RouteSendReset)
}

// UpdatePasswordPage はパスワード変更画面を表示する。
// GET /updatePassword
func (h *PageHandler) UpdatePasswordPage(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTracker(w, r)
	if !ok {
		return
	}
	if t.Principal() == nil {
		redirect(w, r, t, tracker.RouteLogin)
		return
	}
	renderPage(w, r, t, "update_password", pageData{Title: "パスワード変更"})
}

// UpdatePassword は現在のパスワードを確認してからパスワードを変更する。
// POST /updatePassword
func (h *PageHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTracker(w, r)
	if !ok {
		return
	}
	t.UpdateCurrentPassword(r.Context(), tracker.PasswordForm{
		CurrentPassword: r.PostFormValue("currentPassword"),
		Password:        r.PostFormValue("password"),
		PasswordConf:    r.PostFormValue("passwordConf"),
	})
	finish(w, r, t, tracker.RouteUpdatePassword)
}

// ResetPasswordPage はメールのリンクから新しいパスワードの入力画面を表示する。
// GET /resetPassword?token=...
func (h *PageHandler) ResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTracker(w, r)
	if !ok {
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		addFlash(r, flashMessage{
			Title:       tracker.MsgPasswordFailed,
			Description: identity.ErrResetTokenInvalid.Error(),
			Severity:    string(tracker.SeverityError),
		})
		redirect(w, r, t, tracker.RouteSendReset)
		return
	}
	renderPage(w, r, t, "reset_password", pageData{Title: "新しいパスワード", Token: token})
}

// ResetPassword はトークンを検証して新しいパスワードを設定する。
// 成功時はすべてのセッションが失効するため、ログイン画面へ遷移する。
// POST /resetPassword
func (h *PageHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTracker(w, r)
	if !ok {
		return
	}

	token := r.PostFormValue("token")
	password := r.PostFormValue("password")
	retry := RouteResetPassword + "?token=" + url.QueryEscape(token)

	fail := func(title, description string) {
		addFlash(r, flashMessage{Title: title, Description: description, Severity: string(tracker.SeverityError)})
		redirect(w, r, t, retry)
	}

	switch {
	case password != r.PostFormValue("passwordConf"):
		fail(tracker.MsgPasswordMismatch, "")
		return
	case utf8.RuneCountInString(password) < identity.MinPasswordLength:
		fail(tracker.MsgPasswordTooShort, "")
		return
	}

	if err := h.resetter.ConfirmPasswordReset(r.Context(), token, password); err != nil {
		if errors.Is(err, identity.ErrResetTokenInvalid) {
			fail(tracker.MsgPasswordFailed, err.Error())
			return
		}
		fail(tracker.MsgPasswordFailed, "")
		return
	}

	// 他のタブの認証状態も失効しているため、次のリクエストを待たずに反映する
	_ = t.Refresh(r.Context())

	addFlash(r, flashMessage{Title: tracker.MsgPasswordUpdated, Severity: string(tracker.SeveritySuccess)})
	redirect(w, r, t, tracker.RouteLogin)
}

// CreateRecord は新規登録ダイアログを確定する。同じタイトルの記録があれば時間を加算する。
// POST /records
func (h *PageHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	t, ok := h.signedInTracker(w, r)
	if !ok {
		return
	}
	t.ConfirmEntry(r.Context(), h.recordFromForm(r, ""))
	finish(w, r, t, tracker.RouteHome)
}

// UpdateRecord は編集ダイアログを確定する。
// POST /records/{id}
func (h *PageHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	t, ok := h.signedInTracker(w, r)
	if !ok {
		return
	}
	t.ConfirmEdit(r.Context(), h.recordFromForm(r, chi.URLParam(r, "id")))
	finish(w, r, t, tracker.RouteHome)
}

// DeleteRecord は削除確認ダイアログを確定する。
// POST /records/{id}/delete
func (h *PageHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	t, ok := h.signedInTracker(w, r)
	if !ok {
		return
	}
	t.ConfirmDelete(r.Context(), model.StudyRecord{ID: chi.URLParam(r, "id")})
	finish(w, r, t, tracker.RouteHome)
}

// signedInTracker は未ログインならログイン画面へリダイレクトしてfalseを返す。
func (h *PageHandler) signedInTracker(w http.ResponseWriter, r *http.Request) (*tracker.Tracker, bool) {
	t, ok := currentTracker(w, r)
	if !ok {
		return nil, false
	}
	if t.Principal() == nil {
		redirect(w, r, t, tracker.RouteLogin)
		return nil, false
	}
	return t, true
}

// recordFromForm はフォームの入力から学習記録を組み立てる。
// 時間が数値でない場合は0となり、入力エラーとして扱われる。
func (h *PageHandler) recordFromForm(r *http.Request, id string) model.StudyRecord {
	minutes, _ := strconv.Atoi(strings.TrimSpace(r.PostFormValue("time")))
	return model.StudyRecord{
		ID:      id,
		Title:   h.sanitizer.Sanitize(r.PostFormValue("title")),
		Minutes: minutes,
	}
}
