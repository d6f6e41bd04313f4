package handler

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gorilla/csrf"

	"github.com/hitoshi/studylog/internal/middleware"
	"github.com/hitoshi/studylog/internal/model"
	"github.com/hitoshi/studylog/internal/tracker"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// pageData は画面テンプレートに渡す値。
type pageData struct {
	Title        string
	SignedIn     bool
	Email        string
	Flashes      []flashMessage
	CSRFField    template.HTML
	Records      []model.StudyRecord
	TotalMinutes int
	Token        string
}

// renderPage は共通項目を埋めてテンプレートを描画する。
// 通知を取り出した後のCookieを本文より先に保存する。
func renderPage(w http.ResponseWriter, r *http.Request, t *tracker.Tracker, name string, data pageData) {
	// 画面を表示した時点で保留中の遷移は不要になる
	t.TakeNavigation()
	data.SignedIn = t.Principal() != nil
	if data.Email == "" {
		data.Email = t.Email()
	}
	data.Flashes = takeFlashes(r, t)
	data.CSRFField = csrf.TemplateField(r)

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("failed to render template",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	saveBrowserContext(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// redirect は保留中の遷移を破棄し、通知をフラッシュへ移してから遷移する。
func redirect(w http.ResponseWriter, r *http.Request, t *tracker.Tracker, route string) {
	t.TakeNavigation()
	stashNotices(r, t)
	saveBrowserContext(w, r)
	http.Redirect(w, r, route, http.StatusSeeOther)
}

// finish はTrackerの保留中の遷移先、なければfallbackへリダイレクトする。
func finish(w http.ResponseWriter, r *http.Request, t *tracker.Tracker, fallback string) {
	route := t.TakeNavigation()
	if route == "" {
		route = fallback
	}
	redirect(w, r, t, route)
}
