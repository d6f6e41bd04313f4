package handler

import (
	"encoding/gob"
	"net/http"

	"github.com/hitoshi/studylog/internal/middleware"
	"github.com/hitoshi/studylog/internal/tracker"
)

// flashMessage はリダイレクト後の画面に1回だけ表示する通知。
type flashMessage struct {
	Title       string
	Description string
	Severity    string
}

func init() {
	gob.Register(flashMessage{})
}

func flashFromNotice(n tracker.Notice) flashMessage {
	return flashMessage{
		Title:       n.Title,
		Description: n.Description,
		Severity:    string(n.Severity),
	}
}

// stashNotices はTrackerの通知をフラッシュメッセージとしてCookieセッションへ移す。
func stashNotices(r *http.Request, t *tracker.Tracker) {
	notices := t.DrainNotices()
	for _, n := range notices {
		addFlash(r, flashFromNotice(n))
	}
}

// addFlash はフラッシュメッセージを追加する。保存はsaveBrowserContextで行う。
func addFlash(r *http.Request, msg flashMessage) {
	session, err := middleware.BrowserSessionFromContext(r.Context())
	if err != nil {
		return
	}
	session.AddFlash(msg)
}

// takeFlashes は未表示の通知をすべて取り出す。
func takeFlashes(r *http.Request, t *tracker.Tracker) []flashMessage {
	stashNotices(r, t)

	session, err := middleware.BrowserSessionFromContext(r.Context())
	if err != nil {
		return nil
	}
	var flashes []flashMessage
	for _, f := range session.Flashes() {
		if msg, ok := f.(flashMessage); ok {
			flashes = append(flashes, msg)
		}
	}
	return flashes
}
