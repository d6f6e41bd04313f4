// Package handler はHTML画面とJSON APIのHTTPハンドラーを提供する。
//
// どちらの画面もブラウザコンテキストミドルウェアが注入したTrackerを操作し、
// Trackerに蓄積された通知と遷移先をレスポンスへ変換する。
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/studylog/internal/middleware"
	"github.com/hitoshi/studylog/internal/model"
	"github.com/hitoshi/studylog/internal/tracker"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// currentTracker はリクエストのTrackerを返す。
// ブラウザコンテキストがない場合は500を書き込んでfalseを返す。
func currentTracker(w http.ResponseWriter, r *http.Request) (*tracker.Tracker, bool) {
	t, err := middleware.TrackerFromContext(r.Context())
	if err != nil {
		slog.Error("tracker not found in request context", slog.String("path", r.URL.Path))
		middleware.WriteInternalServerError(w)
		return nil, false
	}
	return t, true
}

// saveBrowserContext はCookieへ認証状態を保存する。失敗はログに残して続行する。
func saveBrowserContext(w http.ResponseWriter, r *http.Request) {
	if err := middleware.SaveBrowserContext(w, r); err != nil {
		slog.Error("failed to save browser context",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}
