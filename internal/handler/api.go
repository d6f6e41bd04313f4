package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/studylog/internal/model"
	"github.com/hitoshi/studylog/internal/security"
	"github.com/hitoshi/studylog/internal/tracker"
)

// APIHandler は学習記録のJSON APIハンドラー。
// HTML画面と同じTrackerを操作し、通知はレスポンスに含めて返す。
type APIHandler struct {
	sanitizer security.TitleSanitizer
}

// NewAPIHandler は新しいAPIHandlerを生成する。
func NewAPIHandler(sanitizer security.TitleSanitizer) *APIHandler {
	return &APIHandler{sanitizer: sanitizer}
}

// meResponse はGET /api/meのレスポンス。
type meResponse struct {
	SignedIn bool   `json:"signed_in"`
	UserID   string `json:"user_id,omitempty"`
	Email    string `json:"email,omitempty"`
}

// recordsResponse は記録一覧と合計時間のレスポンス。
type recordsResponse struct {
	Records      []model.StudyRecord `json:"records"`
	TotalMinutes int                 `json:"total_minutes"`
	Dialog       *dialogResponse     `json:"dialog,omitempty"`
	Notices      []tracker.Notice    `json:"notices,omitempty"`
}

// dialogResponse はダイアログ確定操作の結果。
type dialogResponse struct {
	Close        bool  `json:"close"`
	CloseAfterMS int64 `json:"close_after_ms"`
}

// recordRequest は記録の登録・更新リクエストのボディ。
type recordRequest struct {
	Title   string `json:"title"`
	Minutes int    `json:"time"`
}

// RequireSignedIn は未ログインのリクエストを401で拒否するミドルウェア。
func (h *APIHandler) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t, ok := currentTracker(w, r)
		if !ok {
			return
		}
		if t.Principal() == nil {
			saveBrowserContext(w, r)
			writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Me は現在の認証状態を返す。
// GET /api/me
func (h *APIHandler) Me(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTracker(w, r)
	if !ok {
		return
	}
	resp := meResponse{}
	if p := t.Principal(); p != nil {
		resp = meResponse{SignedIn: true, UserID: p.UserID, Email: p.Email}
	}
	saveBrowserContext(w, r)
	writeJSON(w, http.StatusOK, resp)
}

// ListRecords は記録一覧と合計学習時間を返す。
// GET /api/records
func (h *APIHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTracker(w, r)
	if !ok {
		return
	}
	h.respond(w, r, t, nil)
}

// CreateRecord は新規登録ダイアログを確定する。同じタイトルの記録があれば時間を加算する。
// POST /api/records
func (h *APIHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTracker(w, r)
	if !ok {
		return
	}
	rec, ok := h.decodeRecord(w, r, "")
	if !ok {
		return
	}
	result := t.ConfirmEntry(r.Context(), rec)
	h.respond(w, r, t, &result)
}

// UpdateRecord は編集ダイアログを確定する。
// PUT /api/records/{id}
func (h *APIHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTracker(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if !hasRecord(t, id) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewRecordNotFoundError(id))
		return
	}
	rec, ok := h.decodeRecord(w, r, id)
	if !ok {
		return
	}
	result := t.ConfirmEdit(r.Context(), rec)
	h.respond(w, r, t, &result)
}

// DeleteRecord は削除確認ダイアログを確定する。
// DELETE /api/records/{id}
func (h *APIHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTracker(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if !hasRecord(t, id) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewRecordNotFoundError(id))
		return
	}
	result := t.ConfirmDelete(r.Context(), model.StudyRecord{ID: id})
	h.respond(w, r, t, &result)
}

// decodeRecord はリクエストボディを学習記録に変換する。
// 不正な場合は400を書き込んでfalseを返す。
func (h *APIHandler) decodeRecord(w http.ResponseWriter, r *http.Request, id string) (model.StudyRecord, bool) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return model.StudyRecord{}, false
	}
	rec := model.StudyRecord{
		ID:      id,
		Title:   h.sanitizer.Sanitize(req.Title),
		Minutes: req.Minutes,
	}
	if !rec.Valid() {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRecordError())
		return model.StudyRecord{}, false
	}
	return rec, true
}

// respond は通知を取り出して一覧を返す。
// エラー通知がある場合は最初のものを返す。入力エラーは400、それ以外は502とする。
func (h *APIHandler) respond(w http.ResponseWriter, r *http.Request, t *tracker.Tracker, result *tracker.DialogResult) {
	notices := t.DrainNotices()
	saveBrowserContext(w, r)

	for _, n := range notices {
		if n.Severity != tracker.SeverityError {
			continue
		}
		if n.Title == tracker.MsgRecordInvalid {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRecordError())
			return
		}
		writeAPIErrorResponse(w, http.StatusBadGateway,
			model.NewProviderFailureError(n.Title, errors.New(n.Description)))
		return
	}

	resp := recordsResponse{
		Records:      t.Records(),
		TotalMinutes: t.TotalMinutes(),
		Notices:      notices,
	}
	if resp.Records == nil {
		resp.Records = []model.StudyRecord{}
	}
	if result != nil {
		resp.Dialog = &dialogResponse{
			Close:        result.Close,
			CloseAfterMS: result.CloseAfter.Milliseconds(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func hasRecord(t *tracker.Tracker, id string) bool {
	for _, rec := range t.Records() {
		if rec.ID == id {
			return true
		}
	}
	return false
}
