package tracker

import (
	"context"
	"time"

	"github.com/hitoshi/studylog/internal/model"
)

// DialogCloseDelay は確定後にダイアログを閉じるまでの待ち時間。
const DialogCloseDelay = 500 * time.Millisecond

// DialogResult はダイアログ確定操作の結果。
type DialogResult struct {
	// Close はダイアログを閉じてよいか。入力エラーの場合はfalse。
	Close bool `json:"close"`
	// CloseAfter はダイアログを閉じるまでの待ち時間。
	CloseAfter time.Duration `json:"close_after"`
}

// ConfirmEntry は新規登録ダイアログを確定する。
// 同じタイトルの記録が一覧にあれば時間を加算して更新し、なければ追加する。
// タイトルの重複判定は手元の一覧に対して行うため、他の画面からの同時登録とは競合しうる。
func (t *Tracker) ConfirmEntry(ctx context.Context, entry model.StudyRecord) DialogResult {
	if !entry.Valid() {
		t.reject(MsgRecordInvalid)
		return DialogResult{}
	}

	if existing, ok := model.FindByTitle(t.Records(), entry.Title); ok {
		merged, ok := existing.AddMinutes(entry.Minutes)
		if !ok {
			t.reject(MsgRecordInvalid)
			return DialogResult{}
		}
		t.UpdateRecord(ctx, merged)
	} else {
		t.CreateRecord(ctx, model.StudyRecord{Title: entry.Title, Minutes: entry.Minutes})
	}
	return t.refetchAndClose(ctx)
}

// ConfirmEdit は編集ダイアログを確定する。
func (t *Tracker) ConfirmEdit(ctx context.Context, rec model.StudyRecord) DialogResult {
	if !rec.Valid() {
		t.reject(MsgRecordInvalid)
		return DialogResult{}
	}

	t.UpdateRecord(ctx, rec)
	return t.refetchAndClose(ctx)
}

// ConfirmDelete は削除確認ダイアログを確定する。
func (t *Tracker) ConfirmDelete(ctx context.Context, rec model.StudyRecord) DialogResult {
	t.DeleteRecord(ctx, rec)
	return t.refetchAndClose(ctx)
}

func (t *Tracker) refetchAndClose(ctx context.Context) DialogResult {
	if owner, ok := t.owner(); ok {
		t.FetchRecords(ctx, owner)
	}
	// 他の処理が実行中の間はダイアログを開いたままにする
	if t.Loading() {
		return DialogResult{}
	}
	return DialogResult{Close: true, CloseAfter: DialogCloseDelay}
}
