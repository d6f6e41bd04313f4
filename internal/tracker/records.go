package tracker

import (
	"context"
	"log/slog"

	"github.com/hitoshi/studylog/internal/identity"
	"github.com/hitoshi/studylog/internal/model"
	"github.com/hitoshi/studylog/internal/record"
)

// FetchRecords は所有者の記録を取得し、一覧を丸ごと置き換える。
// 取得中に認証状態が変わった場合、結果は破棄する。
func (t *Tracker) FetchRecords(ctx context.Context, owner string) {
	gen := t.begin()
	defer t.end()

	records, err := t.store.ListByOwner(ctx, owner)
	if err != nil {
		t.fail("fetch_records", MsgFetchFailed, err, longNotice)
		return
	}

	t.mu.Lock()
	stale := t.generation != gen
	if !stale {
		t.records = records
	}
	t.mu.Unlock()

	if stale {
		t.logger.Info("discarded stale fetch result", slog.Int("records", len(records)))
	}
	t.recorder.ObserveOperation("fetch_records", nil)
}

// CreateRecord はサインイン中のメールアドレスを所有者として記録を追加する。
func (t *Tracker) CreateRecord(ctx context.Context, rec model.StudyRecord) {
	t.begin()
	defer t.end()

	owner, ok := t.owner()
	if !ok {
		t.fail("create_record", MsgRecordCreateFailed, identity.ErrNotSignedIn, longNotice)
		return
	}
	if _, err := t.store.Create(ctx, owner, rec); err != nil {
		t.fail("create_record", MsgRecordCreateFailed, err, longNotice)
		return
	}
	t.succeed("create_record", MsgRecordCreated)
}

// UpdateRecord はIDで指定した記録のタイトルと時間を上書きする。
func (t *Tracker) UpdateRecord(ctx context.Context, rec model.StudyRecord) {
	t.begin()
	defer t.end()

	if err := t.checkOwned(rec.ID); err != nil {
		t.fail("update_record", MsgRecordUpdateFailed, err, longNotice)
		return
	}
	if err := t.store.Update(ctx, rec); err != nil {
		t.fail("update_record", MsgRecordUpdateFailed, err, longNotice)
		return
	}
	t.succeed("update_record", MsgRecordUpdated)
}

// DeleteRecord はIDで指定した記録を削除する。
func (t *Tracker) DeleteRecord(ctx context.Context, rec model.StudyRecord) {
	t.begin()
	defer t.end()

	if err := t.checkOwned(rec.ID); err != nil {
		t.fail("delete_record", MsgRecordDeleteFailed, err, longNotice)
		return
	}
	if err := t.store.Delete(ctx, rec.ID); err != nil {
		t.fail("delete_record", MsgRecordDeleteFailed, err, longNotice)
		return
	}
	t.succeed("delete_record", MsgRecordDeleted)
}

// TotalMinutes は現在の一覧の学習時間の合計を返す。
func (t *Tracker) TotalMinutes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return model.TotalMinutes(t.records)
}

func (t *Tracker) owner() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.principal == nil {
		return "", false
	}
	return t.principal.Email, true
}

// checkOwned は記録が現在の一覧に含まれるかを確認する。
// 一覧は所有者で絞り込んだ取得結果なので、他人の記録は操作できない。
func (t *Tracker) checkOwned(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.principal == nil {
		return identity.ErrNotSignedIn
	}
	for _, r := range t.records {
		if r.ID == id {
			return nil
		}
	}
	return record.ErrNotFound
}
