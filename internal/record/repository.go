// Package record は学習記録とドキュメントストアの対応付けを提供する。
package record

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/studylog/internal/docstore"
	"github.com/hitoshi/studylog/internal/model"
)

// ストア上のコレクション名とフィールド名。
const (
	Collection = "users_learnings"

	FieldTitle = "title"
	FieldTime  = "time"
	FieldOwner = "email"
)

// ErrNotFound は対象の学習記録が存在しないことを示す。
var ErrNotFound = errors.New("study record not found")

// Repository は学習記録の永続化を担う。
type Repository struct {
	store docstore.Store
}

// NewRepository はRepositoryを生成する。
func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// ListByOwner は所有者メールアドレスに一致する記録を返す。順序は保証しない。
func (r *Repository) ListByOwner(ctx context.Context, owner string) ([]model.StudyRecord, error) {
	docs, err := r.store.Query(ctx, Collection, FieldOwner, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	records := make([]model.StudyRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, model.StudyRecord{
			ID:      doc.ID,
			Title:   doc.Fields.String(FieldTitle),
			Minutes: doc.Fields.Int(FieldTime),
		})
	}
	return records, nil
}

// Create は所有者を付与して記録を追加し、採番されたIDを返す。
func (r *Repository) Create(ctx context.Context, owner string, rec model.StudyRecord) (string, error) {
	id, err := r.store.Insert(ctx, Collection, docstore.Fields{
		FieldTitle: rec.Title,
		FieldTime:  rec.Minutes,
		FieldOwner: owner,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create record: %w", err)
	}
	return id, nil
}

// Update は記録のタイトルと時間を上書きする。所有者は変更しない。
func (r *Repository) Update(ctx context.Context, rec model.StudyRecord) error {
	err := r.store.Update(ctx, Collection, rec.ID, docstore.Fields{
		FieldTitle: rec.Title,
		FieldTime:  rec.Minutes,
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update record %s: %w", rec.ID, err)
	}
	return nil
}

// Delete は記録を削除する。
func (r *Repository) Delete(ctx context.Context, id string) error {
	err := r.store.Delete(ctx, Collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	return nil
}
