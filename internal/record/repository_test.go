package record

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/studylog/internal/docstore"
	"github.com/hitoshi/studylog/internal/model"
)

// mockStore はdocstore.Storeのテスト用モック。
type mockStore struct {
	queryFn  func(ctx context.Context, collection, field string, value any) ([]docstore.Document, error)
	insertFn func(ctx context.Context, collection string, fields docstore.Fields) (string, error)
	updateFn func(ctx context.Context, collection, id string, fields docstore.Fields) error
	deleteFn func(ctx context.Context, collection, id string) error
}

func (m *mockStore) Query(ctx context.Context, collection, field string, value any) ([]docstore.Document, error) {
	return m.queryFn(ctx, collection, field, value)
}

func (m *mockStore) Insert(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	return m.insertFn(ctx, collection, fields)
}

func (m *mockStore) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	return m.updateFn(ctx, collection, id, fields)
}

func (m *mockStore) Delete(ctx context.Context, collection, id string) error {
	return m.deleteFn(ctx, collection, id)
}

func TestRepository_RoundTripWithMemoryStore(t *testing.T) {
	repo := NewRepository(docstore.NewMemoryStore())
	ctx := context.Background()

	id, err := repo.Create(ctx, "a@example.com", model.StudyRecord{Title: "Math", Minutes: 30})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := repo.Create(ctx, "b@example.com", model.StudyRecord{Title: "Art", Minutes: 10}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	records, err := repo.ListByOwner(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("ListByOwner returned error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	want := model.StudyRecord{ID: id, Title: "Math", Minutes: 30}
	if records[0] != want {
		t.Errorf("record = %+v, want %+v", records[0], want)
	}

	if err := repo.Update(ctx, model.StudyRecord{ID: id, Title: "Mathematics", Minutes: 45}); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	records, _ = repo.ListByOwner(ctx, "a@example.com")
	if len(records) != 1 || records[0].Title != "Mathematics" || records[0].Minutes != 45 {
		t.Errorf("after update = %+v", records)
	}

	if err := repo.Delete(ctx, id); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	records, _ = repo.ListByOwner(ctx, "a@example.com")
	if len(records) != 0 {
		t.Errorf("after delete len = %d, want 0", len(records))
	}
}

// 更新は所有者フィールドを書き換えない
func TestRepository_Update_KeepsOwner(t *testing.T) {
	var got docstore.Fields
	repo := NewRepository(&mockStore{
		updateFn: func(_ context.Context, collection, id string, fields docstore.Fields) error {
			if collection != Collection {
				t.Errorf("collection = %q, want %q", collection, Collection)
			}
			got = fields
			return nil
		},
	})

	if err := repo.Update(context.Background(), model.StudyRecord{ID: "x", Title: "T", Minutes: 3}); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if _, ok := got[FieldOwner]; ok {
		t.Error("update should not touch the owner field")
	}
	if got[FieldTitle] != "T" || got[FieldTime] != 3 {
		t.Errorf("fields = %v", got)
	}
}

func TestRepository_NotFoundIsTranslated(t *testing.T) {
	repo := NewRepository(docstore.NewMemoryStore())
	ctx := context.Background()

	if err := repo.Update(ctx, model.StudyRecord{ID: "missing", Title: "x", Minutes: 1}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update err = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete err = %v, want ErrNotFound", err)
	}
}

func TestRepository_ListByOwner_WrapsError(t *testing.T) {
	storeErr := errors.New("unavailable")
	repo := NewRepository(&mockStore{
		queryFn: func(context.Context, string, string, any) ([]docstore.Document, error) {
			return nil, storeErr
		},
	})

	_, err := repo.ListByOwner(context.Background(), "a@example.com")
	if !errors.Is(err, storeErr) {
		t.Errorf("err = %v, want wrapped %v", err, storeErr)
	}
}
