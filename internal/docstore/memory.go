package docstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore はプロセス内メモリに保持するStore実装。
// テストおよびローカル開発用。
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Fields
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]Fields)}
}

// Query はfield == valueのドキュメントを返す。
func (s *MemoryStore) Query(ctx context.Context, collection, field string, value any) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []Document
	for id, fields := range s.collections[collection] {
		if equalValue(fields[field], value) {
			docs = append(docs, Document{ID: id, Fields: cloneFields(fields)})
		}
	}
	return docs, nil
}

// Insert はドキュメントを追加する。
func (s *MemoryStore) Insert(ctx context.Context, collection string, fields Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]Fields)
		s.collections[collection] = docs
	}
	id := uuid.NewString()
	docs[id] = cloneFields(fields)
	return id, nil
}

// Update は指定フィールドを上書きする。
func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

// Delete はドキュメントを削除する。
func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]
	if _, ok := docs[id]; !ok {
		return ErrNotFound
	}
	delete(docs, id)
	return nil
}

// equalValue は数値型の違いを吸収して等値比較する。
func equalValue(a, b any) bool {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum && bNum {
		return fa == fb
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// compile-time interface check
var _ Store = (*MemoryStore)(nil)
