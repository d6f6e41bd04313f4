package docstore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore はCloud Firestoreを使用したStore実装。
// FIRESTORE_EMULATOR_HOSTが設定されている場合、クライアントはエミュレータに接続する。
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore はプロジェクトIDからFirestoreクライアントを生成する。
func NewFirestoreStore(ctx context.Context, projectID string) (*FirestoreStore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

// Close はクライアント接続を閉じる。
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// Query はfield == valueのドキュメントを取得する。
func (s *FirestoreStore) Query(ctx context.Context, collection, field string, value any) ([]Document, error) {
	snaps, err := s.client.Collection(collection).Where(field, "==", value).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}

	docs := make([]Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, Document{ID: snap.Ref.ID, Fields: Fields(snap.Data())})
	}
	return docs, nil
}

// Insert は自動採番IDでドキュメントを追加する。
func (s *FirestoreStore) Insert(ctx context.Context, collection string, fields Fields) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, map[string]any(fields))
	if err != nil {
		return "", fmt.Errorf("failed to add to %s: %w", collection, err)
	}
	return ref.ID, nil
}

// Update は指定フィールドのみを更新する。
func (s *FirestoreStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}

	_, err := s.client.Collection(collection).Doc(id).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete はドキュメントを削除する。
// Firestoreの削除は存在しないIDでも成功するため、Existsで存在を確認する。
func (s *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	ref := s.client.Collection(collection).Doc(id)
	_, err := ref.Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// compile-time interface check
var _ Store = (*FirestoreStore)(nil)
