// Package docstore はコレクション単位のスキーマレスなドキュメントストアを提供する。
// 検索は単一フィールドの等値フィルタのみをサポートし、結果の順序は保証しない。
package docstore

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound は更新・削除対象のドキュメントが存在しないことを示す。
var ErrNotFound = errors.New("document not found")

// Fields はドキュメントのフィールド集合。
// 値はJSONで表現可能な型（string, 数値, bool, nil）に限る。
type Fields map[string]any

// Document はストアから取得したドキュメント。
type Document struct {
	ID     string
	Fields Fields
}

// Store はドキュメントストアのインターフェース。
type Store interface {
	// Query はcollection内でfield == valueを満たすドキュメントを返す。
	Query(ctx context.Context, collection, field string, value any) ([]Document, error)
	// Insert はドキュメントを追加し、ストアが払い出したIDを返す。
	Insert(ctx context.Context, collection string, fields Fields) (string, error)
	// Update は指定フィールドのみを上書きする。存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, collection, id string, fields Fields) error
	// Delete はドキュメントを削除する。存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, collection, id string) error
}

// String はフィールド値を文字列として取り出す。
func (f Fields) String(key string) string {
	s, _ := f[key].(string)
	return s
}

// Int はフィールド値を整数として取り出す。
// JSONデコード由来のjson.Numberやfloat64、Firestore由来のint64も受け付ける。
func (f Fields) Int(key string) int {
	switch v := f[key].(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return int(n)
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	default:
		return 0
	}
}

func cloneFields(f Fields) Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
