// Package mail はパスワード再設定メールの送信を提供する。
package mail

import (
	"context"
	"time"
)

// Message は送信するメール1通分の内容。
type Message struct {
	To      []string
	From    string // 空の場合は送信者の既定アドレスを使う
	Subject string
	HTML    string
	ReplyTo string
}

// Receipt はメール送信の受付結果。
type Receipt struct {
	MessageID string
	SentAt    time.Time
}

// Sender はメール送信のインターフェース。
type Sender interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}
