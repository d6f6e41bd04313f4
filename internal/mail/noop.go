package mail

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// NoopSender は実際には配信せず、ログ出力と記録のみを行う送信者。
// 開発環境とテストで使用する。
type NoopSender struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []Message
}

// NewNoopSender はNoopSenderを生成する。
func NewNoopSender(logger *slog.Logger) *NoopSender {
	return &NoopSender{logger: logger}
}

// Send はメールを記録してログに出力する。
func (s *NoopSender) Send(_ context.Context, msg Message) (Receipt, error) {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()

	s.logger.Info("noop mail send",
		slog.Any("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return Receipt{
		MessageID: fmt.Sprintf("noop-%d", time.Now().UnixNano()),
		SentAt:    time.Now(),
	}, nil
}

// Sent はこれまでに送信されたメールの複製を返す。
func (s *NoopSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

// compile-time interface check
var _ Sender = (*NoopSender)(nil)
