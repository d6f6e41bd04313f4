package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/resend/resend-go/v2"
)

// ResendSender はResend APIでメールを送信する。
type ResendSender struct {
	client *resend.Client
	from   string
	logger *slog.Logger
}

// NewResendSender はAPIキーと既定の送信元アドレスからResendSenderを生成する。
func NewResendSender(apiKey, from string, logger *slog.Logger) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
		logger: logger,
	}
}

// Send はメールを1通送信する。
func (s *ResendSender) Send(ctx context.Context, msg Message) (Receipt, error) {
	if len(msg.To) == 0 {
		return Receipt{}, errors.New("mail: no recipients")
	}

	from := msg.From
	if from == "" {
		from = s.from
	}

	params := &resend.SendEmailRequest{
		From:    from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
	}
	if msg.ReplyTo != "" {
		params.ReplyTo = msg.ReplyTo
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		s.logger.Error("resend send failed",
			slog.String("error", err.Error()),
			slog.String("subject", msg.Subject),
		)
		return Receipt{}, fmt.Errorf("resend send failed: %w", err)
	}

	s.logger.Info("mail sent",
		slog.String("message_id", sent.Id),
		slog.String("subject", msg.Subject),
	)
	return Receipt{MessageID: sent.Id, SentAt: time.Now()}, nil
}

// compile-time interface check
var _ Sender = (*ResendSender)(nil)
