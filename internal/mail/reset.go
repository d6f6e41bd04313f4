package mail

import (
	"bytes"
	"fmt"
	"html/template"
)

// ResetSubject はパスワード再設定メールの件名。
const ResetSubject = "パスワード再設定のご案内"

var resetTemplate = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html lang="ja">
<body>
<p>パスワード再設定のリクエストを受け付けました。</p>
<p>以下のリンクから新しいパスワードを設定してください。リンクの有効期限は{{.TTL}}です。</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>
<p>このメールに心当たりがない場合は破棄してください。</p>
</body>
</html>`))

// ResetMessage はパスワード再設定リンクを含むメールを組み立てる。
func ResetMessage(to, link, ttl string) (Message, error) {
	var buf bytes.Buffer
	if err := resetTemplate.Execute(&buf, struct {
		Link string
		TTL  string
	}{Link: link, TTL: ttl}); err != nil {
		return Message{}, fmt.Errorf("failed to render reset mail: %w", err)
	}

	return Message{
		To:      []string{to},
		Subject: ResetSubject,
		HTML:    buf.String(),
	}, nil
}
