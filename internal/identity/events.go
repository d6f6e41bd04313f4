package identity

import (
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/hitoshi/studylog/internal/model"
)

// 認証状態変化イベントの種別。
const (
	EventTypeSignedIn  = "com.studylog.identity.signed_in"
	EventTypeSignedOut = "com.studylog.identity.signed_out"

	eventSource = "/studylog/identity"
)

// newAuthEvent は認証状態を表すCloudEventを生成する。
// principalがnilの場合はサインアウトイベントになる。
func newAuthEvent(principal *model.Principal) cloudevents.Event {
	event := cloudevents.NewEvent()
	event.SetID(newEventID())
	event.SetSource(eventSource)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)

	if principal == nil {
		event.SetType(EventTypeSignedOut)
		return event
	}

	event.SetType(EventTypeSignedIn)
	event.SetSubject(principal.UserID)
	_ = event.SetData(cloudevents.ApplicationJSON, principal)
	return event
}

// PrincipalFromEvent はサインインイベントからプリンシパルを取り出す。
// サインアウトイベントの場合はnilを返す。
func PrincipalFromEvent(event cloudevents.Event) (*model.Principal, error) {
	switch event.Type() {
	case EventTypeSignedOut:
		return nil, nil
	case EventTypeSignedIn:
		var p model.Principal
		if err := event.DataAs(&p); err != nil {
			return nil, fmt.Errorf("failed to decode principal: %w", err)
		}
		return &p, nil
	default:
		return nil, fmt.Errorf("unexpected event type: %s", event.Type())
	}
}

func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}
