package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slack-go/slack"

	"github.com/vietddude/triage/internal/infra/call"
)

// SlackNotifier posts resolution notices to a Slack channel.
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

// NewSlack creates a Slack notifier.
func NewSlack(token, channel string) *SlackNotifier {
	return &SlackNotifier{
		client:  slack.New(token),
		channel: channel,
	}
}

// Deliver posts the notification. Slack rate limits are surfaced with their
// suggested delay so the retry executor can honor them.
func (s *SlackNotifier) Deliver(ctx context.Context, n Notification) (Receipt, error) {
	text := fmt.Sprintf("*%s*\n%s\n_customer: %s, ticket: %s_",
		n.Subject, n.Body, n.Customer, n.TicketID)

	_, ts, err := s.client.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		var rle *slack.RateLimitedError
		if errors.As(err, &rle) {
			return Receipt{}, &call.Error{
				Category:   call.CategoryRateLimit,
				Message:    err.Error(),
				RetryAfter: rle.RetryAfter,
				Err:        err,
			}
		}
		return Receipt{}, fmt.Errorf("slack post: %w", err)
	}

	return Receipt{
		Channel:     "slack",
		MessageID:   ts,
		DeliveredAt: time.Now().UTC(),
	}, nil
}
