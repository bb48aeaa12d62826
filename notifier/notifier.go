package notifier

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	Logger "github.com/Luismorlan/zsxqintel/utils/log"
)

// Notifier delivers one markdown message to an outbound channel.
type Notifier interface {
	SendMarkdown(ctx context.Context, title string, text string) error
}

// MultiNotifier fans a message out to every configured channel. All channels
// are tried, the first error is returned.
type MultiNotifier []Notifier

func (m MultiNotifier) SendMarkdown(ctx context.Context, title string, text string) error {
	var firstErr error
	for _, n := range m {
		if err := n.SendMarkdown(ctx, title, text); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// LogNotifier only logs, used when no webhook is configured.
type LogNotifier struct{}

func (LogNotifier) SendMarkdown(ctx context.Context, title string, text string) error {
	Logger.Log.WithFields(logrus.Fields{"title": title}).Info("notification (no webhook configured): ", text)
	return nil
}

// NewNotifier builds the channels that are configured, falling back to
// LogNotifier when there is none.
func NewNotifier(dingtalkWebhook, dingtalkSecret, slackWebhook string) Notifier {
	channels := MultiNotifier{}
	if dingtalkWebhook != "" {
		channels = append(channels, NewDingTalkNotifier(dingtalkWebhook, dingtalkSecret))
	}
	if slackWebhook != "" {
		channels = append(channels, NewSlackNotifier(slackWebhook))
	}
	switch len(channels) {
	case 0:
		return LogNotifier{}
	case 1:
		return channels[0]
	}
	return channels
}

var ErrSendFailed = errors.New("notification rejected")
