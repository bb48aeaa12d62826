package notifier

import (
	"context"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/slack-go/slack"
)

// Slack mrkdwn text objects are capped at 3000 characters.
const slackTextLimit = 3000

var markdownLinkRegex = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

type SlackNotifier struct {
	webhookUrl string
}

func NewSlackNotifier(webhookUrl string) *SlackNotifier {
	return &SlackNotifier{webhookUrl: webhookUrl}
}

// toSlackMrkdwn maps the markdown subset used by reports onto Slack mrkdwn.
func toSlackMrkdwn(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, "#")
		if trimmed != line {
			lines[i] = "*" + strings.TrimSpace(trimmed) + "*"
		}
	}
	text = strings.Join(lines, "\n")
	text = strings.ReplaceAll(text, "**", "*")
	text = strings.ReplaceAll(text, "\n---\n", "\n")
	text = markdownLinkRegex.ReplaceAllString(text, "<$2|$1>")
	if runes := []rune(text); len(runes) > slackTextLimit {
		text = string(runes[:slackTextLimit-3]) + "..."
	}
	return text
}

func (s *SlackNotifier) SendMarkdown(ctx context.Context, title string, text string) error {
	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, title, true, false)),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, toSlackMrkdwn(text), false, false), nil, nil),
	}
	err := slack.PostWebhookContext(ctx, s.webhookUrl, &slack.WebhookMessage{
		Text:   title,
		Blocks: &slack.Blocks{BlockSet: blocks},
	})
	return errors.Wrap(err, "fail to push slack webhook")
}
