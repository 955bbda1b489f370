// Package notify posts operator notifications to a Slack incoming webhook.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/slack-go/slack"

	"kiosk/internal/infra"
)

// Slack is safe to use with an empty webhook URL; it then only logs.
type Slack struct {
	webhookURL string
	logger     *infra.Logger
	timeout    time.Duration
}

func NewSlack(webhookURL string, logger *infra.Logger) *Slack {
	return &Slack{webhookURL: webhookURL, logger: infra.LoggerOrNop(logger), timeout: 5 * time.Second}
}

func (s *Slack) Enabled() bool {
	return s != nil && s.webhookURL != ""
}

// VideoReady reports a finished generation.
func (s *Slack) VideoReady(ctx context.Context, sessionID, voiceName, videoURL string) {
	s.post(ctx, fmt.Sprintf(":clapper: Video fertig (session %s, Stimme %s): %s", sessionID, voiceName, videoURL))
}

// StageFailed reports a failed stage with its error kind.
func (s *Slack) StageFailed(ctx context.Context, sessionID, stage, kind string, err error) {
	s.post(ctx, fmt.Sprintf(":warning: %s fehlgeschlagen (session %s, %s): %v", stage, sessionID, kind, err))
}

func (s *Slack) post(ctx context.Context, text string) {
	if !s.Enabled() {
		return
	}
	// Detached from the request so a finished HTTP call does not drop the message.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if err := slack.PostWebhookContext(ctx, s.webhookURL, &slack.WebhookMessage{Text: text}); err != nil {
		s.logger.Warn().Err(err).Msg("slack notification failed")
	}
}
