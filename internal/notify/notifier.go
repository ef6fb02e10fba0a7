package notify

import (
	"context"

	"github.com/maxbolgarin/cliex"
	"github.com/maxbolgarin/codehook/internal/model"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
)

// Config represents IM notifier configuration. An empty webhook URL
// disables notifications.
type Config struct {
	WebhookURL string `yaml:"webhook_url" env:"NOTIFY_WEBHOOK_URL"`
}

type message struct {
	Text string `json:"text"`
}

// Webhook posts notification messages to a configured IM webhook.
// Delivery is best effort: failures are logged, never propagated.
type Webhook struct {
	cli    *cliex.HTTP
	logger logze.Logger
}

// New creates a notifier for the configured webhook URL. A blank URL
// yields a notifier that drops everything.
func New(cfg Config) (model.Notifier, error) {
	if cfg.WebhookURL == "" {
		return Nop{}, nil
	}

	cli, err := cliex.New(cliex.WithBaseURL(cfg.WebhookURL))
	if err != nil {
		return nil, errm.Wrap(err, "failed to create HTTP client")
	}

	return &Webhook{
		cli:    cli,
		logger: logze.With("module", "notify"),
	}, nil
}

func (w *Webhook) Send(ctx context.Context, text string) {
	if _, err := w.cli.Post(ctx, "", message{Text: text}); err != nil {
		w.logger.Err(err, "failed to send notification")
	}
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Send(context.Context, string) {}
