package notify

import (
	"context"
	"strings"

	"github.com/smallbiznis/fieldops/internal/config"
	"github.com/smallbiznis/fieldops/internal/serviceorder/domain"
	slacklib "github.com/slack-go/slack"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notify",
	fx.Provide(NewSender),
	fx.Provide(NewDispatcher),
	fx.Provide(func(d *Dispatcher) domain.NotificationDispatcher { return d }),
	fx.Invoke(registerLifecycle),
)

// NewSender posts to Slack when a token and channel are configured and
// falls back to the log otherwise.
func NewSender(cfg config.Config, log *zap.Logger) Sender {
	token := strings.TrimSpace(cfg.Notify.SlackToken)
	channel := strings.TrimSpace(cfg.Notify.SlackChannel)
	if token == "" || channel == "" {
		return NewLogSender(log)
	}
	return NewSlackSender(slacklib.New(token), channel)
}

func registerLifecycle(lc fx.Lifecycle, d *Dispatcher) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			d.Start()
			return nil
		},
		OnStop: d.Stop,
	})
}
