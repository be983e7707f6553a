package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/serviceorder/domain"
	slacklib "github.com/slack-go/slack"
	"go.uber.org/zap"
)

//go:generate mockgen -source=sender.go -destination=./mocks/mock_sender.go -package=mocks

// Message describes one accepted status change.
type Message struct {
	ServiceID         snowflake.ID
	From              domain.Status
	To                domain.Status
	TechnicianID      *snowflake.ID
	BusinessPartnerID *snowflake.ID
}

func (m Message) Text() string {
	return fmt.Sprintf("Service %s moved from %s to %s", m.ServiceID, m.From, m.To)
}

// Sender delivers a message to one channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the process log. It is used when no external
// channel is configured.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log.Named("notify.log")}
}

func (s *LogSender) Name() string { return "log" }

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.log.Info("service status notification",
		zap.String("service_id", msg.ServiceID.String()),
		zap.String("from_status", string(msg.From)),
		zap.String("to_status", string(msg.To)),
	)
	return nil
}

// SlackAPI is the subset of the Slack client the sender needs.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slacklib.MsgOption) (string, string, error)
}

type SlackSender struct {
	api     SlackAPI
	channel string
}

func NewSlackSender(api SlackAPI, channel string) *SlackSender {
	return &SlackSender{api: api, channel: channel}
}

func (s *SlackSender) Name() string { return "slack" }

func (s *SlackSender) Send(ctx context.Context, msg Message) error {
	_, _, err := s.api.PostMessageContext(ctx, s.channel, slacklib.MsgOptionText(msg.Text(), false))
	if err != nil {
		return fmt.Errorf("notify.SlackSender.Send: %w", err)
	}
	return nil
}
