package email

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/resend/resend-go/v2"
)

// Message is one outbound HTML email. Tags are delivery metadata
// (e.g. purpose=signin) and never reach the recipient.
type Message struct {
	To      string
	Subject string
	HTML    string
	Tags    map[string]string
}

// Sender only reports whether the provider accepted the message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type SenderConfig struct {
	Env     string
	APIKey  string
	From    string
	ReplyTo string
}

// NewSender returns a LogSender for ENV=local and a ResendSender otherwise.
func NewSender(cfg SenderConfig, logger *slog.Logger) Sender {
	if cfg.Env == "local" {
		return &LogSender{logger: logger.With("component", "email")}
	}
	return &ResendSender{
		client:  resend.NewClient(cfg.APIKey),
		from:    cfg.From,
		replyTo: cfg.ReplyTo,
	}
}

// LogSender writes messages to the log instead of delivering them, so a
// local passcode can be read straight from the console.
type LogSender struct {
	logger *slog.Logger
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "email (local dev)",
		"to", msg.To,
		"subject", msg.Subject,
		"tags", msg.Tags,
		"body", msg.HTML,
	)
	return nil
}

type ResendSender struct {
	client  *resend.Client
	from    string
	replyTo string
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		ReplyTo: s.replyTo,
		Tags:    resendTags(msg.Tags),
	}
	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}

// resendTags orders tags by name so requests are deterministic.
func resendTags(tags map[string]string) []resend.Tag {
	if len(tags) == 0 {
		return nil
	}
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]resend.Tag, len(names))
	for i, name := range names {
		out[i] = resend.Tag{Name: name, Value: tags[name]}
	}
	return out
}
