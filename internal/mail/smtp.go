package mail

import (
	"context"
	"fmt"
	"log/slog"

	gomail "github.com/wneessen/go-mail"

	"github.com/kl-higa/public-mtg-monitor2/internal/config"
)

// Message is one outbound mail.
type Message struct {
	To      string
	Subject string
	Plain   string
	HTML    string
}

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	From     string
	FromName string
	ReplyTo  string
}

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	config      Config
	credentials config.CredentialProvider
}

// NewSMTP creates an SMTP mailer. The password is looked up per send.
func NewSMTP(cfg Config, credentials config.CredentialProvider) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("from address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPMailer{config: cfg, credentials: credentials}, nil
}

// Build converts a Message into a go-mail message.
func (m *SMTPMailer) Build(msg Message) (*gomail.Msg, error) {
	gm := gomail.NewMsg()
	if err := gm.FromFormat(m.config.FromName, m.config.From); err != nil {
		return nil, fmt.Errorf("failed to set from: %w", err)
	}
	if err := gm.To(msg.To); err != nil {
		return nil, fmt.Errorf("failed to set recipient: %w", err)
	}
	replyTo := m.config.ReplyTo
	if replyTo == "" {
		replyTo = m.config.From
	}
	if err := gm.ReplyTo(replyTo); err != nil {
		return nil, fmt.Errorf("failed to set reply-to: %w", err)
	}
	gm.Subject(msg.Subject)
	gm.SetBodyString(gomail.TypeTextPlain, msg.Plain)
	if msg.HTML != "" {
		gm.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	}
	return gm, nil
}

// Send delivers one message.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	gm, err := m.Build(msg)
	if err != nil {
		return err
	}

	opts := []gomail.Option{
		gomail.WithPort(m.config.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if m.config.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.config.Username),
			gomail.WithPassword(m.credentials.Credential(config.CredSMTPPassword)),
		)
	}

	client, err := gomail.NewClient(m.config.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, gm); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", msg.To, err)
	}
	slog.Debug("mail sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

// LogMailer logs messages instead of sending them.
type LogMailer struct{}

// Send logs the message.
func (LogMailer) Send(_ context.Context, msg Message) error {
	slog.Info("mail (dry run)", "to", msg.To, "subject", msg.Subject, "chars", len([]rune(msg.Plain)))
	return nil
}
