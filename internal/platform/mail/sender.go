// Package mail delivers task e-mails over SMTP.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/phrazzld/shelfd/internal/config"
	"github.com/phrazzld/shelfd/internal/platform/logger"
	"github.com/phrazzld/shelfd/internal/task"
	gomail "github.com/wneessen/go-mail"
)

// ErrNotConfigured is returned by NewSender when no SMTP host is set.
var ErrNotConfigured = errors.New("smtp host not configured")

const dialTimeout = 30 * time.Second

// Sender implements task.Mailer with go-mail.
type Sender struct {
	cfg    config.MailConfig
	logger *slog.Logger
}

var _ task.Mailer = (*Sender)(nil)

// NewSender validates cfg and returns a Sender. No connection is made until
// the first Send.
func NewSender(cfg config.MailConfig, logger *slog.Logger) (*Sender, error) {
	if cfg.Host == "" {
		return nil, ErrNotConfigured
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("%w: sender address is required", ErrNotConfigured)
	}
	if cfg.Port <= 0 {
		cfg.Port = 25
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Sender{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "mail_sender")),
	}, nil
}

// Message builds the MIME message for msg.
func (s *Sender) Message(msg task.Email) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetBodyString(gomail.TypeTextPlain, msg.Text)

	if msg.Attachment != "" {
		if _, err := os.Stat(msg.Attachment); err != nil {
			return nil, fmt.Errorf("attachment unavailable: %w", err)
		}
		m.AttachFile(msg.Attachment, gomail.WithFileName(filepath.Base(msg.Attachment)))
	}

	return m, nil
}

// Send implements task.Mailer.
func (s *Sender) Send(ctx context.Context, msg task.Email) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	m, err := s.Message(msg)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		log.Error("failed to send e-mail",
			slog.String("error", err.Error()),
			slog.String("host", s.cfg.Host),
			slog.Int("port", s.cfg.Port))
		return fmt.Errorf("smtp delivery failed: %w", err)
	}

	log.Info("e-mail sent", slog.String("subject", msg.Subject))
	return nil
}

func (s *Sender) clientOptions() []gomail.Option {
	policy := gomail.TLSOpportunistic
	if s.cfg.UseTLS {
		policy = gomail.TLSMandatory
	}

	opts := []gomail.Option{
		gomail.WithTLSPolicy(policy),
		gomail.WithPort(s.cfg.Port),
		gomail.WithTimeout(dialTimeout),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}
