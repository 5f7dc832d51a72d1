// Package mailer sends participant notifications over SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

var ErrNoRecipient = errors.New("recipient address is empty")

type Message struct {
	ToAddress string
	ToName    string
	Subject   string
	HTMLBody  string
}

type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
}

// SMTPSender dials the relay per message. Delivery is not tracked past the
// relay accepting the message.
type SMTPSender struct {
	conf Config
}

func NewSMTPSender(conf Config) *SMTPSender {
	return &SMTPSender{conf: conf}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := s.build(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(s.conf.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.conf.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.conf.Username),
			mail.WithPassword(s.conf.Password),
		)
	}
	client, err := mail.NewClient(s.conf.Host, opts...)
	if err != nil {
		return fmt.Errorf("mail.NewClient -> %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("client.DialAndSendWithContext -> %w", err)
	}

	return nil
}

func (s *SMTPSender) build(msg Message) (*mail.Msg, error) {
	if msg.ToAddress == "" {
		return nil, ErrNoRecipient
	}

	m := mail.NewMsg()
	if err := m.FromFormat(s.conf.FromName, s.conf.FromAddress); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", s.conf.FromAddress, err)
	}
	if err := m.AddToFormat(msg.ToName, msg.ToAddress); err != nil {
		return nil, fmt.Errorf("invalid recipient address %q: %w", msg.ToAddress, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)

	return m, nil
}

// LogSender only logs. It stands in for SMTP when mail is disabled.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	if msg.ToAddress == "" {
		return ErrNoRecipient
	}
	zap.L().Info("mail disabled, not sending",
		zap.String("to", msg.ToAddress),
		zap.String("subject", msg.Subject))
	return nil
}
