package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
)

type smtpSettings struct {
	Host     string
	Port     int
	User     string
	Password string
	SSL      bool
}

type smtpTransport struct {
	client *mail.Client
}

func newSMTPTransport(s smtpSettings) (*smtpTransport, error) {
	if s.Host == "" {
		return nil, errors.New("email: smtp host is required")
	}
	if s.Port <= 0 {
		s.Port = 587
	}

	opts := []mail.Option{mail.WithPort(s.Port)}
	if s.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.User),
			mail.WithPassword(s.Password),
		)
	}
	if s.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	c, err := mail.NewClient(s.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("email: smtp client: %w", err)
	}
	return &smtpTransport{client: c}, nil
}

func (t *smtpTransport) send(ctx context.Context, m Message) error {
	msg, err := buildMsg(m)
	if err != nil {
		return err
	}
	if err := t.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("email: smtp send: %w", err)
	}
	return nil
}

func buildMsg(m Message) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat("ArtVerse", m.From); err != nil {
		return nil, fmt.Errorf("email: from: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("email: to: %w", err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextPlain, m.Text)
	msg.AddAlternativeString(mail.TypeTextHTML, m.HTML)
	return msg, nil
}
