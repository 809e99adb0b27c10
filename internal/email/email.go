package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artverse/nova/internal/config"
	"go.uber.org/zap"
)

const (
	TransportSMTP  = "smtp"
	TransportGmail = "gmail"
	TransportSES   = "ses"
	TransportLog   = "log"

	gmailHost = "smtp.gmail.com"
	gmailPort = 587
)

// Sender delivers the account verification code.
type Sender interface {
	SendVerification(ctx context.Context, to, code string) error
}

// Message is a rendered email with a plain text body and an HTML alternative.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// VerificationMessage renders the verification email for code.
func VerificationMessage(from, to, code string, ttl time.Duration) Message {
	mins := int(ttl / time.Minute)
	if mins <= 0 {
		mins = 15
	}
	text := fmt.Sprintf("Your verification code is: %s\n\n"+
		"This code expires in %d minutes.\n\n"+
		"If you didn't create an ArtVerse account, you can ignore this email.", code, mins)

	html := fmt.Sprintf(`<div style="font-family: -apple-system, sans-serif; max-width: 420px; margin: 0 auto; padding: 32px;">
  <h2 style="margin: 0 0 8px;">ArtVerse</h2>
  <p style="color: #555;">Enter this code to verify your email:</p>
  <div style="font-size: 32px; font-weight: 700; letter-spacing: 8px; padding: 16px 0;">%s</div>
  <p style="color: #888; font-size: 13px;">This code expires in %d minutes. If you didn't create an ArtVerse account, you can ignore this email.</p>
</div>`, code, mins)

	return Message{
		From:    from,
		To:      to,
		Subject: "Verify your ArtVerse account",
		Text:    text,
		HTML:    html,
	}
}

// transport sends an already rendered message.
type transport interface {
	send(ctx context.Context, m Message) error
}

type verifier struct {
	from string
	ttl  time.Duration
	t    transport
}

func (v *verifier) SendVerification(ctx context.Context, to, code string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return errors.New("email: empty recipient")
	}
	return v.t.send(ctx, VerificationMessage(v.from, to, code, v.ttl))
}

// New builds the Sender selected by cfg.Transport. An empty transport means log.
func New(cfg config.EmailConfig, ttl time.Duration, log *zap.Logger) (Sender, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var (
		t   transport
		err error
	)
	switch strings.ToLower(cfg.Transport) {
	case TransportSMTP:
		t, err = newSMTPTransport(smtpSettings{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPass,
			SSL:      cfg.SMTPSecure,
		})
	case TransportGmail:
		t, err = newSMTPTransport(smtpSettings{
			Host:     gmailHost,
			Port:     gmailPort,
			User:     cfg.GmailUser,
			Password: cfg.GmailAppPassword,
		})
	case TransportSES:
		t, err = newSESTransport(cfg.SESRegion)
	case TransportLog, "":
		t = &logTransport{log: log}
	default:
		return nil, fmt.Errorf("email: unknown transport %q", cfg.Transport)
	}
	if err != nil {
		return nil, err
	}

	from := cfg.From
	if from == "" && strings.EqualFold(cfg.Transport, TransportGmail) {
		from = cfg.GmailUser
	}
	return &verifier{from: from, ttl: ttl, t: t}, nil
}

// logTransport prints the message instead of sending it.
type logTransport struct {
	log *zap.Logger
}

func (l *logTransport) send(_ context.Context, m Message) error {
	l.log.Info("verification email (log transport)",
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.String("body", m.Text),
	)
	return nil
}
