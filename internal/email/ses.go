package email

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"
)

type sesTransport struct {
	svc sesiface.SESAPI
}

func newSESTransport(region string) (*sesTransport, error) {
	cfg := &aws.Config{}
	if region != "" {
		cfg.Region = aws.String(region)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("email: aws session: %w", err)
	}
	return &sesTransport{svc: ses.New(sess)}, nil
}

func (t *sesTransport) send(ctx context.Context, m Message) error {
	input := &ses.SendEmailInput{
		Destination: &ses.Destination{
			ToAddresses: []*string{aws.String(m.To)},
		},
		Message: &ses.Message{
			Body: &ses.Body{
				Html: &ses.Content{Charset: aws.String("UTF-8"), Data: aws.String(m.HTML)},
				Text: &ses.Content{Charset: aws.String("UTF-8"), Data: aws.String(m.Text)},
			},
			Subject: &ses.Content{Charset: aws.String("UTF-8"), Data: aws.String(m.Subject)},
		},
		Source: aws.String(fmt.Sprintf("ArtVerse <%s>", m.From)),
	}

	if _, err := t.svc.SendEmailWithContext(ctx, input); err != nil {
		return fmt.Errorf("email: ses send: %w", err)
	}
	return nil
}
