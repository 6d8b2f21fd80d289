package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	"github.com/Maciej19820502/windykacja/internal/db"
)

// SESSender delivers email dunning messages via AWS SES.
type SESSender struct {
	client *ses.Client
	from   string
	logger *zap.Logger
}

type SESConfig struct {
	Region    string
	FromEmail string
}

// NewSESSender creates an SES email sender.
func NewSESSender(ctx context.Context, cfg SESConfig, logger *zap.Logger) (*SESSender, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &SESSender{
		client: ses.NewFromConfig(awsCfg),
		from:   cfg.FromEmail,
		logger: logger,
	}, nil
}

// Send sends one email. The body goes out both as plain text and as a simple
// HTML alternative so the obligations table renders in mail clients.
func (s *SESSender) Send(ctx context.Context, msg *Message) error {
	if msg.Channel != db.ChannelEmail {
		return fmt.Errorf("ses sender only supports email, got: %s", msg.Channel)
	}
	if msg.Recipient == "" {
		return fmt.Errorf("email message missing recipient")
	}
	if msg.Body == "" {
		return fmt.Errorf("email message missing body")
	}

	htmlBody := fmt.Sprintf(
		`<html><body style="font-family:Arial,sans-serif;">%s</body></html>`,
		strings.ReplaceAll(msg.Body, "\n", "<br>\n"),
	)

	input := &ses.SendEmailInput{
		Source: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{msg.Recipient},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(msg.Subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(msg.Body),
					Charset: aws.String("UTF-8"),
				},
				Html: &types.Content{
					Data:    aws.String(htmlBody),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send failed: %w", err)
	}

	s.logger.Info("email sent via SES",
		zap.String("to", msg.Recipient),
		zap.String("message_id", aws.ToString(result.MessageId)),
	)
	return nil
}

func (s *SESSender) SupportsChannel(channel db.Channel) bool {
	return channel == db.ChannelEmail
}
