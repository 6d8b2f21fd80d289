package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.uber.org/zap"

	"github.com/Maciej19820502/windykacja/internal/db"
)

// SNSSender delivers SMS dunning messages via AWS SNS.
type SNSSender struct {
	client *sns.Client
	logger *zap.Logger
}

type SNSConfig struct {
	Region string
}

// NewSNSSender creates an SNS SMS sender.
func NewSNSSender(ctx context.Context, cfg SNSConfig, logger *zap.Logger) (*SNSSender, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config for SNS: %w", err)
	}
	return &SNSSender{
		client: sns.NewFromConfig(awsCfg),
		logger: logger,
	}, nil
}

// Send sends one SMS.
func (s *SNSSender) Send(ctx context.Context, msg *Message) error {
	if msg.Channel != db.ChannelSMS {
		return fmt.Errorf("sns sender only supports sms, got: %s", msg.Channel)
	}
	if msg.Recipient == "" {
		return fmt.Errorf("sms message missing recipient")
	}
	if msg.Body == "" {
		return fmt.Errorf("sms message missing body")
	}

	phone := NormalizePhone(msg.Recipient)

	input := &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(msg.Body),
	}

	result, err := s.client.Publish(ctx, input)
	if err != nil {
		return fmt.Errorf("sns publish failed: %w", err)
	}

	s.logger.Info("sms sent via SNS",
		zap.String("phone_number", phone),
		zap.String("message_id", aws.ToString(result.MessageId)),
	)
	return nil
}

func (s *SNSSender) SupportsChannel(channel db.Channel) bool {
	return channel == db.ChannelSMS
}

// NormalizePhone converts a stored phone number to E.164. Numbers without a
// country prefix get the Polish +48.
func NormalizePhone(raw string) string {
	p := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(raw))
	if strings.HasPrefix(p, "+") {
		return p
	}
	if strings.HasPrefix(p, "48") && len(p) > 9 {
		return "+" + p
	}
	return "+48" + p
}
