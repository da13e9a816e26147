package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/ncecere/spendwatch/internal/config"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESSink emails alert owners through Amazon SES.
type SESSink struct {
	client sesAPI
	sender string
	logger *slog.Logger
}

// NewSESSink loads the default AWS credential chain for the configured region.
func NewSESSink(ctx context.Context, cfg config.SESConfig, logger *slog.Logger) (Sink, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if strings.TrimSpace(cfg.Sender) == "" {
		return nil, fmt.Errorf("alerts.ses.sender is required when ses is enabled")
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if strings.TrimSpace(cfg.Region) != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newSESSink(ses.NewFromConfig(awsCfg), cfg.Sender, logger), nil
}

func newSESSink(client sesAPI, sender string, logger *slog.Logger) *SESSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SESSink{client: client, sender: sender, logger: logger}
}

func (s *SESSink) Notify(ctx context.Context, event Event) error {
	if s == nil || !event.EmailAllowed || strings.TrimSpace(event.Email) == "" {
		return nil
	}
	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(s.sender),
		Destination: &types.Destination{ToAddresses: []string{event.Email}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(emailSubject(event)), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(emailBody(event)), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	s.logger.DebugContext(ctx, "alert email sent", slog.String("message_id", aws.ToString(out.MessageId)))
	return nil
}
