package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESService is the subset of the SES API used for operator alerts.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESClient e-mails operator alerts from a fixed sender to a fixed recipient list.
type SESClient struct {
	api  SESService
	from string
	to   []string
}

func NewSESClient(ctx context.Context, region, from string, to []string) (*SESClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewSESClientWithAPI(ses.NewFromConfig(cfg), from, to), nil
}

func NewSESClientWithAPI(api SESService, from string, to []string) *SESClient {
	return &SESClient{api: api, from: from, to: to}
}

func (s *SESClient) Name() string { return "ses" }

// Alert sends a plain-text e-mail to every configured recipient.
func (s *SESClient) Alert(ctx context.Context, subject, body string) error {
	_, err := s.api.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: s.to,
		},
		Message: &types.Message{
			Subject: &types.Content{Data: sdkaws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: sdkaws.String(body)},
			},
		},
		Source: sdkaws.String(s.from),
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}
