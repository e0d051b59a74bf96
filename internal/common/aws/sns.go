package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSService is the subset of the SNS API used for operator alerts.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSClient publishes operator alerts to one topic.
type SNSClient struct {
	api      SNSService
	topicARN string
}

func NewSNSClient(ctx context.Context, region, topicARN string) (*SNSClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewSNSClientWithAPI(sns.NewFromConfig(cfg), topicARN), nil
}

func NewSNSClientWithAPI(api SNSService, topicARN string) *SNSClient {
	return &SNSClient{api: api, topicARN: topicARN}
}

func (s *SNSClient) Name() string { return "sns" }

// Alert publishes the message; SNS caps subjects at 100 characters.
func (s *SNSClient) Alert(ctx context.Context, subject, body string) error {
	if r := []rune(subject); len(r) > 100 {
		subject = string(r[:100])
	}
	_, err := s.api.Publish(ctx, &sns.PublishInput{
		TopicArn: sdkaws.String(s.topicARN),
		Subject:  sdkaws.String(subject),
		Message:  sdkaws.String(body),
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
