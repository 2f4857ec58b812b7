package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNS publishes notifications to AWS SNS topics.
type SNS struct {
	api snsAPI
}

// NewSNS creates an SNS notifier from the default AWS credential chain.
func NewSNS(ctx context.Context, region string) (*SNS, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SNS{api: sns.NewFromConfig(cfg)}, nil
}

// Send publishes body to the topic ARN in destination.
func (s *SNS) Send(ctx context.Context, destination, title, body string) error {
	_, err := s.api.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(destination),
		Subject:  aws.String(title),
		Message:  aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("publish sns message: %w", err)
	}
	return nil
}
