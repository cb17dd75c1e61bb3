package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/go-employment-verify/internal/config"
	"github.com/go-employment-verify/internal/domain"
	"github.com/go-employment-verify/internal/infrastructure/awscfg"
)

// snsAPI is the subset of the SNS client used here.
type snsAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Publisher fans verification lifecycle events out to an SNS topic.
type Publisher struct {
	client   snsAPI
	topicARN string
}

func NewPublisher(cfg *config.Config) (*Publisher, error) {
	awsCfg, err := awscfg.Load(context.Background(), cfg, cfg.SNSRegion)
	if err != nil {
		return nil, err
	}
	opts := []func(*sns.Options){}
	if cfg.AWSEndpointURL != "" {
		opts = append(opts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return &Publisher{client: sns.NewFromConfig(awsCfg, opts...), topicARN: cfg.SNSTopicARN}, nil
}

// Publish sends ev as JSON. Subscribers filter on the event and status
// message attributes.
func (p *Publisher) Publish(ctx context.Context, ev domain.LifecycleEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal lifecycle event: %w", err)
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event":  {DataType: aws.String("String"), StringValue: aws.String(string(ev.Event))},
			"status": {DataType: aws.String("String"), StringValue: aws.String(string(ev.To))},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
