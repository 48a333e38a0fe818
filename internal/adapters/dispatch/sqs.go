package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/target/console-api/config"
	"github.com/target/console-api/internal/core"
	"github.com/target/console-api/internal/domain/model"
)

type sqsSender interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSDispatcher sends envelopes to an SQS queue.
type SQSDispatcher struct {
	client   sqsSender
	queueURL string
}

var _ core.Dispatcher = (*SQSDispatcher)(nil)

// NewSQSDispatcher loads AWS credentials from the default chain.
func NewSQSDispatcher(ctx context.Context, cfg config.DispatchSQSConfig) (*SQSDispatcher, error) {
	if cfg.QueueURL == "" {
		return nil, errors.New("sqs queue URL is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SQSDispatcher{client: sqs.NewFromConfig(awsCfg), queueURL: cfg.QueueURL}, nil
}

// Enqueue sends the envelope as the message body with the job type as an
// attribute so consumers can filter without parsing.
func (d *SQSDispatcher) Enqueue(ctx context.Context, env model.DispatchEnvelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	_, err = d.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(d.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"jobType": {DataType: aws.String("String"), StringValue: aws.String(string(env.JobType))},
		},
	})
	if err != nil {
		return fmt.Errorf("send message to queue: %w", err)
	}
	return nil
}
