package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/console-api/config"
	"github.com/target/console-api/internal/domain/model"
)

type fakeSQS struct {
	in  *sqs.SendMessageInput
	err error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func TestSQSDispatcher_Enqueue(t *testing.T) {
	fake := &fakeSQS{}
	d := &SQSDispatcher{client: fake, queueURL: "https://sqs.us-east-1.amazonaws.com/1/jobs"}

	require.NoError(t, d.Enqueue(context.Background(), testEnvelope()))
	require.NotNil(t, fake.in)
	assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/1/jobs", aws.ToString(fake.in.QueueUrl))
	assert.Equal(t, string(model.JobTypeDiagramElementsExtraction), aws.ToString(fake.in.MessageAttributes["jobType"].StringValue))

	var env model.DispatchEnvelope
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(fake.in.MessageBody)), &env))
	assert.Equal(t, "job-1", env.JobID)
}

func TestSQSDispatcher_SendError(t *testing.T) {
	d := &SQSDispatcher{client: &fakeSQS{err: errors.New("throttled")}, queueURL: "q"}
	require.ErrorContains(t, d.Enqueue(context.Background(), testEnvelope()), "throttled")
}

func TestNewSQSDispatcher_RequiresQueue(t *testing.T) {
	_, err := NewSQSDispatcher(context.Background(), config.DispatchSQSConfig{})
	require.Error(t, err)
}
