package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwltypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLogsClient struct {
	input  *cloudwatchlogs.FilterLogEventsInput
	output *cloudwatchlogs.FilterLogEventsOutput
	err    error
}

func (f *fakeLogsClient) FilterLogEvents(ctx context.Context, params *cloudwatchlogs.FilterLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

func TestLogsService_FetchInstanceLogs(t *testing.T) {
	client := &fakeLogsClient{
		output: &cloudwatchlogs.FilterLogEventsOutput{
			Events: []cwltypes.FilteredLogEvent{
				{
					Message:   aws.String("epoch 1/20 loss=0.93"),
					Timestamp: aws.Int64(1710498600000),
					EventId:   aws.String("event-1"),
				},
				{
					Message:   aws.String("epoch 2/20 loss=0.81"),
					Timestamp: aws.Int64(1710498660000),
					EventId:   aws.String("event-2"),
				},
			},
		},
	}

	svc := NewLogsService(client, "ec2-sample-logs")
	svc.now = func() time.Time {
		return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	}

	result := svc.FetchInstanceLogs(context.Background(), "i-0123456789abcdef0", 30)

	assert.Empty(t, result.Error)
	require.Len(t, result.Events, 2)
	assert.Equal(t, "epoch 1/20 loss=0.93", result.Events[0].Message)
	assert.Equal(t, int64(1710498600000), result.Events[0].Timestamp)
	assert.Equal(t, "event-1", result.Events[0].ID)

	// Request shape
	require.NotNil(t, client.input)
	assert.Equal(t, "ec2-sample-logs", aws.ToString(client.input.LogGroupName))
	assert.Equal(t, []string{"app-i-0123456789abcdef0"}, client.input.LogStreamNames)
	assert.Equal(t, int32(100), aws.ToInt32(client.input.Limit))
	wantStart := time.Date(2024, 3, 15, 11, 30, 0, 0, time.UTC).UnixMilli()
	assert.Equal(t, wantStart, aws.ToInt64(client.input.StartTime))
}

func TestLogsService_FetchInstanceLogs_DefaultWindow(t *testing.T) {
	client := &fakeLogsClient{output: &cloudwatchlogs.FilterLogEventsOutput{}}
	svc := NewLogsService(client, "ec2-sample-logs")
	svc.now = func() time.Time {
		return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	}

	result := svc.FetchInstanceLogs(context.Background(), "i-0123456789abcdef0", 0)

	assert.Empty(t, result.Error)
	wantStart := time.Date(2024, 3, 15, 11, 45, 0, 0, time.UTC).UnixMilli()
	assert.Equal(t, wantStart, aws.ToInt64(client.input.StartTime))
}

func TestLogsService_FetchInstanceLogs_StreamNotFound(t *testing.T) {
	// The instance has not logged anything yet; that is an empty result,
	// not a failure
	client := &fakeLogsClient{
		err: &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "stream not found"},
	}
	svc := NewLogsService(client, "ec2-sample-logs")

	result := svc.FetchInstanceLogs(context.Background(), "i-0123456789abcdef0", 15)

	assert.Empty(t, result.Error)
	assert.NotNil(t, result.Events)
	assert.Empty(t, result.Events)
}

func TestLogsService_FetchInstanceLogs_BackendFailure(t *testing.T) {
	client := &fakeLogsClient{err: errors.New("throttled")}
	svc := NewLogsService(client, "ec2-sample-logs")

	result := svc.FetchInstanceLogs(context.Background(), "i-0123456789abcdef0", 15)

	assert.Equal(t, "Failed to fetch logs", result.Error)
	assert.Empty(t, result.Events)
}
