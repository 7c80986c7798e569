package services

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/smithy-go"
	"github.com/d2ai/model-trainer/internal/dao/instancedao"
	"github.com/rs/zerolog"
)

// DefaultLogWindowMinutes bounds a log fetch when the caller gives no window.
const DefaultLogWindowMinutes = 15

// maxLogEvents caps one fetch at the 100 most recent lines.
const maxLogEvents = 100

// FilterLogEventsAPI is the slice of the CloudWatch Logs client this
// service needs; tests substitute an in-memory fake.
type FilterLogEventsAPI interface {
	FilterLogEvents(ctx context.Context, params *cloudwatchlogs.FilterLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error)
}

// LogEvent is one log line from the instance's stream.
type LogEvent struct {
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	ID        string `json:"id"`
}

// LogsResult is always well-formed: either Events or Error is populated,
// never an unhandled failure.
type LogsResult struct {
	Events []LogEvent `json:"events,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// LogsService retrieves time-windowed log lines for an instance from the
// app-<instanceId> stream.
type LogsService struct {
	client   FilterLogEventsAPI
	logGroup string
	now      func() time.Time
}

func NewLogsService(client FilterLogEventsAPI, logGroup string) *LogsService {
	return &LogsService{
		client:   client,
		logGroup: logGroup,
		now:      time.Now,
	}
}

// FetchInstanceLogs returns up to 100 most-recent lines for the instance
// within the lookback window. Backend failures come back as a typed error
// result rather than an error return.
func (s *LogsService) FetchInstanceLogs(ctx context.Context, instanceID string, lastMinutes int) LogsResult {
	logger := zerolog.Ctx(ctx)

	if lastMinutes <= 0 {
		lastMinutes = DefaultLogWindowMinutes
	}

	startTime := s.now().Add(-time.Duration(lastMinutes) * time.Minute).UnixMilli()
	streamName := instancedao.LogStreamName(instanceID)

	out, err := s.client.FilterLogEvents(ctx, &cloudwatchlogs.FilterLogEventsInput{
		LogGroupName:   aws.String(s.logGroup),
		LogStreamNames: []string{streamName},
		StartTime:      aws.Int64(startTime),
		Limit:          aws.Int32(maxLogEvents),
	})
	if err != nil {
		// A stream that does not exist yet just means the instance has not
		// logged anything; everything else is a backend failure.
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException" {
			logger.Info().
				Str("instance_id", instanceID).
				Str("log_stream", streamName).
				Msg("Log stream not found, returning empty result")
			return LogsResult{Events: []LogEvent{}}
		}

		logger.Error().
			Err(err).
			Str("instance_id", instanceID).
			Msg("Failed to fetch instance logs")
		return LogsResult{Error: "Failed to fetch logs"}
	}

	events := make([]LogEvent, 0, len(out.Events))
	for _, e := range out.Events {
		events = append(events, LogEvent{
			Message:   aws.ToString(e.Message),
			Timestamp: aws.ToInt64(e.Timestamp),
			ID:        aws.ToString(e.EventId),
		})
	}

	return LogsResult{Events: events}
}
