package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEventBridge struct {
	input  *eventbridge.PutEventsInput
	output *eventbridge.PutEventsOutput
	err    error
}

func (f *fakeEventBridge) PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

func TestInferenceRequest_Validate(t *testing.T) {
	tests := []struct {
		name     string
		req      InferenceRequest
		problems int
	}{
		{
			name: "valid",
			req: InferenceRequest{
				X:        []float64{1, 2, 3},
				CodeidsX: []string{"a", "b"},
			},
			problems: 0,
		},
		{
			name:     "empty request",
			req:      InferenceRequest{},
			problems: 2,
		},
		{
			name: "missing codeids",
			req: InferenceRequest{
				X: []float64{1},
			},
			problems: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, tt.req.Validate(), tt.problems)
		})
	}
}

func TestInferenceService_Submit(t *testing.T) {
	client := &fakeEventBridge{
		output: &eventbridge.PutEventsOutput{
			Entries: []ebtypes.PutEventsResultEntry{
				{EventId: aws.String("event-123")},
			},
		},
	}

	svc := NewInferenceService(client, "totem-bus", "d2ai.totem.inference")
	result, err := svc.Submit(context.Background(), InferenceRequest{
		X:        []float64{1.5, 2.5},
		Y:        []float64{10, 20},
		CodeidsX: []string{"c1", "c2"},
		Metadata: map[string]any{"experiment": "baseline"},
	}, "req-42")
	require.NoError(t, err)

	assert.Equal(t, "event-123", result.EventID)
	assert.NotEmpty(t, result.BatchID)
	assert.Contains(t, result.BatchID, "batch-")

	require.NotNil(t, client.input)
	require.Len(t, client.input.Entries, 1)
	entry := client.input.Entries[0]
	assert.Equal(t, "d2ai.totem.inference", aws.ToString(entry.Source))
	assert.Equal(t, "Inference Request", aws.ToString(entry.DetailType))
	assert.Equal(t, "totem-bus", aws.ToString(entry.EventBusName))

	var detail map[string]any
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))

	data, ok := detail["inference_data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{1.5, 2.5}, data["x"])
	assert.Equal(t, []any{"c1", "c2"}, data["codeids_x"])

	meta, ok := detail["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "req-42", meta["request_id"])
	assert.Equal(t, "api_gateway", meta["source"])
	assert.Equal(t, "normal", meta["priority"])
	assert.Equal(t, "baseline", meta["experiment"])
}

func TestInferenceService_Submit_ExplicitBatch(t *testing.T) {
	client := &fakeEventBridge{output: &eventbridge.PutEventsOutput{}}

	svc := NewInferenceService(client, "totem-bus", "d2ai.totem.inference")
	result, err := svc.Submit(context.Background(), InferenceRequest{
		X:        []float64{1},
		CodeidsX: []string{"c1"},
		BatchID:  "batch-custom",
		Priority: "high",
	}, "req-42")
	require.NoError(t, err)

	assert.Equal(t, "batch-custom", result.BatchID)
	// No entries in the output means the id is simply unknown
	assert.Equal(t, "unknown", result.EventID)
}

func TestInferenceService_Submit_BusFailure(t *testing.T) {
	client := &fakeEventBridge{err: errors.New("unreachable")}
	svc := NewInferenceService(client, "totem-bus", "d2ai.totem.inference")

	_, err := svc.Submit(context.Background(), InferenceRequest{
		X:        []float64{1},
		CodeidsX: []string{"c1"},
	}, "req-42")
	assert.Error(t, err)
}

func TestInferenceService_Submit_RejectedEntry(t *testing.T) {
	client := &fakeEventBridge{
		output: &eventbridge.PutEventsOutput{
			FailedEntryCount: 1,
			Entries: []ebtypes.PutEventsResultEntry{
				{ErrorCode: aws.String("InternalFailure")},
			},
		},
	}
	svc := NewInferenceService(client, "totem-bus", "d2ai.totem.inference")

	_, err := svc.Submit(context.Background(), InferenceRequest{
		X:        []float64{1},
		CodeidsX: []string{"c1"},
	}, "req-42")
	assert.Error(t, err)
}
