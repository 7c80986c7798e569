package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/segmentio/ksuid"
)

// PutEventsAPI is the slice of the EventBridge client the inference
// service needs.
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// InferenceRequest is the payload accepted by the inference API. The series
// fields feed the model; metadata rides along untouched.
type InferenceRequest struct {
	X              []float64      `json:"x"`
	Y              []float64      `json:"y"`
	CodeidsX       []string       `json:"codeids_x"`
	CodeidsYLabels []string       `json:"codeids_y_labels"`
	BatchID        string         `json:"batch_id,omitempty"`
	Source         string         `json:"source,omitempty"`
	Priority       string         `json:"priority,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Validate returns the list of problems with the request, empty when valid.
func (r *InferenceRequest) Validate() []string {
	var problems []string
	if len(r.X) == 0 {
		problems = append(problems, "x series is required")
	}
	if len(r.CodeidsX) == 0 {
		problems = append(problems, "codeids_x is required")
	}
	return problems
}

// SubmitResult reports where a request went.
type SubmitResult struct {
	EventID   string `json:"event_id"`
	BatchID   string `json:"batch_id"`
	Timestamp string `json:"timestamp"`
}

// InferenceService forwards inference requests onto the event bus for the
// downstream inference workers.
type InferenceService struct {
	client  PutEventsAPI
	busName string
	source  string
}

func NewInferenceService(client PutEventsAPI, busName, source string) *InferenceService {
	return &InferenceService{
		client:  client,
		busName: busName,
		source:  source,
	}
}

// Submit publishes one inference request. A failed entry counts as an
// error; the bus offers no partial success for a single entry.
func (s *InferenceService) Submit(ctx context.Context, req InferenceRequest, requestID string) (SubmitResult, error) {
	batchID := req.BatchID
	if batchID == "" {
		batchID = "batch-" + ksuid.New().String()
	}
	source := req.Source
	if source == "" {
		source = "api_gateway"
	}
	priority := req.Priority
	if priority == "" {
		priority = "normal"
	}
	timestamp := time.Now().UTC().Format(time.RFC3339)

	detail := map[string]any{
		"inference_data": map[string]any{
			"x":                req.X,
			"y":                req.Y,
			"codeids_x":        req.CodeidsX,
			"codeids_y_labels": req.CodeidsYLabels,
		},
		"metadata": mergeMetadata(map[string]any{
			"batch_id":   batchID,
			"timestamp":  timestamp,
			"source":     source,
			"priority":   priority,
			"request_id": requestID,
		}, req.Metadata),
	}

	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("failed to marshal event detail: %w", err)
	}

	out, err := s.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []ebtypes.PutEventsRequestEntry{
			{
				Source:       aws.String(s.source),
				DetailType:   aws.String("Inference Request"),
				Detail:       aws.String(string(detailJSON)),
				EventBusName: aws.String(s.busName),
			},
		},
	})
	if err != nil {
		return SubmitResult{}, fmt.Errorf("failed to put event: %w", err)
	}
	if out.FailedEntryCount > 0 {
		return SubmitResult{}, fmt.Errorf("event bus rejected %d entries", out.FailedEntryCount)
	}

	eventID := "unknown"
	if len(out.Entries) > 0 && out.Entries[0].EventId != nil {
		eventID = *out.Entries[0].EventId
	}

	return SubmitResult{
		EventID:   eventID,
		BatchID:   batchID,
		Timestamp: timestamp,
	}, nil
}

func mergeMetadata(base, extra map[string]any) map[string]any {
	for k, v := range extra {
		base[k] = v
	}
	return base
}
