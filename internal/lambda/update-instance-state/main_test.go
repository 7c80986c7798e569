package main

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/d2ai/model-trainer/internal/dao/instancedao"
	apperrors "github.com/d2ai/model-trainer/internal/errors"
	"github.com/d2ai/model-trainer/internal/reconciler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	records map[string]instancedao.Record
	updates []instancedao.State
	updErr  error
}

func newFakeStore(records ...instancedao.Record) *fakeStore {
	s := &fakeStore{records: map[string]instancedao.Record{}}
	for _, r := range records {
		s.records[r.InstanceID] = r
	}
	return s
}

func (s *fakeStore) FindByInstanceID(ctx context.Context, instanceID string) (instancedao.Record, error) {
	record, ok := s.records[instanceID]
	if !ok {
		return instancedao.Record{}, fmt.Errorf("%w: %s", apperrors.ErrInstanceNotFound, instanceID)
	}
	return record, nil
}

func (s *fakeStore) UpdateState(ctx context.Context, userID, instanceID string, state instancedao.State) (instancedao.Record, error) {
	if s.updErr != nil {
		return instancedao.Record{}, s.updErr
	}
	record := s.records[instanceID]
	record.State = state
	s.records[instanceID] = record
	s.updates = append(s.updates, state)
	return record, nil
}

func stateChangeEvent(detail string) events.CloudWatchEvent {
	return events.CloudWatchEvent{
		Source:     "aws.ec2",
		DetailType: "EC2 Instance State-change Notification",
		Detail:     []byte(detail),
	}
}

func TestHandleStateChange(t *testing.T) {
	store := newFakeStore(instancedao.Record{
		UserID:     "alice",
		InstanceID: "i-0123456789abcdef0",
		State:      instancedao.StatePending,
	})
	handler := &Handler{reconciler: reconciler.New(store)}

	err := handler.HandleStateChange(context.Background(),
		stateChangeEvent(`{"instance-id": "i-0123456789abcdef0", "state": "running", "previous-state": "pending"}`))
	require.NoError(t, err)

	assert.Equal(t, instancedao.StateRunning, store.records["i-0123456789abcdef0"].State)
}

func TestHandleStateChange_ErrorsAreSwallowed(t *testing.T) {
	tests := []struct {
		name   string
		detail string
		store  *fakeStore
	}{
		{
			name:   "malformed detail",
			detail: `{not json`,
			store:  newFakeStore(),
		},
		{
			name:   "missing instance id",
			detail: `{"state": "running"}`,
			store:  newFakeStore(),
		},
		{
			name:   "missing state",
			detail: `{"instance-id": "i-0123456789abcdef0"}`,
			store:  newFakeStore(),
		},
		{
			name:   "update failure",
			detail: `{"instance-id": "i-0123456789abcdef0", "state": "running"}`,
			store: func() *fakeStore {
				s := newFakeStore(instancedao.Record{UserID: "alice", InstanceID: "i-0123456789abcdef0"})
				s.updErr = fmt.Errorf("throttled")
				return s
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := &Handler{reconciler: reconciler.New(tt.store)}

			// A handler-side failure must never trigger bus redelivery
			err := handler.HandleStateChange(context.Background(), stateChangeEvent(tt.detail))
			assert.NoError(t, err)
		})
	}
}

func TestHandleStateChange_UntrackedInstance(t *testing.T) {
	store := newFakeStore()
	handler := &Handler{reconciler: reconciler.New(store)}

	err := handler.HandleStateChange(context.Background(),
		stateChangeEvent(`{"instance-id": "i-0fedcba9876543210", "state": "terminated"}`))

	require.NoError(t, err)
	assert.Empty(t, store.updates)
}
