package main

import (
	"context"
	"errors"
	"testing"

	"github.com/d2ai/model-trainer/internal/dao/instancedao"
	"github.com/d2ai/model-trainer/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	input  *instancedao.QueryInput
	output instancedao.QueryOutput
	err    error
}

func (f *fakeStore) QueryByOwner(ctx context.Context, input instancedao.QueryInput) (instancedao.QueryOutput, error) {
	f.input = &input
	if f.err != nil {
		return instancedao.QueryOutput{}, f.err
	}
	return f.output, nil
}

func TestHandleQuery(t *testing.T) {
	store := &fakeStore{
		output: instancedao.QueryOutput{
			Records: []instancedao.Record{
				{UserID: "user-abc", InstanceID: "i-1", CreatedAt: "2024-03-15T09:00:00.000Z"},
				{UserID: "user-abc", InstanceID: "i-2", CreatedAt: "2024-03-15T11:00:00.000Z"},
			},
			ScannedCount: 5,
		},
	}
	handler := &Handler{gateway: query.New(store)}

	var event Event
	event.Identity = &Identity{Sub: "user-abc"}
	event.Arguments.QueryInstanceStates = []string{"running"}
	event.Arguments.TimeRangeHours = 2

	out, err := handler.HandleQuery(context.Background(), event)
	require.NoError(t, err)

	assert.Empty(t, out.Error)
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, int32(5), out.ScannedCount)
	// Newest first
	assert.Equal(t, "i-2", out.Instances[0].InstanceID)
	assert.Equal(t, "i-1", out.Instances[1].InstanceID)

	require.NotNil(t, store.input)
	assert.Equal(t, "user-abc", store.input.UserID)
	assert.Equal(t, []instancedao.State{instancedao.StateRunning}, store.input.States)
}

func TestHandleQuery_AnonymousFallback(t *testing.T) {
	store := &fakeStore{}
	handler := &Handler{gateway: query.New(store)}

	_, err := handler.HandleQuery(context.Background(), Event{})
	require.NoError(t, err)
	assert.Equal(t, "anonymous", store.input.UserID)
}

func TestHandleQuery_FailureInBody(t *testing.T) {
	store := &fakeStore{err: errors.New("throttled")}
	handler := &Handler{gateway: query.New(store)}

	out, err := handler.HandleQuery(context.Background(), Event{})

	// The transport always sees a well-formed result
	require.NoError(t, err)
	assert.Equal(t, "Failed to query instances", out.Error)
	assert.Contains(t, out.Details, "throttled")
	assert.Empty(t, out.Instances)
}
