package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/d2ai/model-trainer/internal/dao/instancedao"
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

func fixedNow() time.Time {
	return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
}

func TestCutoff(t *testing.T) {
	got := Cutoff(fixedNow(), 24)
	assert.Equal(t, "2024-03-14T12:00:00.000Z", got)

	got = Cutoff(fixedNow(), 2)
	assert.Equal(t, "2024-03-15T10:00:00.000Z", got)
}

func TestGateway_Query_Defaults(t *testing.T) {
	store := &fakeStore{}
	g := New(store)
	g.now = fixedNow

	_, err := g.Query(context.Background(), Request{UserID: "alice"})
	require.NoError(t, err)

	// Zero hours means the default 24h window; no state filter
	require.NotNil(t, store.input)
	assert.Equal(t, "alice", store.input.UserID)
	assert.Equal(t, "2024-03-14T12:00:00.000Z", store.input.Cutoff)
	assert.Empty(t, store.input.States)
}

func TestGateway_Query_PassesStatesAndWindow(t *testing.T) {
	store := &fakeStore{}
	g := New(store)
	g.now = fixedNow

	_, err := g.Query(context.Background(), Request{
		UserID:         "alice",
		States:         []string{"running", "pending"},
		TimeRangeHours: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, "2024-03-15T10:00:00.000Z", store.input.Cutoff)
	assert.Equal(t, []instancedao.State{instancedao.StateRunning, instancedao.StatePending}, store.input.States)
}

func TestGateway_Query_SortsNewestFirst(t *testing.T) {
	store := &fakeStore{
		output: instancedao.QueryOutput{
			Records: []instancedao.Record{
				{InstanceID: "i-1", CreatedAt: "2024-03-15T08:00:00.000Z"},
				{InstanceID: "i-2", CreatedAt: "2024-03-15T11:00:00.000Z"},
				{InstanceID: "i-3", CreatedAt: "2024-03-15T09:30:00.000Z"},
			},
			ScannedCount: 7,
		},
	}
	g := New(store)
	g.now = fixedNow

	resp, err := g.Query(context.Background(), Request{UserID: "alice"})
	require.NoError(t, err)

	require.Len(t, resp.Instances, 3)
	assert.Equal(t, "i-2", resp.Instances[0].InstanceID)
	assert.Equal(t, "i-3", resp.Instances[1].InstanceID)
	assert.Equal(t, "i-1", resp.Instances[2].InstanceID)
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, int32(7), resp.ScannedCount)
}

func TestGateway_Query_StableSortOnTies(t *testing.T) {
	same := "2024-03-15T10:00:00.000Z"
	store := &fakeStore{
		output: instancedao.QueryOutput{
			Records: []instancedao.Record{
				{InstanceID: "i-a", CreatedAt: same},
				{InstanceID: "i-b", CreatedAt: same},
				{InstanceID: "i-c", CreatedAt: same},
			},
		},
	}
	g := New(store)
	g.now = fixedNow

	resp, err := g.Query(context.Background(), Request{UserID: "alice"})
	require.NoError(t, err)

	// Ties keep the store's order
	assert.Equal(t, "i-a", resp.Instances[0].InstanceID)
	assert.Equal(t, "i-b", resp.Instances[1].InstanceID)
	assert.Equal(t, "i-c", resp.Instances[2].InstanceID)
}

func TestGateway_Query_EmptyResult(t *testing.T) {
	store := &fakeStore{output: instancedao.QueryOutput{ScannedCount: 4}}
	g := New(store)
	g.now = fixedNow

	resp, err := g.Query(context.Background(), Request{UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Count)
	assert.Empty(t, resp.Instances)
	assert.Equal(t, int32(4), resp.ScannedCount)
}

func TestGateway_Query_StoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("throttled")}
	g := New(store)
	g.now = fixedNow

	_, err := g.Query(context.Background(), Request{UserID: "alice"})
	assert.Error(t, err)
}
