package query

import (
	"context"
	"sort"
	"time"

	"github.com/d2ai/model-trainer/internal/dao/instancedao"
	"github.com/savaki/gox/slicex"
)

// DefaultTimeRangeHours bounds the lookback window when the caller gives
// none.
const DefaultTimeRangeHours = 24

// Store is the record access the gateway needs; tests substitute an
// in-memory fake.
type Store interface {
	QueryByOwner(ctx context.Context, input instancedao.QueryInput) (instancedao.QueryOutput, error)
}

// Request selects which of an owner's records to return.
type Request struct {
	UserID         string
	States         []string
	TimeRangeHours int
}

// Response carries the matches newest-first plus scan-size visibility.
type Response struct {
	Instances    []instancedao.Record `json:"instances"`
	Count        int                  `json:"count"`
	ScannedCount int32                `json:"scannedCount"`
}

// Gateway serves filtered, time-bounded, owner-scoped views of instance
// records with deterministic ordering.
type Gateway struct {
	store Store
	now   func() time.Time
}

// New creates a new Gateway instance
func New(store Store) *Gateway {
	return &Gateway{
		store: store,
		now:   time.Now,
	}
}

// Cutoff returns the inclusive lower bound on launchTime for a lookback
// of the given hours, in the store's timestamp layout.
func Cutoff(now time.Time, hours int) string {
	return instancedao.FormatTime(now.Add(-time.Duration(hours) * time.Hour))
}

// Query returns req.UserID's records launched within the window, newest
// first by createdAt. Owner match is mandatory; the state set is an
// inclusion filter, absent means unfiltered.
func (g *Gateway) Query(ctx context.Context, req Request) (Response, error) {
	hours := req.TimeRangeHours
	if hours <= 0 {
		hours = DefaultTimeRangeHours
	}

	out, err := g.store.QueryByOwner(ctx, instancedao.QueryInput{
		UserID: req.UserID,
		States: slicex.Map(req.States, func(s string) instancedao.State { return instancedao.State(s) }),
		Cutoff: Cutoff(g.now(), hours),
	})
	if err != nil {
		return Response{}, err
	}

	records := out.Records
	sortNewestFirst(records)

	return Response{
		Instances:    records,
		Count:        len(records),
		ScannedCount: out.ScannedCount,
	}, nil
}

// sortNewestFirst orders records descending by createdAt. The sort is
// stable so ties keep the store's order within one invocation.
func sortNewestFirst(records []instancedao.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt > records[j].CreatedAt
	})
}
