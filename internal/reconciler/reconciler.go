package reconciler

import (
	"context"
	"errors"

	"github.com/d2ai/model-trainer/internal/dao/instancedao"
	apperrors "github.com/d2ai/model-trainer/internal/errors"
	"github.com/rs/zerolog"
)

// Store is the record access the reconciler needs; tests substitute an
// in-memory fake.
type Store interface {
	FindByInstanceID(ctx context.Context, instanceID string) (instancedao.Record, error)
	UpdateState(ctx context.Context, userID, instanceID string, state instancedao.State) (instancedao.Record, error)
}

// StateChange is the detail payload of a lifecycle notification. Delivery
// is at-least-once and possibly out of order; PreviousState is reported by
// the bus but deliberately not used for ordering.
type StateChange struct {
	InstanceID    string            `json:"instance-id"`
	State         instancedao.State `json:"state"`
	PreviousState instancedao.State `json:"previous-state,omitempty"`
}

// Reconciler applies lifecycle notifications to stored records with
// idempotent last-write-wins overwrites. A stale notification can
// transiently regress a record's state; the next in-order notification
// heals it. No transition is rejected.
type Reconciler struct {
	store Store
}

// New creates a new Reconciler instance
func New(store Store) *Reconciler {
	return &Reconciler{store: store}
}

// Apply processes one notification. Notifications for instances this
// service never tracked are discarded without error; the bus also reports
// on instances outside our management.
func (r *Reconciler) Apply(ctx context.Context, change StateChange) error {
	logger := zerolog.Ctx(ctx)

	if change.InstanceID == "" {
		return apperrors.ErrMissingInstanceID
	}
	if change.State == "" {
		return apperrors.ErrMissingInstanceState
	}

	record, err := r.store.FindByInstanceID(ctx, change.InstanceID)
	if err != nil {
		if errors.Is(err, apperrors.ErrInstanceNotFound) {
			logger.Info().
				Str("instance_id", change.InstanceID).
				Str("state", string(change.State)).
				Msg("Instance not tracked, skipping update")
			return nil
		}
		return err
	}

	updated, err := r.store.UpdateState(ctx, record.UserID, record.InstanceID, change.State)
	if err != nil {
		return err
	}

	logger.Info().
		Str("instance_id", change.InstanceID).
		Str("previous_state", string(change.PreviousState)).
		Str("state", string(updated.State)).
		Msg("Updated instance state")

	if change.State.Terminal() {
		logger.Info().
			Str("instance_id", change.InstanceID).
			Msg("Instance has been terminated")
	}

	return nil
}
