package repository

import (
	"context"
	"errors"

	"reservation-core/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrIdempotencyExists is returned by ReserveSlot when a record for
// (callerID, endpoint, key) already exists. The caller must then Get
// it and act on its State and Fingerprint instead of inserting.
var ErrIdempotencyExists = errors.New("idempotency record already exists")

// IdempotencyRepo backs the idempotency layer: one row per (caller,
// endpoint, key), created in_progress and finalized exactly once.
type IdempotencyRepo interface {
	Get(ctx context.Context, callerID, endpoint, key string) (*models.IdempotencyRecord, error)

	// ReserveSlot inserts a new in_progress record. It returns
	// ErrIdempotencyExists if the unique (caller, endpoint, key) slot
	// is already taken by a concurrent or prior call.
	ReserveSlot(ctx context.Context, rec *models.IdempotencyRecord) error

	// Finish overwrites the state and cached response of a record that
	// has not succeeded yet (in_progress, or failed by an earlier
	// attempt that is being retried). It is a no-op, reporting false,
	// once the record is succeeded.
	Finish(ctx context.Context, id uuid.UUID, state models.IdempotencyState, responseOrderID uuid.NullUUID, responseStatus string) (bool, error)
}

type idempotencyRepo struct{ db *gorm.DB }

func NewIdempotencyRepo(db *gorm.DB) IdempotencyRepo { return &idempotencyRepo{db: db} }

func (r *idempotencyRepo) Get(ctx context.Context, callerID, endpoint, key string) (*models.IdempotencyRecord, error) {
	var rec models.IdempotencyRecord
	err := r.db.WithContext(ctx).First(&rec, "caller_id = ? AND endpoint = ? AND key = ?", callerID, endpoint, key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *idempotencyRepo) ReserveSlot(ctx context.Context, rec *models.IdempotencyRecord) error {
	err := r.db.WithContext(ctx).Create(rec).Error
	if isUniqueViolation(err) {
		return ErrIdempotencyExists
	}
	return err
}

func (r *idempotencyRepo) Finish(ctx context.Context, id uuid.UUID, state models.IdempotencyState, responseOrderID uuid.NullUUID, responseStatus string) (bool, error) {
	tx := r.db.WithContext(ctx).Exec(`
UPDATE idempotency_records
SET state = @state,
    response_order_id = @order_id,
    response_status = @status,
    updated_at = now()
WHERE id = @id
  AND state <> @succeeded
`, map[string]any{
		"id":        id,
		"state":     state,
		"order_id":  responseOrderID,
		"status":    responseStatus,
		"succeeded": models.IdempotencySucceeded,
	})
	return tx.RowsAffected > 0, tx.Error
}
