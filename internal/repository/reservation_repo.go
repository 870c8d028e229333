package repository

import (
	"context"
	"errors"
	"time"

	"reservation-core/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReservationRepo covers the reservation itself plus its lines. State
// transitions out of active are one-way; nothing here ever moves a
// reservation back to active.
type ReservationRepo interface {
	Create(ctx context.Context, res *models.Reservation) error
	Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	ListByCaller(ctx context.Context, callerID string, state models.ReservationState) ([]models.Reservation, error)

	// ListExpiredBatch returns up to limit active reservations whose
	// expiry has passed, for the sweeper to process.
	ListExpiredBatch(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error)

	// TransitionState moves a reservation from its current active
	// state to to, succeeding only if the row is still active.
	TransitionState(ctx context.Context, id uuid.UUID, to models.ReservationState) (bool, error)
}

type reservationRepo struct{ db *gorm.DB }

func NewReservationRepo(db *gorm.DB) ReservationRepo { return &reservationRepo{db: db} }

func (r *reservationRepo) Create(ctx context.Context, res *models.Reservation) error {
	return r.db.WithContext(ctx).Create(res).Error
}

func (r *reservationRepo) Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var res models.Reservation
	err := r.db.WithContext(ctx).Preload("Lines").First(&res, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var res models.Reservation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Lines").
		First(&res, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepo) ListByCaller(ctx context.Context, callerID string, state models.ReservationState) ([]models.Reservation, error) {
	var rows []models.Reservation
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("caller_id = ? AND state = ?", callerID, state).
		Order("created_at desc").
		Find(&rows).Error
	return rows, err
}

func (r *reservationRepo) ListExpiredBatch(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error) {
	var rows []models.Reservation
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("state = ? AND expires_at <= ?", models.ReservationActive, now).
		Order("expires_at asc").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *reservationRepo) TransitionState(ctx context.Context, id uuid.UUID, to models.ReservationState) (bool, error) {
	tx := r.db.WithContext(ctx).Exec(`
UPDATE reservations
SET state = @to
WHERE id = @id
  AND state = @from
`, map[string]any{"id": id, "to": to, "from": models.ReservationActive})
	return tx.RowsAffected > 0, tx.Error
}
