package repository

import (
	"context"

	"reservation-core/internal/models"

	"gorm.io/gorm"
)

// ReservationLineRepo writes the snapshot lines that belong to a
// reservation. Lines are created once, with reserve, and never
// updated afterward.
type ReservationLineRepo interface {
	CreateBatch(ctx context.Context, lines []models.ReservationLine) error
}

type reservationLineRepo struct{ db *gorm.DB }

func NewReservationLineRepo(db *gorm.DB) ReservationLineRepo { return &reservationLineRepo{db: db} }

func (r *reservationLineRepo) CreateBatch(ctx context.Context, lines []models.ReservationLine) error {
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}
