package repository

import (
	"context"

	"reservation-core/internal/models"

	"gorm.io/gorm"
)

// LowStockSignalRepo is append-only from the core's side; the
// out-of-scope alerting sink is the only thing that ever marks a row
// processed.
type LowStockSignalRepo interface {
	Create(ctx context.Context, sig *models.LowStockSignal) error
}

type lowStockSignalRepo struct{ db *gorm.DB }

func NewLowStockSignalRepo(db *gorm.DB) LowStockSignalRepo { return &lowStockSignalRepo{db: db} }

func (r *lowStockSignalRepo) Create(ctx context.Context, sig *models.LowStockSignal) error {
	return r.db.WithContext(ctx).Create(sig).Error
}
