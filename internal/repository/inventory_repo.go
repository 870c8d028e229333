package repository

import (
	"context"
	"errors"

	"reservation-core/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InventoryRepo is the Inventory Store: two conditional atomic
// primitives and a read. The try* operations never block and never
// read-then-write; each is a single guarded UPDATE.
type InventoryRepo interface {
	Read(ctx context.Context, productID uuid.UUID) (*models.Inventory, error)

	// TryIncrementReserved succeeds iff (stock - reserved) >= n, then
	// reserved += n.
	TryIncrementReserved(ctx context.Context, productID uuid.UUID, n int32) (bool, error)

	// TryCommit succeeds iff reserved >= n AND stock >= n, then
	// reserved -= n AND stock -= n. Returns the post-update stock.
	TryCommit(ctx context.Context, productID uuid.UUID, n int32) (ok bool, stockAfter int32, err error)

	// ReleaseReserved is a guarded decrement of reserved; reserved must
	// remain >= 0.
	ReleaseReserved(ctx context.Context, productID uuid.UUID, n int32) (bool, error)
}

type inventoryRepo struct{ db *gorm.DB }

func NewInventoryRepo(db *gorm.DB) InventoryRepo { return &inventoryRepo{db: db} }

func (r *inventoryRepo) Read(ctx context.Context, productID uuid.UUID) (*models.Inventory, error) {
	var inv models.Inventory
	err := r.db.WithContext(ctx).First(&inv, "product_id = ?", productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *inventoryRepo) TryIncrementReserved(ctx context.Context, productID uuid.UUID, n int32) (bool, error) {
	tx := r.db.WithContext(ctx).Exec(`
UPDATE inventories
SET reserved = reserved + @n,
    updated_at = now()
WHERE product_id = @pid
  AND stock - reserved >= @n
`, map[string]any{"pid": productID, "n": n})
	return tx.RowsAffected > 0, tx.Error
}

func (r *inventoryRepo) TryCommit(ctx context.Context, productID uuid.UUID, n int32) (bool, int32, error) {
	tx := r.db.WithContext(ctx).Exec(`
UPDATE inventories
SET reserved = reserved - @n,
    stock = stock - @n,
    updated_at = now()
WHERE product_id = @pid
  AND reserved >= @n
  AND stock >= @n
`, map[string]any{"pid": productID, "n": n})
	if tx.Error != nil {
		return false, 0, tx.Error
	}
	if tx.RowsAffected == 0 {
		return false, 0, nil
	}
	var inv models.Inventory
	if err := r.db.WithContext(ctx).First(&inv, "product_id = ?", productID).Error; err != nil {
		return false, 0, err
	}
	return true, inv.Stock, nil
}

func (r *inventoryRepo) ReleaseReserved(ctx context.Context, productID uuid.UUID, n int32) (bool, error) {
	tx := r.db.WithContext(ctx).Exec(`
UPDATE inventories
SET reserved = reserved - @n,
    updated_at = now()
WHERE product_id = @pid
  AND reserved >= @n
`, map[string]any{"pid": productID, "n": n})
	return tx.RowsAffected > 0, tx.Error
}
