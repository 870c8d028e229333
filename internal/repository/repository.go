package repository

import "gorm.io/gorm"

// Repository aggregates every store the Reservation Engine touches
// and provides the single transaction boundary they all share.
type Repository struct {
	DB               *gorm.DB
	Products         ProductRepo
	Inventories      InventoryRepo
	Reservations     ReservationRepo
	ReservationLines ReservationLineRepo
	Orders           OrderRepo
	Idempotency      IdempotencyRepo
	LowStock         LowStockSignalRepo
}

func buildRepository(db *gorm.DB) *Repository {
	return &Repository{
		DB:               db,
		Products:         NewProductRepo(db),
		Inventories:      NewInventoryRepo(db),
		Reservations:     NewReservationRepo(db),
		ReservationLines: NewReservationLineRepo(db),
		Orders:           NewOrderRepo(db),
		Idempotency:      NewIdempotencyRepo(db),
		LowStock:         NewLowStockSignalRepo(db),
	}
}

func New(db *gorm.DB) *Repository { return buildRepository(db) }

// WithTx runs fn inside a single database transaction shared by every
// store. No in-memory locks are held across the calls fn makes; all
// mutual exclusion is the database's.
func (r *Repository) WithTx(fn func(tx *Repository) error) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		return fn(buildRepository(tx))
	})
}
