package sweeper_test

import (
	"context"
	"testing"
	"time"

	"reservation-core/internal/migrate"
	"reservation-core/internal/models"
	"reservation-core/internal/platform/testutil"
	"reservation-core/internal/repository"
	"reservation-core/internal/sweeper"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupSweeperDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := testutil.SetupTestPostgres(t)
	require.NoError(t, migrate.Run(context.Background(), db, zap.NewNop(), migrate.DefaultOptions()))
	return db
}

func seedActiveReservation(t *testing.T, db *gorm.DB, productID uuid.UUID, qty int32, expiresAt time.Time) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	res := &models.Reservation{
		CallerID:       "caller-x",
		State:          models.ReservationActive,
		ExpiresAt:      expiresAt,
		AddressName:    "Jane Doe",
		AddressPhone:   "555-0100",
		AddressLine1:   "1 Main St",
		AddressCity:    "Springfield",
		AddressState:   "IL",
		AddressPincode: "62701",
		ShippingMethod: "standard",
	}
	require.NoError(t, db.WithContext(ctx).Create(res).Error)
	require.NoError(t, db.WithContext(ctx).Create(&models.ReservationLine{
		ReservationID:  res.ID,
		ProductID:      productID,
		SKU:            "SKU-X",
		Name:           "Widget",
		UnitPriceCents: 500,
		Quantity:       qty,
	}).Error)
	return res.ID
}

func TestSweeper_ExpiresStaleReservationAndReleasesStock(t *testing.T) {
	db := setupSweeperDB(t)
	ctx := context.Background()

	product := &models.Product{SKU: "SKU-SWEEP", Name: "Widget"}
	require.NoError(t, db.WithContext(ctx).Create(product).Error)
	require.NoError(t, db.WithContext(ctx).Create(&models.Inventory{ProductID: product.ID, Stock: 50, Reserved: 10}).Error)

	reservationID := seedActiveReservation(t, db, product.ID, 10, time.Now().Add(-time.Minute))

	repo := repository.New(db)
	sw := sweeper.New(repo, zap.NewNop(), time.Minute)
	sw.RunOnceNow(ctx)

	var res models.Reservation
	require.NoError(t, db.WithContext(ctx).First(&res, "id = ?", reservationID).Error)
	require.Equal(t, models.ReservationExpired, res.State)

	inv, err := repo.Inventories.Read(ctx, product.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, inv.Reserved)
	require.EqualValues(t, 50, inv.Stock)
}

func TestSweeper_IgnoresNotYetExpiredReservation(t *testing.T) {
	db := setupSweeperDB(t)
	ctx := context.Background()

	product := &models.Product{SKU: "SKU-FUTURE", Name: "Widget"}
	require.NoError(t, db.WithContext(ctx).Create(product).Error)
	require.NoError(t, db.WithContext(ctx).Create(&models.Inventory{ProductID: product.ID, Stock: 50, Reserved: 5}).Error)

	reservationID := seedActiveReservation(t, db, product.ID, 5, time.Now().Add(time.Hour))

	repo := repository.New(db)
	sw := sweeper.New(repo, zap.NewNop(), time.Minute)
	sw.RunOnceNow(ctx)

	var res models.Reservation
	require.NoError(t, db.WithContext(ctx).First(&res, "id = ?", reservationID).Error)
	require.Equal(t, models.ReservationActive, res.State)
}

func TestSweeper_RunOnceNowSkipsWhenAlreadyRunning(t *testing.T) {
	db := setupSweeperDB(t)
	repo := repository.New(db)
	sw := sweeper.New(repo, zap.NewNop(), time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sw.Start(ctx)
	sw.RunOnceNow(ctx)
	sw.Stop()
}
