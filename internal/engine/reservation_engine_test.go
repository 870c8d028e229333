package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"reservation-core/internal/engine"
	"reservation-core/internal/migrate"
	"reservation-core/internal/models"
	"reservation-core/internal/platform/testutil"
	"reservation-core/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupEngine(t *testing.T) (*engine.Engine, *repository.Repository, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestPostgres(t)
	require.NoError(t, migrate.Run(context.Background(), db, zap.NewNop(), migrate.DefaultOptions()))

	repo := repository.New(db)
	eng := engine.New(repo, nil, nil, zap.NewNop())
	return eng, repo, db
}

func seedProduct(t *testing.T, db *gorm.DB, stock int32, threshold int32) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	p := &models.Product{SKU: "SKU-" + uuid.NewString(), Name: "Widget", UnitPriceCents: 500, LowStockThreshold: threshold}
	require.NoError(t, db.WithContext(ctx).Create(p).Error)
	require.NoError(t, db.WithContext(ctx).Create(&models.Inventory{ProductID: p.ID, Stock: stock}).Error)
	return p.ID
}

func validAddress() engine.Address {
	return engine.Address{Name: "Jane Doe", Phone: "555-0100", Line1: "1 Main St", City: "Springfield", State: "IL", Pincode: "62701"}
}

func TestEngine_ReserveThenConfirm_HappyPath(t *testing.T) {
	eng, repo, db := setupEngine(t)
	ctx := context.Background()
	productID := seedProduct(t, db, 100, 5)

	reserveOut, err := eng.Reserve(ctx, engine.ReserveInput{
		CallerID:       "caller-1",
		Address:        validAddress(),
		ShippingMethod: "standard",
	}, []engine.CartLine{{ProductID: productID, Quantity: 3}})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, reserveOut.ReservationID)

	inv, err := repo.Inventories.Read(ctx, productID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, inv.Reserved)
	assert.EqualValues(t, 100, inv.Stock)

	confirmOut, err := eng.Confirm(ctx, engine.ConfirmInput{
		CallerID:         "caller-1",
		ReservationID:    reserveOut.ReservationID,
		IdempotencyToken: "tok-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "created", confirmOut.Status)

	inv, err = repo.Inventories.Read(ctx, productID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, inv.Reserved)
	assert.EqualValues(t, 97, inv.Stock)

	view, err := eng.GetReservation(ctx, reserveOut.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, "consumed", view.State)
	assert.False(t, view.IsValid)
}

func TestEngine_Confirm_IdempotentReplayReturnsSameResult(t *testing.T) {
	eng, _, db := setupEngine(t)
	ctx := context.Background()
	productID := seedProduct(t, db, 10, 5)

	reserveOut, err := eng.Reserve(ctx, engine.ReserveInput{
		CallerID:       "caller-2",
		Address:        validAddress(),
		ShippingMethod: "express",
	}, []engine.CartLine{{ProductID: productID, Quantity: 2}})
	require.NoError(t, err)

	in := engine.ConfirmInput{CallerID: "caller-2", ReservationID: reserveOut.ReservationID, IdempotencyToken: "retry-key"}

	first, err := eng.Confirm(ctx, in)
	require.NoError(t, err)

	second, err := eng.Confirm(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, first.Status, second.Status)
}

func TestEngine_Confirm_SameTokenDifferentReservationIsMismatch(t *testing.T) {
	eng, _, db := setupEngine(t)
	ctx := context.Background()
	productA := seedProduct(t, db, 10, 5)
	productB := seedProduct(t, db, 10, 5)

	resA, err := eng.Reserve(ctx, engine.ReserveInput{CallerID: "caller-3", Address: validAddress(), ShippingMethod: "standard"},
		[]engine.CartLine{{ProductID: productA, Quantity: 1}})
	require.NoError(t, err)
	resB, err := eng.Reserve(ctx, engine.ReserveInput{CallerID: "caller-3", Address: validAddress(), ShippingMethod: "standard"},
		[]engine.CartLine{{ProductID: productB, Quantity: 1}})
	require.NoError(t, err)

	_, err = eng.Confirm(ctx, engine.ConfirmInput{CallerID: "caller-3", ReservationID: resA.ReservationID, IdempotencyToken: "shared-token"})
	require.NoError(t, err)

	_, err = eng.Confirm(ctx, engine.ConfirmInput{CallerID: "caller-3", ReservationID: resB.ReservationID, IdempotencyToken: "shared-token"})
	assert.ErrorIs(t, err, engine.ErrIdempotencyMismatch)
}

func TestEngine_Reserve_InsufficientStockAbortsAllLines(t *testing.T) {
	eng, repo, db := setupEngine(t)
	ctx := context.Background()
	productA := seedProduct(t, db, 10, 5)
	productB := seedProduct(t, db, 1, 5)

	_, err := eng.Reserve(ctx, engine.ReserveInput{CallerID: "caller-4", Address: validAddress(), ShippingMethod: "standard"},
		[]engine.CartLine{{ProductID: productA, Quantity: 5}, {ProductID: productB, Quantity: 5}})
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrInsufficientStock)

	invA, err := repo.Inventories.Read(ctx, productA)
	require.NoError(t, err)
	assert.EqualValues(t, 0, invA.Reserved, "first line must be rolled back when a later line fails")
}

func TestEngine_Confirm_ForbiddenForWrongCaller(t *testing.T) {
	eng, _, db := setupEngine(t)
	ctx := context.Background()
	productID := seedProduct(t, db, 10, 5)

	reserveOut, err := eng.Reserve(ctx, engine.ReserveInput{CallerID: "owner", Address: validAddress(), ShippingMethod: "standard"},
		[]engine.CartLine{{ProductID: productID, Quantity: 1}})
	require.NoError(t, err)

	_, err = eng.Confirm(ctx, engine.ConfirmInput{CallerID: "not-owner", ReservationID: reserveOut.ReservationID, IdempotencyToken: "tok"})
	assert.ErrorIs(t, err, engine.ErrForbidden)
}

func TestEngine_Confirm_UnknownReservationNotFound(t *testing.T) {
	eng, _, _ := setupEngine(t)
	ctx := context.Background()

	_, err := eng.Confirm(ctx, engine.ConfirmInput{CallerID: "caller-5", ReservationID: uuid.New(), IdempotencyToken: "tok"})
	assert.True(t, errors.Is(err, engine.ErrReservationNotFound))
}

func TestEngine_Reserve_ConcurrentOverlappingRequestsNeverOversell(t *testing.T) {
	eng, repo, db := setupEngine(t)
	ctx := context.Background()
	productID := seedProduct(t, db, 10, 5)

	const callers = 5
	const qtyEach = 3 // 5 * 3 = 15 requested against 10 in stock; at most 3 can succeed

	var wg sync.WaitGroup
	results := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := eng.Reserve(ctx, engine.ReserveInput{
				CallerID:       "racer-" + uuid.NewString(),
				Address:        validAddress(),
				ShippingMethod: "standard",
			}, []engine.CartLine{{ProductID: productID, Quantity: qtyEach}})
			results[i] = err
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, engine.ErrInsufficientStock)
		}
	}
	assert.LessOrEqual(t, succeeded, 3, "at most 3 racers of qty 3 can fit in 10 units of stock")

	inv, err := repo.Inventories.Read(ctx, productID)
	require.NoError(t, err)
	assert.LessOrEqual(t, inv.Reserved, inv.Stock, "reserved must never exceed stock")
	assert.Equal(t, int32(succeeded)*qtyEach, inv.Reserved)
}

func TestEngine_LowStockSignalEmittedBelowThreshold(t *testing.T) {
	eng, _, db := setupEngine(t)
	ctx := context.Background()
	productID := seedProduct(t, db, 10, 8)

	reserveOut, err := eng.Reserve(ctx, engine.ReserveInput{CallerID: "caller-6", Address: validAddress(), ShippingMethod: "standard"},
		[]engine.CartLine{{ProductID: productID, Quantity: 5}})
	require.NoError(t, err)

	_, err = eng.Confirm(ctx, engine.ConfirmInput{CallerID: "caller-6", ReservationID: reserveOut.ReservationID, IdempotencyToken: "tok"})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.WithContext(ctx).Model(&models.LowStockSignal{}).Where("product_id = ?", productID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
