package repository_test

import (
	"context"
	"testing"

	"reservation-core/internal/migrate"
	"reservation-core/internal/models"
	"reservation-core/internal/platform/testutil"
	"reservation-core/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := testutil.SetupTestPostgres(t)
	if err := migrate.Run(context.Background(), db, zap.NewNop(), migrate.DefaultOptions()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, stock int32) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	product := &models.Product{SKU: "SKU-" + uuid.NewString(), Name: "Test Product", UnitPriceCents: 1000, LowStockThreshold: 5}
	if err := db.WithContext(ctx).Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	inv := &models.Inventory{ProductID: product.ID, Stock: stock, Reserved: 0}
	if err := db.WithContext(ctx).Create(inv).Error; err != nil {
		t.Fatalf("create inventory: %v", err)
	}
	return product.ID
}

func TestInventoryRepo_TryIncrementReserved(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewInventoryRepo(db)
	ctx := context.Background()

	productID := seedProduct(t, db, 100)

	ok, err := repo.TryIncrementReserved(ctx, productID, 30)
	if err != nil {
		t.Fatalf("TryIncrementReserved: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true")
	}

	inv, err := repo.Read(ctx, productID)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if inv.Stock != 100 || inv.Reserved != 30 {
		t.Fatalf("expected stock=100, reserved=30, got %+v", inv)
	}

	ok, err = repo.TryIncrementReserved(ctx, productID, 80)
	if err != nil {
		t.Fatalf("TryIncrementReserved overflow: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false when (stock-reserved) < n")
	}

	inv, _ = repo.Read(ctx, productID)
	if inv.Reserved != 30 {
		t.Fatalf("expected reserved unchanged at 30, got %d", inv.Reserved)
	}
}

func TestInventoryRepo_TryCommit(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewInventoryRepo(db)
	ctx := context.Background()

	productID := seedProduct(t, db, 100)

	if _, err := repo.TryIncrementReserved(ctx, productID, 20); err != nil {
		t.Fatalf("TryIncrementReserved: %v", err)
	}

	ok, stockAfter, err := repo.TryCommit(ctx, productID, 20)
	if err != nil {
		t.Fatalf("TryCommit: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true")
	}
	if stockAfter != 80 {
		t.Fatalf("expected stockAfter=80, got %d", stockAfter)
	}

	inv, _ := repo.Read(ctx, productID)
	if inv.Stock != 80 || inv.Reserved != 0 {
		t.Fatalf("expected stock=80, reserved=0, got %+v", inv)
	}

	ok, _, err = repo.TryCommit(ctx, productID, 10)
	if err != nil {
		t.Fatalf("TryCommit with nothing reserved: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false when reserved < n")
	}
}

func TestInventoryRepo_ReleaseReserved(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewInventoryRepo(db)
	ctx := context.Background()

	productID := seedProduct(t, db, 50)

	if _, err := repo.TryIncrementReserved(ctx, productID, 20); err != nil {
		t.Fatalf("TryIncrementReserved: %v", err)
	}

	ok, err := repo.ReleaseReserved(ctx, productID, 20)
	if err != nil {
		t.Fatalf("ReleaseReserved: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true")
	}

	inv, _ := repo.Read(ctx, productID)
	if inv.Reserved != 0 {
		t.Fatalf("expected reserved=0, got %d", inv.Reserved)
	}

	ok, err = repo.ReleaseReserved(ctx, productID, 10)
	if err != nil {
		t.Fatalf("ReleaseReserved underflow: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false when reserved would go negative")
	}
}

func TestIdempotencyRepo_ReserveSlotConflict(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewIdempotencyRepo(db)
	ctx := context.Background()

	rec := &models.IdempotencyRecord{
		CallerID:    "caller-1",
		Endpoint:    "confirm",
		Key:         "tok-1",
		Fingerprint: "abc",
		State:       models.IdempotencyInProgress,
	}
	if err := repo.ReserveSlot(ctx, rec); err != nil {
		t.Fatalf("ReserveSlot: %v", err)
	}

	dup := &models.IdempotencyRecord{
		CallerID:    "caller-1",
		Endpoint:    "confirm",
		Key:         "tok-1",
		Fingerprint: "def",
		State:       models.IdempotencyInProgress,
	}
	err := repo.ReserveSlot(ctx, dup)
	if err != repository.ErrIdempotencyExists {
		t.Fatalf("expected ErrIdempotencyExists, got %v", err)
	}
}

func TestIdempotencyRepo_Finish(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewIdempotencyRepo(db)
	ctx := context.Background()

	rec := &models.IdempotencyRecord{
		CallerID:    "caller-2",
		Endpoint:    "confirm",
		Key:         "tok-2",
		Fingerprint: "abc",
		State:       models.IdempotencyInProgress,
	}
	if err := repo.ReserveSlot(ctx, rec); err != nil {
		t.Fatalf("ReserveSlot: %v", err)
	}

	orderID := uuid.New()
	ok, err := repo.Finish(ctx, rec.ID, models.IdempotencySucceeded, uuid.NullUUID{UUID: orderID, Valid: true}, "created")
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true")
	}

	got, err := repo.Get(ctx, "caller-2", "confirm", "tok-2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != models.IdempotencySucceeded || got.ResponseOrderID.UUID != orderID {
		t.Fatalf("unexpected record after finish: %+v", got)
	}

	ok, err = repo.Finish(ctx, rec.ID, models.IdempotencyFailed, uuid.NullUUID{}, "")
	if err != nil {
		t.Fatalf("Finish again: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false, record is no longer in_progress")
	}
}
