package inventory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgerrors "github.com/sevakart/sevakart-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	ddl := `CREATE TABLE product_variants (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		sku TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		price NUMERIC NOT NULL DEFAULT 0,
		stock INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`
	if err := db.Exec(ddl).Error; err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func seedVariant(t *testing.T, db *gorm.DB, stock int64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := db.Exec(
		"INSERT INTO product_variants (id, product_id, sku, stock) VALUES (?, ?, ?, ?)",
		id, uuid.New(), "sku-"+id.String()[:8], stock,
	).Error
	if err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	return id
}

func deactivateVariant(t *testing.T, db *gorm.DB, id uuid.UUID) {
	t.Helper()
	if err := db.Exec("UPDATE product_variants SET is_active = 0 WHERE id = ?", id).Error; err != nil {
		t.Fatalf("deactivate variant: %v", err)
	}
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func variantStock(t *testing.T, db *gorm.DB, id uuid.UUID) int64 {
	t.Helper()
	var stock int64
	if err := db.Raw("SELECT stock FROM product_variants WHERE id = ?", id).Scan(&stock).Error; err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return stock
}

func TestReserveLastUnitOnlyOnce(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	variantID := seedVariant(t, db, 1)

	if err := svc.Reserve(ctx, variantID, 1); err != nil {
		t.Fatalf("first reserve: %v", err)
	}

	err := svc.Reserve(ctx, variantID, 1)
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if got := variantStock(t, db, variantID); got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}
}

func TestReserveExactStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	variantID := seedVariant(t, db, 5)

	if err := svc.Reserve(ctx, variantID, 5); err != nil {
		t.Fatalf("reserve all stock: %v", err)
	}
	if got := variantStock(t, db, variantID); got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}
}

func TestReserveInactiveVariant(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	variantID := seedVariant(t, db, 5)
	deactivateVariant(t, db, variantID)

	err := svc.Reserve(ctx, variantID, 2)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict for inactive variant, got %v", err)
	}
	if got := variantStock(t, db, variantID); got != 5 {
		t.Fatalf("stock must be untouched, got %d", got)
	}
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	svc := newTestService(t, db)
	ctx := context.Background()
	variantID := seedVariant(t, db, 5)

	const buyers = 12
	var wg sync.WaitGroup
	var succeeded int64
	errs := make(chan error, buyers)

	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Reserve(ctx, variantID, 1); err != nil {
				errs <- err
				return
			}
			atomic.AddInt64(&succeeded, 1)
		}()
	}
	wg.Wait()
	close(errs)

	if succeeded != 5 {
		t.Fatalf("expected exactly 5 reserves to succeed, got %d", succeeded)
	}
	for err := range errs {
		if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
			t.Fatalf("losing reserve must report insufficient stock, got %v", err)
		}
	}
	if got := variantStock(t, db, variantID); got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}
}

func TestReserveUnknownVariant(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	err := svc.Reserve(context.Background(), uuid.New(), 1)
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReleaseRestoresStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	variantID := seedVariant(t, db, 3)

	if err := svc.Reserve(ctx, variantID, 3); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.Release(ctx, variantID, 3); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got := variantStock(t, db, variantID); got != 3 {
		t.Fatalf("expected stock 3, got %d", got)
	}

	if err := svc.Reserve(ctx, variantID, 2); err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
}

func TestReserveValidation(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	variantID := seedVariant(t, db, 10)

	if err := svc.Reserve(ctx, uuid.Nil, 1); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for nil id, got %v", err)
	}
	if err := svc.Reserve(ctx, variantID, 0); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for zero qty, got %v", err)
	}
	if err := svc.Release(ctx, variantID, -1); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for negative qty, got %v", err)
	}
	if got := variantStock(t, db, variantID); got != 10 {
		t.Fatalf("stock must be untouched, got %d", got)
	}
}
