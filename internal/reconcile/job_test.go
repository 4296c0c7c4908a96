package reconcile

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sevakart/sevakart-backend/internal/ledger"
	"github.com/sevakart/sevakart-backend/pkg/logger"
	"github.com/sevakart/sevakart-backend/pkg/metrics"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:reconcile_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	stmts := []string{
		`CREATE TABLE users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			money_balance NUMERIC NOT NULL DEFAULT 0,
			coin_balance INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE wallet_transactions (
			id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			amount NUMERIC NOT NULL,
			currency TEXT NOT NULL,
			source TEXT NOT NULL,
			metadata TEXT,
			created_at DATETIME
		)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func seedWallet(t *testing.T, db *gorm.DB, money string, coins int64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := db.Exec(
		"INSERT INTO users (id, email, money_balance, coin_balance) VALUES (?, ?, ?, ?)",
		id, id.String()[:8]+"@example.com", money, coins,
	).Error
	if err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
	return id
}

func seedEntry(t *testing.T, db *gorm.DB, userID uuid.UUID, entryType, amount, currency string) {
	t.Helper()
	err := db.Exec(
		"INSERT INTO wallet_transactions (user_id, type, amount, currency, source) VALUES (?, ?, ?, ?, 'admin')",
		userID, entryType, amount, currency,
	).Error
	if err != nil {
		t.Fatalf("seed entry: %v", err)
	}
}

func newTestJob(t *testing.T, db *gorm.DB, batchSize int) (*Job, *metrics.JobMetrics) {
	t.Helper()
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db))
	if err != nil {
		t.Fatalf("ledger service: %v", err)
	}
	jobMetrics := metrics.NewJobMetrics(prometheus.NewRegistry())
	job, err := NewJob(JobParams{
		Reader:    NewRepository(db),
		Ledger:    ledgerSvc,
		Metrics:   jobMetrics,
		Logger:    logger.New(logger.Options{ServiceName: "reconcile-test", Output: io.Discard}),
		BatchSize: batchSize,
	})
	if err != nil {
		t.Fatalf("reconcile job: %v", err)
	}
	return job, jobMetrics
}

func TestRunDetectsDrift(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	job, _ := newTestJob(t, db, 2)
	ctx := context.Background()

	// In sync: 100 - 40 = 60 stored.
	healthy := seedWallet(t, db, "60.00", 0)
	seedEntry(t, db, healthy, "credit", "100.00", "money")
	seedEntry(t, db, healthy, "debit", "40.00", "money")

	// Orphaned ledger entry: credit recorded, balance never updated.
	drifted := seedWallet(t, db, "0", 0)
	seedEntry(t, db, drifted, "credit", "25.00", "money")

	// Coin drift only.
	coinDrifted := seedWallet(t, db, "0", 50)
	seedEntry(t, db, coinDrifted, "credit", "100", "coins")

	moneyDrift, coinDrift, err := job.scan(ctx)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if moneyDrift != 1 {
		t.Fatalf("money drift = %d, want 1", moneyDrift)
	}
	if coinDrift != 1 {
		t.Fatalf("coin drift = %d, want 1", coinDrift)
	}

	if err := job.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunCleanLedger(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	job, _ := newTestJob(t, db, 10)

	wallet := seedWallet(t, db, "10.00", 5)
	seedEntry(t, db, wallet, "credit", "10.00", "money")
	seedEntry(t, db, wallet, "credit", "5", "coins")

	moneyDrift, coinDrift, err := job.scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if moneyDrift != 0 || coinDrift != 0 {
		t.Fatalf("drift = %d/%d, want clean", moneyDrift, coinDrift)
	}
}

func TestListWalletsPagination(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	reader := NewRepository(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		seedWallet(t, db, "0", 0)
	}

	seen := map[uuid.UUID]bool{}
	var afterID uuid.UUID
	for {
		wallets, err := reader.ListWallets(ctx, afterID, 2)
		if err != nil {
			t.Fatalf("list wallets: %v", err)
		}
		if len(wallets) == 0 {
			break
		}
		for _, w := range wallets {
			if seen[w.UserID] {
				t.Fatalf("wallet %s returned twice", w.UserID)
			}
			seen[w.UserID] = true
		}
		afterID = wallets[len(wallets)-1].UserID
	}
	if len(seen) != 5 {
		t.Fatalf("saw %d wallets, want 5", len(seen))
	}
}

func TestMissingWalletIsDrift(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	job, _ := newTestJob(t, db, 10)

	// Stored balance with no ledger history at all.
	seedWallet(t, db, "99.00", 0)

	moneyDrift, _, err := job.scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if moneyDrift != 1 {
		t.Fatalf("money drift = %d, want 1", moneyDrift)
	}
}
