package referral

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sevakart/sevakart-backend/internal/balance"
	"github.com/sevakart/sevakart-backend/internal/ledger"
	"github.com/sevakart/sevakart-backend/internal/users"
	pkgerrors "github.com/sevakart/sevakart-backend/pkg/errors"
	"github.com/sevakart/sevakart-backend/pkg/logger"
)

type gormRunner struct {
	db *gorm.DB
}

func (r gormRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:referral_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	stmts := []string{
		`CREATE TABLE users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			password_hash TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			phone TEXT,
			role TEXT NOT NULL DEFAULT 'customer',
			is_active INTEGER NOT NULL DEFAULT 1,
			money_balance NUMERIC NOT NULL DEFAULT 0,
			coin_balance INTEGER NOT NULL DEFAULT 0,
			referral_code TEXT NOT NULL,
			referred_by TEXT,
			last_login_at DATETIME,
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
		`CREATE TABLE referrals (
			id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
			code TEXT NOT NULL,
			referrer_id TEXT NOT NULL,
			referee_id TEXT NOT NULL,
			bonus_amount INTEGER NOT NULL,
			used_at DATETIME
		)`,
		`CREATE UNIQUE INDEX idx_referrals_referee ON referrals (referee_id)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, code string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := db.Exec(
		"INSERT INTO users (id, email, referral_code) VALUES (?, ?, ?)",
		id, id.String()+"@example.com", code,
	).Error
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

func newTestService(t *testing.T, db *gorm.DB, txSupported bool) Service {
	t.Helper()
	usersRepo := users.NewRepository(db)
	usersSvc, err := users.NewService(usersRepo)
	if err != nil {
		t.Fatalf("users service: %v", err)
	}
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db))
	if err != nil {
		t.Fatalf("ledger service: %v", err)
	}
	balanceSvc, err := balance.NewService(balance.NewRepository(db))
	if err != nil {
		t.Fatalf("balance service: %v", err)
	}
	svc, err := NewService(Params{
		Runner:      gormRunner{db: db},
		Repo:        NewRepository(db),
		Users:       usersSvc,
		UsersRepo:   usersRepo,
		Ledger:      ledgerSvc,
		Balances:    balanceSvc,
		Logger:      logger.New(logger.Options{ServiceName: "referral-test", Output: io.Discard}),
		BonusCoins:  50,
		TxSupported: txSupported,
	})
	if err != nil {
		t.Fatalf("referral service: %v", err)
	}
	return svc
}

func coinBalance(t *testing.T, db *gorm.DB, id uuid.UUID) int64 {
	t.Helper()
	var coins int64
	if err := db.Raw("SELECT coin_balance FROM users WHERE id = ?", id).Scan(&coins).Error; err != nil {
		t.Fatalf("read coin balance: %v", err)
	}
	return coins
}

func TestApplyPaysBothParties(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, true)
	ctx := context.Background()
	referrer := seedUser(t, db, "ABC12345")
	referee := seedUser(t, db, "XYZ98765")

	record, err := svc.Apply(ctx, referee, "ABC12345")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if record.ReferrerID != referrer || record.RefereeID != referee {
		t.Fatalf("unexpected record parties: %+v", record)
	}
	if record.BonusAmount != 50 {
		t.Fatalf("expected bonus 50, got %d", record.BonusAmount)
	}

	if got := coinBalance(t, db, referrer); got != 50 {
		t.Fatalf("referrer coins: expected 50, got %d", got)
	}
	if got := coinBalance(t, db, referee); got != 50 {
		t.Fatalf("referee coins: expected 50, got %d", got)
	}

	var referredBy string
	if err := db.Raw("SELECT COALESCE(referred_by, '') FROM users WHERE id = ?", referee).Scan(&referredBy).Error; err != nil {
		t.Fatalf("read referred_by: %v", err)
	}
	if referredBy != referrer.String() {
		t.Fatalf("expected referee marked with referrer id, got %q", referredBy)
	}

	var entryCount int64
	if err := db.Raw("SELECT COUNT(*) FROM wallet_transactions WHERE source = 'referral'").Scan(&entryCount).Error; err != nil {
		t.Fatalf("count entries: %v", err)
	}
	if entryCount != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", entryCount)
	}
}

func TestApplyRejectsSecondUse(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, true)
	ctx := context.Background()
	seedUser(t, db, "AAAA1111")
	seedUser(t, db, "BBBB2222")
	referee := seedUser(t, db, "CCCC3333")

	if _, err := svc.Apply(ctx, referee, "AAAA1111"); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	_, err := svc.Apply(ctx, referee, "BBBB2222")
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// Balance stays at the single bonus.
	if got := coinBalance(t, db, referee); got != 50 {
		t.Fatalf("expected 50 coins after rejected reuse, got %d", got)
	}
}

func TestApplyRejectsSelfReferral(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, true)
	referee := seedUser(t, db, "SELF1234")

	_, err := svc.Apply(context.Background(), referee, "SELF1234")
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := coinBalance(t, db, referee); got != 0 {
		t.Fatalf("expected no bonus, got %d", got)
	}
}

func TestApplyUnknownCode(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, true)
	referee := seedUser(t, db, "KNOWN123")

	_, err := svc.Apply(context.Background(), referee, "MISSING1")
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestApplyUnknownReferee(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, true)
	seedUser(t, db, "REFR1234")

	_, err := svc.Apply(context.Background(), uuid.New(), "REFR1234")
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestApplySequentialPaysBothParties(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, false)
	ctx := context.Background()
	referrer := seedUser(t, db, "SEQQ1111")
	referee := seedUser(t, db, "SEQQ2222")

	if _, err := svc.Apply(ctx, referee, "SEQQ1111"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := coinBalance(t, db, referrer); got != 50 {
		t.Fatalf("referrer coins: expected 50, got %d", got)
	}
	if got := coinBalance(t, db, referee); got != 50 {
		t.Fatalf("referee coins: expected 50, got %d", got)
	}
}

func TestStatsByReferrer(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, true)
	ctx := context.Background()
	referrer := seedUser(t, db, "STAT1111")
	refereeA := seedUser(t, db, "STAT2222")
	refereeB := seedUser(t, db, "STAT3333")

	if _, err := svc.Apply(ctx, refereeA, "STAT1111"); err != nil {
		t.Fatalf("apply a: %v", err)
	}
	if _, err := svc.Apply(ctx, refereeB, "STAT1111"); err != nil {
		t.Fatalf("apply b: %v", err)
	}

	stats, err := svc.StatsByReferrer(ctx, referrer)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Count != 2 || stats.TotalCoins != 100 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
