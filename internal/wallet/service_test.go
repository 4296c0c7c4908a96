package wallet

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sevakart/sevakart-backend/internal/balance"
	"github.com/sevakart/sevakart-backend/internal/ledger"
	"github.com/sevakart/sevakart-backend/pkg/enums"
	pkgerrors "github.com/sevakart/sevakart-backend/pkg/errors"
	"github.com/sevakart/sevakart-backend/pkg/logger"
	"github.com/sevakart/sevakart-backend/pkg/pagination"
)

type gormRunner struct {
	db *gorm.DB
}

func (r gormRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:wallet_" + uuid.NewString() + "?mode=memory&cache=shared"
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
			referral_code TEXT NOT NULL DEFAULT '',
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
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, money int64, coins int64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := db.Exec(
		"INSERT INTO users (id, email, money_balance, coin_balance, referral_code) VALUES (?, ?, ?, ?, ?)",
		id, id.String()+"@example.com", money, coins, id.String()[:8],
	).Error
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

func newTestService(t *testing.T, db *gorm.DB, txSupported bool) Service {
	t.Helper()
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
		Ledger:      ledgerSvc,
		Balances:    balanceSvc,
		Logger:      logger.New(logger.Options{ServiceName: "wallet-test", Output: io.Discard}),
		TxSupported: txSupported,
	})
	if err != nil {
		t.Fatalf("wallet service: %v", err)
	}
	return svc
}

func countEntries(t *testing.T, db *gorm.DB, userID uuid.UUID) int64 {
	t.Helper()
	var count int64
	if err := db.Raw("SELECT COUNT(*) FROM wallet_transactions WHERE user_id = ?", userID).Scan(&count).Error; err != nil {
		t.Fatalf("count entries: %v", err)
	}
	return count
}

func TestDebitInsufficientFundsLeavesNoEntry(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, true)
	ctx := context.Background()
	userID := seedUser(t, db, 100, 0)

	if _, err := svc.Debit(ctx, MutationInput{
		UserID:   userID,
		Amount:   decimal.NewFromInt(60),
		Currency: enums.WalletCurrencyMoney,
		Source:   enums.TransactionSourceOrder,
	}); err != nil {
		t.Fatalf("first debit: %v", err)
	}

	_, err := svc.Debit(ctx, MutationInput{
		UserID:   userID,
		Amount:   decimal.NewFromInt(60),
		Currency: enums.WalletCurrencyMoney,
		Source:   enums.TransactionSourceOrder,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	balances, err := svc.GetBalances(ctx, userID)
	if err != nil {
		t.Fatalf("get balances: %v", err)
	}
	if !balances.Money.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected balance 40, got %s", balances.Money)
	}
	if got := countEntries(t, db, userID); got != 1 {
		t.Fatalf("expected exactly one ledger entry, got %d", got)
	}
}

func TestCreditWritesLedgerAndBalance(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, true)
	ctx := context.Background()
	userID := seedUser(t, db, 0, 0)

	if _, err := svc.Credit(ctx, MutationInput{
		UserID:   userID,
		Amount:   decimal.NewFromInt(50),
		Currency: enums.WalletCurrencyCoins,
		Source:   enums.TransactionSourceReferral,
	}); err != nil {
		t.Fatalf("credit: %v", err)
	}

	balances, err := svc.GetBalances(ctx, userID)
	if err != nil {
		t.Fatalf("get balances: %v", err)
	}
	if balances.Coins != 50 {
		t.Fatalf("expected 50 coins, got %d", balances.Coins)
	}
	if got := countEntries(t, db, userID); got != 1 {
		t.Fatalf("expected one ledger entry, got %d", got)
	}
}

func TestCreditRollsBackLedgerOnBalanceFailure(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, true)
	ctx := context.Background()
	missing := uuid.New()

	_, err := svc.Credit(ctx, MutationInput{
		UserID:   missing,
		Amount:   decimal.NewFromInt(10),
		Currency: enums.WalletCurrencyMoney,
		Source:   enums.TransactionSourceAdmin,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if got := countEntries(t, db, missing); got != 0 {
		t.Fatalf("expected rollback to remove ledger entry, got %d", got)
	}
}

func TestCreditSequentialFallbackLeavesOrphanEntry(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, false)
	ctx := context.Background()
	missing := uuid.New()

	_, err := svc.Credit(ctx, MutationInput{
		UserID:   missing,
		Amount:   decimal.NewFromInt(10),
		Currency: enums.WalletCurrencyMoney,
		Source:   enums.TransactionSourceAdmin,
	})
	if err == nil {
		t.Fatal("expected error when balance update fails")
	}

	// Without transactions the ledger write survives; reconciliation owns it.
	if got := countEntries(t, db, missing); got != 1 {
		t.Fatalf("expected orphan ledger entry, got %d", got)
	}
}

func TestDebitSequentialChecksBalanceFirst(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, false)
	ctx := context.Background()
	userID := seedUser(t, db, 30, 0)

	_, err := svc.Debit(ctx, MutationInput{
		UserID:   userID,
		Amount:   decimal.NewFromInt(60),
		Currency: enums.WalletCurrencyMoney,
		Source:   enums.TransactionSourceOrder,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if got := countEntries(t, db, userID); got != 0 {
		t.Fatalf("expected no ledger entries, got %d", got)
	}
}

func TestListTransactions(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, true)
	ctx := context.Background()
	userID := seedUser(t, db, 100, 100)

	for _, amount := range []int64{10, 20} {
		if _, err := svc.Debit(ctx, MutationInput{
			UserID:   userID,
			Amount:   decimal.NewFromInt(amount),
			Currency: enums.WalletCurrencyMoney,
			Source:   enums.TransactionSourceOrder,
		}); err != nil {
			t.Fatalf("debit %d: %v", amount, err)
		}
	}

	entries, meta, err := svc.ListTransactions(ctx, userID, ledger.ListFilter{}, pagination.Params{})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if meta.Total != 2 {
		t.Fatalf("expected total 2, got %d", meta.Total)
	}
}
