package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/sevakart/sevakart-backend/internal/ledger"
	"github.com/sevakart/sevakart-backend/pkg/enums"
	"github.com/sevakart/sevakart-backend/pkg/logger"
	"github.com/sevakart/sevakart-backend/pkg/metrics"
)

const jobName = "wallet-reconcile"

const defaultBatchSize = 200

// WalletSnapshot is one user's stored balances as read from the users table.
type WalletSnapshot struct {
	UserID       uuid.UUID
	MoneyBalance decimal.Decimal
	CoinBalance  int64
}

// BalanceReader pages through stored wallet balances.
type BalanceReader interface {
	ListWallets(ctx context.Context, afterID uuid.UUID, limit int) ([]WalletSnapshot, error)
}

// JobParams configure the wallet reconciliation job.
type JobParams struct {
	Reader    BalanceReader
	Ledger    ledger.Service
	Metrics   *metrics.JobMetrics
	Logger    *logger.Logger
	BatchSize int
}

// Job walks every wallet and compares the stored balances against the signed
// ledger sum. It closes the inconsistency window the sequential wallet paths
// leave open: drift is reported, never silently repaired.
type Job struct {
	reader    BalanceReader
	ledger    ledger.Service
	metrics   *metrics.JobMetrics
	logg      *logger.Logger
	batchSize int
	now       func() time.Time
}

// NewJob builds the reconciliation job.
func NewJob(params JobParams) (*Job, error) {
	if params.Reader == nil {
		return nil, fmt.Errorf("balance reader required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Job{
		reader:    params.Reader,
		ledger:    params.Ledger,
		metrics:   params.Metrics,
		logg:      params.Logger,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

// Name identifies the job in logs and metrics.
func (j *Job) Name() string { return jobName }

// Run scans all wallets once.
func (j *Job) Run(ctx context.Context) error {
	started := j.now()
	moneyDrift, coinDrift, err := j.scan(ctx)

	if j.metrics != nil {
		j.metrics.ObserveDuration(jobName, j.now().Sub(started))
		j.metrics.SetWalletDrift(string(enums.WalletCurrencyMoney), moneyDrift)
		j.metrics.SetWalletDrift(string(enums.WalletCurrencyCoins), coinDrift)
		if err != nil {
			j.metrics.IncFailure(jobName)
		} else {
			j.metrics.IncSuccess(jobName)
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"money_drift": moneyDrift,
		"coin_drift":  coinDrift,
	})
	if err != nil {
		j.logg.Error(logCtx, "wallet reconciliation finished with errors", err)
		return err
	}
	j.logg.Info(logCtx, "wallet reconciliation finished")
	return nil
}

func (j *Job) scan(ctx context.Context) (moneyDrift, coinDrift int, err error) {
	var afterID uuid.UUID
	for {
		if ctx.Err() != nil {
			return moneyDrift, coinDrift, multierr.Append(err, ctx.Err())
		}

		wallets, readErr := j.reader.ListWallets(ctx, afterID, j.batchSize)
		if readErr != nil {
			return moneyDrift, coinDrift, multierr.Append(err, fmt.Errorf("listing wallets: %w", readErr))
		}
		if len(wallets) == 0 {
			return moneyDrift, coinDrift, err
		}

		for _, wallet := range wallets {
			money, coins, checkErr := j.check(ctx, wallet)
			err = multierr.Append(err, checkErr)
			if money {
				moneyDrift++
			}
			if coins {
				coinDrift++
			}
		}
		afterID = wallets[len(wallets)-1].UserID
	}
}

func (j *Job) check(ctx context.Context, wallet WalletSnapshot) (moneyDrift, coinDrift bool, err error) {
	moneySum, moneyErr := j.ledger.SumByUser(ctx, wallet.UserID, enums.WalletCurrencyMoney)
	if moneyErr != nil {
		err = multierr.Append(err, fmt.Errorf("summing money ledger for %s: %w", wallet.UserID, moneyErr))
	} else if !moneySum.Equal(wallet.MoneyBalance) {
		moneyDrift = true
		j.reportDrift(ctx, wallet.UserID, enums.WalletCurrencyMoney, wallet.MoneyBalance.String(), moneySum.String())
	}

	coinSum, coinErr := j.ledger.SumByUser(ctx, wallet.UserID, enums.WalletCurrencyCoins)
	if coinErr != nil {
		err = multierr.Append(err, fmt.Errorf("summing coin ledger for %s: %w", wallet.UserID, coinErr))
	} else if !coinSum.Equal(decimal.NewFromInt(wallet.CoinBalance)) {
		coinDrift = true
		j.reportDrift(ctx, wallet.UserID, enums.WalletCurrencyCoins, decimal.NewFromInt(wallet.CoinBalance).String(), coinSum.String())
	}
	return moneyDrift, coinDrift, err
}

func (j *Job) reportDrift(ctx context.Context, userID uuid.UUID, currency enums.WalletCurrency, stored, ledgerSum string) {
	logCtx := j.logg.WithUserID(ctx, userID.String())
	logCtx = j.logg.WithFields(logCtx, map[string]any{
		"currency":   currency.String(),
		"stored":     stored,
		"ledger_sum": ledgerSum,
	})
	j.logg.Warn(logCtx, "wallet balance out of sync with ledger")
}
