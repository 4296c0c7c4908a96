package wallet

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sevakart/sevakart-backend/internal/balance"
	"github.com/sevakart/sevakart-backend/internal/ledger"
	"github.com/sevakart/sevakart-backend/pkg/db/models"
	"github.com/sevakart/sevakart-backend/pkg/enums"
	pkgerrors "github.com/sevakart/sevakart-backend/pkg/errors"
	"github.com/sevakart/sevakart-backend/pkg/logger"
	"github.com/sevakart/sevakart-backend/pkg/outbox"
	"github.com/sevakart/sevakart-backend/pkg/pagination"
)

// TxRunner executes a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Emitter queues domain events through the transactional outbox.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service pairs the ledger with the balance columns so every balance change
// has a matching ledger entry.
type Service interface {
	Credit(ctx context.Context, input MutationInput) (*models.WalletTransaction, error)
	Debit(ctx context.Context, input MutationInput) (*models.WalletTransaction, error)
	GetBalances(ctx context.Context, userID uuid.UUID) (*balance.Balances, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, filter ledger.ListFilter, params pagination.Params) ([]models.WalletTransaction, pagination.Meta, error)
}

// MutationInput describes one credit or debit.
type MutationInput struct {
	UserID   uuid.UUID
	Amount   decimal.Decimal
	Currency enums.WalletCurrency
	Source   enums.TransactionSource
	Metadata json.RawMessage
}

type service struct {
	runner      TxRunner
	ledger      ledger.Service
	balances    balance.Service
	emitter     Emitter
	logg        *logger.Logger
	txSupported bool
}

// Params collects wallet service dependencies.
type Params struct {
	Runner      TxRunner
	Ledger      ledger.Service
	Balances    balance.Service
	Emitter     Emitter
	Logger      *logger.Logger
	TxSupported bool
}

// NewService wires the wallet orchestrator.
func NewService(p Params) (Service, error) {
	if p.Runner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if p.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if p.Balances == nil {
		return nil, fmt.Errorf("balance service required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		runner:      p.Runner,
		ledger:      p.Ledger,
		balances:    p.Balances,
		emitter:     p.Emitter,
		logg:        p.Logger,
		txSupported: p.TxSupported,
	}, nil
}

// Credit adds funds: one ledger entry plus a balance increment. When the
// store supports transactions both writes share a commit; otherwise they run
// sequentially and a partial failure is surfaced for reconciliation.
func (s *service) Credit(ctx context.Context, input MutationInput) (*models.WalletTransaction, error) {
	appendInput := ledger.AppendEntryInput{
		UserID:   input.UserID,
		Type:     enums.TransactionTypeCredit,
		Amount:   input.Amount,
		Currency: input.Currency,
		Source:   input.Source,
		Metadata: input.Metadata,
	}

	if s.txSupported {
		var entry *models.WalletTransaction
		err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
			created, err := s.ledger.WithTx(tx).Append(ctx, appendInput)
			if err != nil {
				return err
			}
			if err := s.balances.WithTx(tx).Increment(ctx, input.UserID, input.Currency, input.Amount); err != nil {
				return err
			}
			entry = created
			return s.emitWalletEvent(ctx, tx, enums.EventWalletCredited, created)
		})
		if err != nil {
			return nil, err
		}
		return entry, nil
	}

	// Sequential fallback: ledger first, then balance. A failed increment
	// leaves an orphan ledger entry that the reconcile job repairs.
	entry, err := s.ledger.Append(ctx, appendInput)
	if err != nil {
		return nil, err
	}
	if err := s.balances.Increment(ctx, input.UserID, input.Currency, input.Amount); err != nil {
		s.reportOrphan(ctx, entry, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "ledger entry recorded but balance update failed")
	}
	s.emitStandalone(ctx, enums.EventWalletCredited, entry)
	return entry, nil
}

// Debit removes funds. The conditional decrement runs first so an
// insufficient balance never produces a ledger entry.
func (s *service) Debit(ctx context.Context, input MutationInput) (*models.WalletTransaction, error) {
	appendInput := ledger.AppendEntryInput{
		UserID:   input.UserID,
		Type:     enums.TransactionTypeDebit,
		Amount:   input.Amount,
		Currency: input.Currency,
		Source:   input.Source,
		Metadata: input.Metadata,
	}

	if s.txSupported {
		var entry *models.WalletTransaction
		err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.balances.WithTx(tx).Decrement(ctx, input.UserID, input.Currency, input.Amount); err != nil {
				return err
			}
			created, err := s.ledger.WithTx(tx).Append(ctx, appendInput)
			if err != nil {
				return err
			}
			entry = created
			return s.emitWalletEvent(ctx, tx, enums.EventWalletDebited, created)
		})
		if err != nil {
			return nil, err
		}
		return entry, nil
	}

	if err := s.balances.Decrement(ctx, input.UserID, input.Currency, input.Amount); err != nil {
		return nil, err
	}
	entry, err := s.ledger.Append(ctx, appendInput)
	if err != nil {
		// Balance already moved; flag the gap instead of guessing a rollback.
		s.reportDebitGap(ctx, input, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "balance updated but ledger append failed")
	}
	s.emitStandalone(ctx, enums.EventWalletDebited, entry)
	return entry, nil
}

func (s *service) GetBalances(ctx context.Context, userID uuid.UUID) (*balance.Balances, error) {
	return s.balances.Get(ctx, userID)
}

func (s *service) ListTransactions(ctx context.Context, userID uuid.UUID, filter ledger.ListFilter, params pagination.Params) ([]models.WalletTransaction, pagination.Meta, error) {
	return s.ledger.ListByUser(ctx, userID, filter, params)
}

func (s *service) emitWalletEvent(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, entry *models.WalletTransaction) error {
	if s.emitter == nil {
		return nil
	}
	return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateWalletTransaction,
		AggregateID:   entry.ID,
		Data:          entry,
		Version:       1,
	})
}

// emitStandalone queues an event in its own short transaction for the
// sequential path. Failures are logged, not returned.
func (s *service) emitStandalone(ctx context.Context, eventType enums.OutboxEventType, entry *models.WalletTransaction) {
	if s.emitter == nil {
		return
	}
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		return s.emitWalletEvent(ctx, tx, eventType, entry)
	})
	if err != nil {
		s.logg.Error(ctx, "queueing wallet event failed", err)
	}
}

func (s *service) reportOrphan(ctx context.Context, entry *models.WalletTransaction, cause error) {
	fields := map[string]any{
		"transaction_id": entry.ID.String(),
		"user_id":        entry.UserID.String(),
		"currency":       entry.Currency,
		"amount":         entry.Amount.String(),
	}
	logCtx := s.logg.WithFields(ctx, fields)
	s.logg.Error(logCtx, "wallet credit left orphan ledger entry", cause)

	if s.emitter == nil {
		return
	}
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWalletOrphanRisk,
			AggregateType: enums.AggregateWalletTransaction,
			AggregateID:   entry.ID,
			Data:          entry,
			Version:       1,
		})
	})
	if err != nil {
		s.logg.Error(ctx, "queueing orphan risk event failed", err)
	}
}

func (s *service) reportDebitGap(ctx context.Context, input MutationInput, cause error) {
	fields := map[string]any{
		"user_id":  input.UserID.String(),
		"currency": input.Currency,
		"amount":   input.Amount.String(),
	}
	logCtx := s.logg.WithFields(ctx, fields)
	s.logg.Error(logCtx, "wallet debit decremented balance without ledger entry", cause)
}
