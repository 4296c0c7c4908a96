package referral

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sevakart/sevakart-backend/internal/balance"
	"github.com/sevakart/sevakart-backend/internal/ledger"
	"github.com/sevakart/sevakart-backend/internal/users"
	dbpkg "github.com/sevakart/sevakart-backend/pkg/db"
	"github.com/sevakart/sevakart-backend/pkg/db/models"
	"github.com/sevakart/sevakart-backend/pkg/enums"
	pkgerrors "github.com/sevakart/sevakart-backend/pkg/errors"
	"github.com/sevakart/sevakart-backend/pkg/logger"
	"github.com/sevakart/sevakart-backend/pkg/outbox"
)

// TxRunner executes a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Emitter queues domain events through the transactional outbox.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Stats summarizes what a referrer has earned.
type Stats struct {
	Count      int   `json:"count"`
	TotalCoins int64 `json:"total_coins"`
}

// Service applies referral codes and pays the coin bonus to both parties.
type Service interface {
	Apply(ctx context.Context, refereeID uuid.UUID, code string) (*models.Referral, error)
	ApplyOnSignup(ctx context.Context, refereeID uuid.UUID, code string)
	StatsByReferrer(ctx context.Context, referrerID uuid.UUID) (*Stats, error)
}

// Params collects referral service dependencies.
type Params struct {
	Runner      TxRunner
	Repo        Repository
	Users       users.Service
	UsersRepo   users.Repository
	Ledger      ledger.Service
	Balances    balance.Service
	Emitter     Emitter
	Logger      *logger.Logger
	BonusCoins  int64
	TxSupported bool
}

type service struct {
	runner      TxRunner
	repo        Repository
	users       users.Service
	usersRepo   users.Repository
	ledger      ledger.Service
	balances    balance.Service
	emitter     Emitter
	logg        *logger.Logger
	bonusCoins  int64
	txSupported bool
}

// NewService wires the referral orchestrator.
func NewService(p Params) (Service, error) {
	if p.Runner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if p.Repo == nil {
		return nil, fmt.Errorf("referral repository required")
	}
	if p.Users == nil || p.UsersRepo == nil {
		return nil, fmt.Errorf("users service and repository required")
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
	if p.BonusCoins <= 0 {
		return nil, fmt.Errorf("bonus coins must be positive")
	}
	return &service{
		runner:      p.Runner,
		repo:        p.Repo,
		users:       p.Users,
		usersRepo:   p.UsersRepo,
		ledger:      p.Ledger,
		balances:    p.Balances,
		emitter:     p.Emitter,
		logg:        p.Logger,
		bonusCoins:  p.BonusCoins,
		txSupported: p.TxSupported,
	}, nil
}

// Apply validates the code against the referee and pays both sides. The
// validation order is fixed: missing user, already referred, unknown code,
// self referral.
func (s *service) Apply(ctx context.Context, refereeID uuid.UUID, code string) (*models.Referral, error) {
	referee, err := s.users.Get(ctx, refereeID)
	if err != nil {
		return nil, err
	}

	if referee.ReferredBy != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "referral code already used")
	}
	if _, err := s.repo.FindByReferee(ctx, refereeID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "referral code already used")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking existing referral")
	}

	referrer, err := s.users.GetByReferralCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if referrer.ID == referee.ID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot use your own referral code")
	}

	record := &models.Referral{
		Code:        referrer.ReferralCode,
		ReferrerID:  referrer.ID,
		RefereeID:   referee.ID,
		BonusAmount: s.bonusCoins,
	}

	if s.txSupported {
		if err := s.applyTransactional(ctx, record); err != nil {
			return nil, err
		}
		return record, nil
	}
	if err := s.applySequential(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *service) applyTransactional(ctx context.Context, record *models.Referral) error {
	return s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, record); err != nil {
			if dbpkg.IsUniqueViolation(err, "idx_referrals_referee") {
				return pkgerrors.New(pkgerrors.CodeConflict, "referral code already used")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording referral")
		}
		if err := s.usersRepo.WithTx(tx).SetReferredBy(ctx, record.RefereeID, record.ReferrerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marking referee")
		}
		if err := s.payBonus(ctx, tx, record.ReferrerID, record); err != nil {
			return err
		}
		if err := s.payBonus(ctx, tx, record.RefereeID, record); err != nil {
			return err
		}
		return s.emitApplied(ctx, tx, record)
	})
}

// applySequential mirrors the transactional path without shared commit. The
// referral row goes first so a crash mid-way can never pay a bonus twice.
func (s *service) applySequential(ctx context.Context, record *models.Referral) error {
	if err := s.repo.Create(ctx, record); err != nil {
		if dbpkg.IsUniqueViolation(err, "idx_referrals_referee") {
			return pkgerrors.New(pkgerrors.CodeConflict, "referral code already used")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording referral")
	}
	if err := s.usersRepo.SetReferredBy(ctx, record.RefereeID, record.ReferrerID); err != nil {
		s.reportPartial(ctx, record, "marking referee failed", err)
	}
	if err := s.payBonus(ctx, nil, record.ReferrerID, record); err != nil {
		s.reportPartial(ctx, record, "paying referrer bonus failed", err)
	}
	if err := s.payBonus(ctx, nil, record.RefereeID, record); err != nil {
		s.reportPartial(ctx, record, "paying referee bonus failed", err)
	}
	return nil
}

func (s *service) payBonus(ctx context.Context, tx *gorm.DB, userID uuid.UUID, record *models.Referral) error {
	amount := decimal.NewFromInt(record.BonusAmount)
	metadata := []byte(fmt.Sprintf(`{"referral_id":%q}`, record.ID))

	ledgerSvc := s.ledger
	balanceSvc := s.balances
	if tx != nil {
		ledgerSvc = ledgerSvc.WithTx(tx)
		balanceSvc = balanceSvc.WithTx(tx)
	}
	if _, err := ledgerSvc.Append(ctx, ledger.AppendEntryInput{
		UserID:   userID,
		Type:     enums.TransactionTypeCredit,
		Amount:   amount,
		Currency: enums.WalletCurrencyCoins,
		Source:   enums.TransactionSourceReferral,
		Metadata: metadata,
	}); err != nil {
		return err
	}
	return balanceSvc.Increment(ctx, userID, enums.WalletCurrencyCoins, amount)
}

func (s *service) emitApplied(ctx context.Context, tx *gorm.DB, record *models.Referral) error {
	if s.emitter == nil {
		return nil
	}
	return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReferralApplied,
		AggregateType: enums.AggregateReferral,
		AggregateID:   record.ID,
		Data:          record,
		Version:       1,
	})
}

func (s *service) reportPartial(ctx context.Context, record *models.Referral, msg string, cause error) {
	fields := map[string]any{
		"referral_id": record.ID.String(),
		"referrer_id": record.ReferrerID.String(),
		"referee_id":  record.RefereeID.String(),
	}
	logCtx := s.logg.WithFields(ctx, fields)
	s.logg.Error(logCtx, msg, cause)
}

// ApplyOnSignup applies a referral code during registration. A bad code is
// logged and swallowed so it never blocks account creation.
func (s *service) ApplyOnSignup(ctx context.Context, refereeID uuid.UUID, code string) {
	if code == "" {
		return
	}
	if _, err := s.Apply(ctx, refereeID, code); err != nil {
		logCtx := s.logg.WithUserID(ctx, refereeID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{"referral_code": code, "reason": err.Error()})
		s.logg.Warn(logCtx, "signup referral not applied")
	}
}

func (s *service) StatsByReferrer(ctx context.Context, referrerID uuid.UUID) (*Stats, error) {
	if referrerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "referrer id is required")
	}
	referrals, err := s.repo.ListByReferrer(ctx, referrerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing referrals")
	}
	stats := &Stats{Count: len(referrals)}
	for _, r := range referrals {
		stats.TotalCoins += r.BonusAmount
	}
	return stats, nil
}
