package balance

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sevakart/sevakart-backend/pkg/enums"
	pkgerrors "github.com/sevakart/sevakart-backend/pkg/errors"
)

// Balances is a read-only snapshot of a user's wallet.
type Balances struct {
	Money decimal.Decimal `json:"money"`
	Coins int64           `json:"coins"`
}

// Service mutates and reads the authoritative wallet balances.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Increment(ctx context.Context, userID uuid.UUID, currency enums.WalletCurrency, amount decimal.Decimal) error
	Decrement(ctx context.Context, userID uuid.UUID, currency enums.WalletCurrency, amount decimal.Decimal) error
	Get(ctx context.Context, userID uuid.UUID) (*Balances, error)
}

type service struct {
	repo Repository
}

// NewService wires a balance service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("balance repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx)}
}

func validateMutation(userID uuid.UUID, currency enums.WalletCurrency, amount decimal.Decimal) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid wallet currency %q", currency))
	}
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if currency == enums.WalletCurrencyCoins && !amount.IsInteger() {
		return pkgerrors.New(pkgerrors.CodeValidation, "coin amounts must be whole numbers")
	}
	return nil
}

func (s *service) Increment(ctx context.Context, userID uuid.UUID, currency enums.WalletCurrency, amount decimal.Decimal) error {
	if err := validateMutation(userID, currency, amount); err != nil {
		return err
	}
	affected, err := s.repo.Increment(ctx, userID, currency, amount)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "incrementing balance")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return nil
}

func (s *service) Decrement(ctx context.Context, userID uuid.UUID, currency enums.WalletCurrency, amount decimal.Decimal) error {
	if err := validateMutation(userID, currency, amount); err != nil {
		return err
	}
	affected, err := s.repo.DecrementIfSufficient(ctx, userID, currency, amount)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrementing balance")
	}
	if affected > 0 {
		return nil
	}

	// Zero rows means either the user is missing or the guard failed.
	if _, err := s.repo.Fetch(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking user")
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient balance")
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*Balances, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	user, err := s.repo.Fetch(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fetching balances")
	}
	return &Balances{Money: user.MoneyBalance, Coins: user.CoinBalance}, nil
}
