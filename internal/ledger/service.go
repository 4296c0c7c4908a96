package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sevakart/sevakart-backend/pkg/db/models"
	"github.com/sevakart/sevakart-backend/pkg/enums"
	pkgerrors "github.com/sevakart/sevakart-backend/pkg/errors"
	"github.com/sevakart/sevakart-backend/pkg/pagination"
)

// Service defines operations over the append-only wallet ledger.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Append(ctx context.Context, input AppendEntryInput) (*models.WalletTransaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID, filter ListFilter, params pagination.Params) ([]models.WalletTransaction, pagination.Meta, error)
	SumByUser(ctx context.Context, userID uuid.UUID, currency enums.WalletCurrency) (decimal.Decimal, error)
}

type service struct {
	repo Repository
}

// AppendEntryInput captures the immutable data a ledger entry requires.
type AppendEntryInput struct {
	UserID   uuid.UUID               `json:"user_id"`
	Type     enums.TransactionType   `json:"type"`
	Amount   decimal.Decimal         `json:"amount"`
	Currency enums.WalletCurrency    `json:"currency"`
	Source   enums.TransactionSource `json:"source"`
	Metadata json.RawMessage         `json:"metadata"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) Append(ctx context.Context, input AppendEntryInput) (*models.WalletTransaction, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", input.Type))
	}
	if !input.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid wallet currency %q", input.Currency))
	}
	if !input.Source.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction source %q", input.Source))
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	entry := &models.WalletTransaction{
		UserID:   input.UserID,
		Type:     input.Type,
		Amount:   input.Amount,
		Currency: input.Currency,
		Source:   input.Source,
		Metadata: input.Metadata,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "appending ledger entry")
	}
	return entry, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, filter ListFilter, params pagination.Params) ([]models.WalletTransaction, pagination.Meta, error) {
	if userID == uuid.Nil {
		return nil, pagination.Meta{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, pagination.Meta{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", filter.Type))
	}
	if filter.Currency != "" && !filter.Currency.IsValid() {
		return nil, pagination.Meta{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid wallet currency %q", filter.Currency))
	}
	if filter.Source != "" && !filter.Source.IsValid() {
		return nil, pagination.Meta{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction source %q", filter.Source))
	}

	entries, total, err := s.repo.ListByUser(ctx, userID, filter, params)
	if err != nil {
		return nil, pagination.Meta{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing ledger entries")
	}
	return entries, pagination.BuildMeta(params, total), nil
}

func (s *service) SumByUser(ctx context.Context, userID uuid.UUID, currency enums.WalletCurrency) (decimal.Decimal, error) {
	if userID == uuid.Nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !currency.IsValid() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid wallet currency %q", currency))
	}
	sum, err := s.repo.SumByUser(ctx, userID, currency)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "summing ledger entries")
	}
	return sum, nil
}
