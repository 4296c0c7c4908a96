package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/sevakart/sevakart-backend/internal/balance"
	"github.com/sevakart/sevakart-backend/internal/cart"
	"github.com/sevakart/sevakart-backend/internal/inventory"
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

// PaymentsReader totals settled payments held by a remote payments service.
// When absent, reconciliation sums the locally stored payment records.
type PaymentsReader interface {
	SumPaidByOrder(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error)
}

// Service turns carts into orders and walks them through the fulfillment
// state machine.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, pagination.Meta, error)
	Cancel(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error)
	ApplyPayment(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, reference *string) (*models.Order, error)
	RecalculatePaymentStatus(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// CreateOrderInput captures checkout parameters.
type CreateOrderInput struct {
	UserID          uuid.UUID
	ShippingAddress *string
}

// Params collects order service dependencies.
type Params struct {
	Runner      TxRunner
	Repo        Repository
	Cart        cart.Service
	Inventory   inventory.Service
	Ledger      ledger.Service
	Balances    balance.Service
	Emitter     Emitter
	Payments    PaymentsReader
	Logger      *logger.Logger
	TxSupported bool
}

type service struct {
	runner      TxRunner
	repo        Repository
	cart        cart.Service
	inventory   inventory.Service
	ledger      ledger.Service
	balances    balance.Service
	emitter     Emitter
	payments    PaymentsReader
	logg        *logger.Logger
	txSupported bool
}

// NewService wires the order orchestrator.
func NewService(p Params) (Service, error) {
	if p.Runner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if p.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Cart == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if p.Inventory == nil {
		return nil, fmt.Errorf("inventory service required")
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
		repo:        p.Repo,
		cart:        p.Cart,
		inventory:   p.Inventory,
		ledger:      p.Ledger,
		balances:    p.Balances,
		emitter:     p.Emitter,
		payments:    p.Payments,
		logg:        p.Logger,
		txSupported: p.TxSupported,
	}, nil
}

// Create validates every cart line, reserves all stock or none, persists the
// order, and finally clears the cart best-effort.
func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	userCart, err := s.cart.Get(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if len(userCart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	variants, err := s.validateItems(ctx, userCart.Items)
	if err != nil {
		return nil, err
	}

	var order *models.Order
	if s.txSupported {
		err = s.runner.WithTx(ctx, func(tx *gorm.DB) error {
			created, cerr := s.createWithin(ctx, tx, input, userCart.Items, variants)
			if cerr != nil {
				return cerr
			}
			order = created
			return nil
		})
	} else {
		order, err = s.createWithin(ctx, nil, input, userCart.Items, variants)
	}
	if err != nil {
		return nil, err
	}

	// Cart clearing is best-effort; a stale cart never blocks a placed order.
	if err := s.cart.Clear(ctx, input.UserID); err != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Warn(logCtx, "clearing cart after order failed")
	}
	return order, nil
}

// validateItems checks every line against the catalog before touching stock
// and reports all problems at once.
func (s *service) validateItems(ctx context.Context, items []models.CartItem) (map[uuid.UUID]models.ProductVariant, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.VariantID)
	}
	variants, err := s.inventory.Variants(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.ProductVariant, len(variants))
	for _, v := range variants {
		byID[v.ID] = v
	}

	var problems error
	for _, item := range items {
		variant, ok := byID[item.VariantID]
		if !ok {
			problems = multierr.Append(problems, fmt.Errorf("variant %s no longer exists", item.VariantID))
			continue
		}
		if !variant.IsActive {
			problems = multierr.Append(problems, fmt.Errorf("variant %s is no longer sold", item.VariantID))
		}
		if item.Quantity <= 0 {
			problems = multierr.Append(problems, fmt.Errorf("variant %s has invalid quantity %d", item.VariantID, item.Quantity))
		}
	}
	if problems != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, problems, "cart items unavailable")
	}
	return byID, nil
}

func (s *service) createWithin(ctx context.Context, tx *gorm.DB, input CreateOrderInput, items []models.CartItem, variants map[uuid.UUID]models.ProductVariant) (*models.Order, error) {
	inv := s.inventory.WithTx(tx)

	reserved := make([]models.CartItem, 0, len(items))
	release := func() {
		var rerr error
		for _, done := range reserved {
			rerr = multierr.Append(rerr, inv.Release(ctx, done.VariantID, int64(done.Quantity)))
		}
		if rerr != nil {
			s.logg.Error(ctx, "releasing reserved stock failed", rerr)
		}
	}

	for _, item := range items {
		if err := inv.Reserve(ctx, item.VariantID, int64(item.Quantity)); err != nil {
			release()
			return nil, err
		}
		reserved = append(reserved, item)
	}

	total := decimal.Zero
	orderItems := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		variant := variants[item.VariantID]
		lineTotal := variant.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(lineTotal)
		orderItems = append(orderItems, models.OrderItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			UnitPrice: variant.Price,
			LineTotal: lineTotal,
		})
	}

	order := &models.Order{
		ID:              uuid.New(),
		UserID:          input.UserID,
		Status:          enums.OrderStatusPlaced,
		PaymentStatus:   CalculatePaymentStatus(total, decimal.Zero),
		TotalAmount:     total,
		PaidAmount:      decimal.Zero,
		DueAmount:       total,
		ShippingAddress: input.ShippingAddress,
		Items:           orderItems,
	}
	if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
		release()
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting order")
	}

	s.emitOrderEvent(ctx, tx, enums.EventOrderCreated, order)
	return order, nil
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.fetch(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, pagination.Meta, error) {
	if userID == uuid.Nil {
		return nil, pagination.Meta{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	orders, total, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, pagination.Meta{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing orders")
	}
	return orders, pagination.BuildMeta(params, total), nil
}

// Cancel handles the customer-facing path: only freshly placed orders can be
// cancelled by their owner.
func (s *service) Cancel(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPlaced {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order in status %q cannot be cancelled", order.Status))
	}
	return s.cancel(ctx, order)
}

// UpdateStatus is the operator path and honors the full state machine,
// including cancellation of shipped orders.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", status))
	}
	order, err := s.fetch(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move order from %q to %q", order.Status, status))
	}
	if status == enums.OrderStatusCancelled {
		return s.cancel(ctx, order)
	}

	if err := s.repo.UpdateStatus(ctx, order.ID, status, nil); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating order status")
	}
	order.Status = status
	s.emitStandaloneEvent(ctx, enums.EventOrderStatusChanged, order)
	return order, nil
}

// cancel restocks every line, refunds anything already paid, and marks the
// order cancelled.
func (s *service) cancel(ctx context.Context, order *models.Order) (*models.Order, error) {
	now := time.Now()

	perform := func(tx *gorm.DB) error {
		inv := s.inventory.WithTx(tx)
		var restockErr error
		for _, item := range order.Items {
			restockErr = multierr.Append(restockErr, inv.Release(ctx, item.VariantID, int64(item.Quantity)))
		}
		if restockErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, restockErr, "restocking cancelled order")
		}

		if order.PaidAmount.IsPositive() {
			if err := s.refund(ctx, tx, order); err != nil {
				return err
			}
		}

		if err := s.repo.WithTx(tx).UpdateStatus(ctx, order.ID, enums.OrderStatusCancelled, &now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marking order cancelled")
		}
		return nil
	}

	var err error
	if s.txSupported {
		err = s.runner.WithTx(ctx, perform)
	} else {
		err = perform(nil)
	}
	if err != nil {
		return nil, err
	}

	order.Status = enums.OrderStatusCancelled
	order.CancelledAt = &now
	if order.PaidAmount.IsPositive() {
		order.PaymentStatus = enums.OrderPaymentStatusRefunded
	}
	s.emitStandaloneEvent(ctx, enums.EventOrderCancelled, order)
	return order, nil
}

func (s *service) refund(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	metadata := []byte(fmt.Sprintf(`{"order_id":%q}`, order.ID))
	if _, err := s.ledger.WithTx(tx).Append(ctx, ledger.AppendEntryInput{
		UserID:   order.UserID,
		Type:     enums.TransactionTypeCredit,
		Amount:   order.PaidAmount,
		Currency: enums.WalletCurrencyMoney,
		Source:   enums.TransactionSourceRefund,
		Metadata: metadata,
	}); err != nil {
		return err
	}
	if err := s.balances.WithTx(tx).Increment(ctx, order.UserID, enums.WalletCurrencyMoney, order.PaidAmount); err != nil {
		return err
	}
	return s.repo.WithTx(tx).UpdatePayment(ctx, order.ID,
		order.PaidAmount.StringFixed(2),
		order.DueAmount.StringFixed(2),
		enums.OrderPaymentStatusRefunded)
}

// ApplyPayment records a captured payment and recomputes the derived fields.
func (s *service) ApplyPayment(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, reference *string) (*models.Order, error) {
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	order, err := s.fetch(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cannot pay a cancelled order")
	}

	newPaid := order.PaidAmount.Add(amount)
	newDue := order.TotalAmount.Sub(newPaid)
	if newDue.IsNegative() {
		newDue = decimal.Zero
	}
	status := CalculatePaymentStatus(order.TotalAmount, newPaid)

	perform := func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreatePaymentRecord(ctx, &models.PaymentRecord{
			OrderID: &order.ID,
			Amount:  amount,
			// Each record carries its own settlement status, not the
			// order-level aggregate, so reconciliation can sum them.
			Status:    enums.OrderPaymentStatusPaid,
			Reference: reference,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording payment")
		}
		if err := repo.UpdatePayment(ctx, order.ID, newPaid.StringFixed(2), newDue.StringFixed(2), status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating order payment")
		}
		return nil
	}

	if s.txSupported {
		err = s.runner.WithTx(ctx, perform)
	} else {
		err = perform(nil)
	}
	if err != nil {
		return nil, err
	}

	order.PaidAmount = newPaid
	order.DueAmount = newDue
	order.PaymentStatus = status
	return order, nil
}

// RecalculatePaymentStatus rebuilds the derived payment fields from the
// settled payment records, overwriting whatever the order currently carries.
func (s *service) RecalculatePaymentStatus(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.fetch(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == enums.OrderPaymentStatusRefunded {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "refunded orders are not recalculated")
	}

	paid, err := s.sumSettled(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	due := order.TotalAmount.Sub(paid)
	if due.IsNegative() {
		due = decimal.Zero
	}
	status := CalculatePaymentStatus(order.TotalAmount, paid)

	if err := s.repo.UpdatePayment(ctx, order.ID, paid.StringFixed(2), due.StringFixed(2), status); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating order payment")
	}

	order.PaidAmount = paid
	order.DueAmount = due
	order.PaymentStatus = status
	return order, nil
}

func (s *service) sumSettled(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	if s.payments != nil {
		return s.payments.SumPaidByOrder(ctx, orderID)
	}
	records, err := s.repo.ListPaidRecords(ctx, orderID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing payment records")
	}
	total := decimal.Zero
	for _, record := range records {
		total = total.Add(record.Amount)
	}
	return total, nil
}

func (s *service) fetch(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fetching order")
	}
	return order, nil
}

func (s *service) emitOrderEvent(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, order *models.Order) {
	if s.emitter == nil {
		return
	}
	emit := func(target *gorm.DB) error {
		return s.emitter.Emit(ctx, target, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data:          order,
			Version:       1,
		})
	}
	var err error
	if tx != nil {
		err = emit(tx)
	} else {
		err = s.runner.WithTx(ctx, emit)
	}
	if err != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Error(logCtx, "queueing order event failed", err)
	}
}

func (s *service) emitStandaloneEvent(ctx context.Context, eventType enums.OutboxEventType, order *models.Order) {
	s.emitOrderEvent(ctx, nil, eventType, order)
}
