package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sevakart/sevakart-backend/internal/bookings"
	"github.com/sevakart/sevakart-backend/internal/orders"
	"github.com/sevakart/sevakart-backend/pkg/config"
	pkgerrors "github.com/sevakart/sevakart-backend/pkg/errors"
)

// PaymentsClient reads captured payments from the payments collaborator. The
// payment processor itself is out of scope; this service only reconciles
// against what it reports.
type PaymentsClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewPaymentsClient builds the payments reader from the configured base URL.
func NewPaymentsClient(cfg config.RemotesConfig) (*PaymentsClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.PaymentsURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("payments remote url is required")
	}
	return &PaymentsClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    baseURL,
	}, nil
}

var (
	_ orders.PaymentsReader   = (*PaymentsClient)(nil)
	_ bookings.PaymentsReader = (*PaymentsClient)(nil)
)

// CapturedPayment is one settled payment reported by the collaborator.
type CapturedPayment struct {
	ID        uuid.UUID       `json:"id"`
	OrderID   *uuid.UUID      `json:"order_id"`
	BookingID *uuid.UUID      `json:"booking_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	Reference *string         `json:"reference"`
}

// ListPaidByOrder returns the settled payments linked to an order.
func (c *PaymentsClient) ListPaidByOrder(ctx context.Context, orderID uuid.UUID) ([]CapturedPayment, error) {
	return c.list(ctx, fmt.Sprintf("%s/payments?order_id=%s&status=paid", c.baseURL, orderID))
}

// ListPaidByBooking returns the settled payments linked to a booking.
func (c *PaymentsClient) ListPaidByBooking(ctx context.Context, bookingID uuid.UUID) ([]CapturedPayment, error) {
	return c.list(ctx, fmt.Sprintf("%s/payments?booking_id=%s&status=paid", c.baseURL, bookingID))
}

// SumPaidByOrder totals the settled payments linked to an order.
func (c *PaymentsClient) SumPaidByOrder(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	payments, err := c.ListPaidByOrder(ctx, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	return sumAmounts(payments), nil
}

// SumPaidByBooking totals the settled payments linked to a booking.
func (c *PaymentsClient) SumPaidByBooking(ctx context.Context, bookingID uuid.UUID) (decimal.Decimal, error) {
	payments, err := c.ListPaidByBooking(ctx, bookingID)
	if err != nil {
		return decimal.Zero, err
	}
	return sumAmounts(payments), nil
}

func sumAmounts(payments []CapturedPayment) decimal.Decimal {
	total := decimal.Zero
	for _, payment := range payments {
		total = total.Add(payment.Amount)
	}
	return total
}

func (c *PaymentsClient) list(ctx context.Context, url string) ([]CapturedPayment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build payments request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute payments request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, remoteError(resp), "payments request failed")
	}

	var payments []CapturedPayment
	if err := json.NewDecoder(resp.Body).Decode(&payments); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payments response")
	}
	return payments, nil
}
