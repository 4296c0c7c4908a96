package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sevakart/sevakart-backend/pkg/config"
	pkgerrors "github.com/sevakart/sevakart-backend/pkg/errors"
)

func newPaymentsClient(t *testing.T, serverURL string) *PaymentsClient {
	t.Helper()
	client, err := NewPaymentsClient(config.RemotesConfig{
		PaymentsURL: serverURL,
		Timeout:     2 * time.Second,
	})
	if err != nil {
		t.Fatalf("payments client: %v", err)
	}
	return client
}

func TestListPaidByOrder(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	paymentID := uuid.New()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("order_id"); got != orderID.String() {
			t.Errorf("order_id = %s, want %s", got, orderID)
		}
		if got := r.URL.Query().Get("status"); got != "paid" {
			t.Errorf("status = %s, want paid", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `[{"id":%q,"order_id":%q,"amount":"499.00","status":"paid"}]`, paymentID, orderID)
	}))
	defer server.Close()

	client := newPaymentsClient(t, server.URL)
	payments, err := client.ListPaidByOrder(context.Background(), orderID)
	if err != nil {
		t.Fatalf("list by order: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("payments = %d, want 1", len(payments))
	}
	if payments[0].ID != paymentID {
		t.Fatalf("payment id = %s, want %s", payments[0].ID, paymentID)
	}
	if !payments[0].Amount.Equal(decimal.RequireFromString("499.00")) {
		t.Fatalf("amount = %s, want 499.00", payments[0].Amount)
	}
	if payments[0].BookingID != nil {
		t.Fatalf("booking id = %v, want nil", payments[0].BookingID)
	}
}

func TestListPaidByBookingServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := newPaymentsClient(t, server.URL)
	if _, err := client.ListPaidByBooking(context.Background(), uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("err = %v, want dependency error", err)
	}
}

func TestSumPaidByOrder(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `[{"id":%q,"order_id":%q,"amount":"400.00","status":"paid"},{"id":%q,"order_id":%q,"amount":"99.50","status":"paid"}]`,
			uuid.New(), orderID, uuid.New(), orderID)
	}))
	defer server.Close()

	client := newPaymentsClient(t, server.URL)
	total, err := client.SumPaidByOrder(context.Background(), orderID)
	if err != nil {
		t.Fatalf("sum by order: %v", err)
	}
	if !total.Equal(decimal.RequireFromString("499.50")) {
		t.Fatalf("total = %s, want 499.50", total)
	}
}

func TestSumPaidByBookingEmpty(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	client := newPaymentsClient(t, server.URL)
	total, err := client.SumPaidByBooking(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("sum by booking: %v", err)
	}
	if !total.IsZero() {
		t.Fatalf("total = %s, want 0", total)
	}
}

func TestNewPaymentsClientRequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := NewPaymentsClient(config.RemotesConfig{}); err == nil {
		t.Fatal("expected error for empty payments url")
	}
}
