package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sevakart/sevakart-backend/internal/inventory"
	"github.com/sevakart/sevakart-backend/pkg/config"
	"github.com/sevakart/sevakart-backend/pkg/db/models"
	pkgerrors "github.com/sevakart/sevakart-backend/pkg/errors"
)

const responseBodyReadLimit int64 = 1024

// InventoryClient implements the inventory service against a remote products
// deployment. Reservations cross a service boundary here, so callers must run
// with the sequential fallback rather than a shared transaction.
type InventoryClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewInventoryClient builds the remote inventory adapter from the configured
// products base URL.
func NewInventoryClient(cfg config.RemotesConfig) (*InventoryClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.ProductsURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("products remote url is required")
	}
	return &InventoryClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    baseURL,
	}, nil
}

var _ inventory.Service = (*InventoryClient)(nil)

// WithTx returns the client unchanged. A remote inventory store cannot join a
// local transaction.
func (c *InventoryClient) WithTx(_ *gorm.DB) inventory.Service {
	return c
}

type stockMutation struct {
	Quantity int64 `json:"quantity"`
}

// Reserve asks the remote store for a conditional decrement.
func (c *InventoryClient) Reserve(ctx context.Context, variantID uuid.UUID, qty int64) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return c.mutateStock(ctx, variantID, "reserve", qty)
}

// Release returns previously reserved units.
func (c *InventoryClient) Release(ctx context.Context, variantID uuid.UUID, qty int64) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return c.mutateStock(ctx, variantID, "release", qty)
}

func (c *InventoryClient) mutateStock(ctx context.Context, variantID uuid.UUID, action string, qty int64) error {
	payload, err := json.Marshal(stockMutation{Quantity: qty})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal stock request")
	}

	url := fmt.Sprintf("%s/variants/%s/%s", c.baseURL, variantID, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build stock request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute stock request")
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, remoteError(resp), "stock request failed")
	}
}

// Variant fetches a single variant snapshot.
func (c *InventoryClient) Variant(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error) {
	url := fmt.Sprintf("%s/variants/%s", c.baseURL, variantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build variant request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute variant request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, remoteError(resp), "variant request failed")
	}

	var variant models.ProductVariant
	if err := json.NewDecoder(resp.Body).Decode(&variant); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode variant response")
	}
	return &variant, nil
}

// Variants fetches snapshots one by one. The remote surface has no batch
// endpoint.
func (c *InventoryClient) Variants(ctx context.Context, variantIDs []uuid.UUID) ([]models.ProductVariant, error) {
	variants := make([]models.ProductVariant, 0, len(variantIDs))
	for _, id := range variantIDs {
		variant, err := c.Variant(ctx, id)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				continue
			}
			return nil, err
		}
		variants = append(variants, *variant)
	}
	return variants, nil
}

func remoteError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}
