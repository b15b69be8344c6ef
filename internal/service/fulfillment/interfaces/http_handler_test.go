package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"bazaar/internal/service/fulfillment/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLedger struct {
	available map[string]int
}

func (s *stubLedger) ReserveAll(ctx context.Context, orderID string, lines []domain.OrderLine) ([]*domain.Reservation, error) {
	return nil, nil
}

func (s *stubLedger) ConfirmAll(ctx context.Context, orderID string) ([]*domain.Reservation, error) {
	return nil, nil
}

func (s *stubLedger) CancelAll(ctx context.Context, orderID string) ([]*domain.Reservation, error) {
	return nil, nil
}

func (s *stubLedger) AvailableStock(ctx context.Context, productID string) (int, error) {
	n, ok := s.available[productID]
	if !ok {
		return 0, domain.ErrProductNotFound
	}
	return n, nil
}

func newTestMux(ledger *stubLedger) *http.ServeMux {
	mux := http.NewServeMux()
	NewFulfillmentHandler(ledger, nil, nil).RegisterRoutes(mux)
	return mux
}

func TestAvailableStockHandler(t *testing.T) {
	mux := newTestMux(&stubLedger{available: map[string]int{"product-1": 7}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stock/available?productId=product-1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		ProductID string `json:"productId"`
		Available int    `json:"available"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "product-1", body.ProductID)
	assert.Equal(t, 7, body.Available)
}

func TestAvailableStockHandler_MissingProductID(t *testing.T) {
	mux := newTestMux(&stubLedger{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stock/available", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAvailableStockHandler_UnknownProduct(t *testing.T) {
	mux := newTestMux(&stubLedger{available: map[string]int{}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stock/available?productId=missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfirmPaymentHandler_RejectsInvalidBody(t *testing.T) {
	mux := newTestMux(&stubLedger{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payments/confirm", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	mux := newTestMux(&stubLedger{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
