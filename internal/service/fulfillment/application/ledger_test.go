package application

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"bazaar/internal/service/fulfillment/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func newTestLedger(store *memStore) *ReservationLedger {
	return NewReservationLedger(store, noop.NewTracerProvider().Tracer("test"), 30*time.Minute, 3)
}

func TestReserveAll_CreatesActiveReservations(t *testing.T) {
	store := newMemStore()
	store.addProduct("product-1", 10)
	store.addProduct("product-2", 5)
	ledger := newTestLedger(store)

	created, err := ledger.ReserveAll(context.Background(), "order-1", []domain.OrderLine{
		{ProductID: "product-1", Quantity: 3},
		{ProductID: "product-2", Quantity: 2},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)

	for _, r := range created {
		assert.Equal(t, domain.ReservationReserved, r.Status)
		assert.Equal(t, "order-1", r.OrderID)
	}

	// 预占不动真实库存，只占用派生的可用量
	assert.Equal(t, 10, store.product("product-1").TotalStock)
	available, err := ledger.AvailableStock(context.Background(), "product-1")
	require.NoError(t, err)
	assert.Equal(t, 7, available)
}

func TestReserveAll_AllOrNothing(t *testing.T) {
	store := newMemStore()
	store.addProduct("product-1", 10)
	store.addProduct("product-2", 1)
	ledger := newTestLedger(store)

	_, err := ledger.ReserveAll(context.Background(), "order-1", []domain.OrderLine{
		{ProductID: "product-1", Quantity: 3},
		{ProductID: "product-2", Quantity: 2}, // 超出可用量
	})

	var insufficient *domain.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "product-2", insufficient.ProductID)
	assert.Equal(t, 2, insufficient.Requested)
	assert.Equal(t, 1, insufficient.Available)

	// 第一行也不能留下任何残留
	assert.Empty(t, store.reservationsByOrder("order-1"))
	assert.EqualValues(t, 0, store.product("product-1").Version)
}

func TestReserveAll_NeverOversells(t *testing.T) {
	store := newMemStore()
	store.addProduct("product-1", 10)
	ledger := newTestLedger(store)

	const attempts = 25
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := ledger.ReserveAll(context.Background(), orderID(n), []domain.OrderLine{
				{ProductID: "product-1", Quantity: 1},
			})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var insufficient *domain.InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
	}

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 10, store.countByStatus(domain.ReservationReserved))

	available, err := ledger.AvailableStock(context.Background(), "product-1")
	require.NoError(t, err)
	assert.Equal(t, 0, available)
}

func TestReserveAll_RetriesOnVersionConflict(t *testing.T) {
	store := newMemStore()
	store.addProduct("product-1", 10)
	store.forceVersionConflicts(2)
	ledger := newTestLedger(store)

	created, err := ledger.ReserveAll(context.Background(), "order-1", []domain.OrderLine{
		{ProductID: "product-1", Quantity: 1},
	})
	require.NoError(t, err)
	assert.Len(t, created, 1)
}

func TestReserveAll_ExhaustsRetries(t *testing.T) {
	store := newMemStore()
	store.addProduct("product-1", 10)
	store.forceVersionConflicts(100)
	ledger := newTestLedger(store)

	_, err := ledger.ReserveAll(context.Background(), "order-1", []domain.OrderLine{
		{ProductID: "product-1", Quantity: 1},
	})
	require.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	assert.Empty(t, store.reservationsByOrder("order-1"))
}

func TestReserveAll_RejectsNonPositiveQuantity(t *testing.T) {
	store := newMemStore()
	store.addProduct("product-1", 10)
	ledger := newTestLedger(store)

	_, err := ledger.ReserveAll(context.Background(), "order-1", []domain.OrderLine{
		{ProductID: "product-1", Quantity: 0},
	})
	require.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestConfirmAll_DecrementsStockExactlyOnce(t *testing.T) {
	store := newMemStore()
	store.addProduct("product-1", 10)
	ledger := newTestLedger(store)

	_, err := ledger.ReserveAll(context.Background(), "order-1", []domain.OrderLine{
		{ProductID: "product-1", Quantity: 4},
	})
	require.NoError(t, err)

	confirmed, err := ledger.ConfirmAll(context.Background(), "order-1")
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, domain.ReservationConfirmed, confirmed[0].Status)
	require.NotNil(t, confirmed[0].ConfirmedAt)
	assert.Equal(t, 6, store.product("product-1").TotalStock)

	// 重复确认找不到活跃记录：空操作，库存不被二次扣减
	again, err := ledger.ConfirmAll(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Equal(t, 6, store.product("product-1").TotalStock)
}

func TestConfirmAll_RollsBackWhenDecrementFails(t *testing.T) {
	store := newMemStore()
	store.addProduct("product-1", 10)
	store.addProduct("product-2", 10)
	ledger := newTestLedger(store)

	_, err := ledger.ReserveAll(context.Background(), "order-1", []domain.OrderLine{
		{ProductID: "product-1", Quantity: 2},
		{ProductID: "product-2", Quantity: 2},
	})
	require.NoError(t, err)

	// 制造账目漂移：真实库存被外部掏空
	store.mu.Lock()
	store.state.products["product-2"].TotalStock = 1
	store.mu.Unlock()

	_, err = ledger.ConfirmAll(context.Background(), "order-1")
	var decrementErr *domain.StockDecrementError
	require.ErrorAs(t, err, &decrementErr)
	assert.Equal(t, "product-2", decrementErr.ProductID)

	// 整体回滚：两行都还是 RESERVED，第一个商品的库存没有被扣减
	for _, r := range store.reservationsByOrder("order-1") {
		assert.Equal(t, domain.ReservationReserved, r.Status)
	}
	assert.Equal(t, 10, store.product("product-1").TotalStock)
}

func TestCancelAll_ReleasesAndIsIdempotent(t *testing.T) {
	store := newMemStore()
	store.addProduct("product-1", 10)
	ledger := newTestLedger(store)

	_, err := ledger.ReserveAll(context.Background(), "order-1", []domain.OrderLine{
		{ProductID: "product-1", Quantity: 4},
	})
	require.NoError(t, err)

	cancelled, err := ledger.CancelAll(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Len(t, cancelled, 1)

	// 释放后可用量回升，真实库存不变
	available, err := ledger.AvailableStock(context.Background(), "product-1")
	require.NoError(t, err)
	assert.Equal(t, 10, available)
	assert.Equal(t, 10, store.product("product-1").TotalStock)

	again, err := ledger.CancelAll(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestAvailableStock_UnknownProduct(t *testing.T) {
	store := newMemStore()
	ledger := newTestLedger(store)

	_, err := ledger.AvailableStock(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func orderID(n int) string {
	return fmt.Sprintf("order-%d", n)
}
