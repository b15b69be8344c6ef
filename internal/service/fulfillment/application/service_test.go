package application

import (
	"context"
	"testing"
	"time"

	"bazaar/internal/service/fulfillment/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type serviceFixture struct {
	store    *memStore
	ledger   *ReservationLedger
	notifier *fakeNotifier
	guard    *fakeGuard
	svc      *FulfillmentService
}

func newServiceFixture() *serviceFixture {
	store := newMemStore()
	ledger := newTestLedger(store)
	notifier := &fakeNotifier{}
	guard := &fakeGuard{}
	tracer := noop.NewTracerProvider().Tracer("test")
	svc := NewFulfillmentService(store, ledger, notifier, guard, nil, tracer, 5*time.Second)
	return &serviceFixture{store: store, ledger: ledger, notifier: notifier, guard: guard, svc: svc}
}

func (f *serviceFixture) seedOrder(id string, amount int64) {
	f.store.addOrder(&domain.Order{ID: id, UserID: "user-1", TotalAmount: amount, State: domain.StateCreated})
}

func orderCreated(id string, lines ...domain.OrderLine) *domain.OrderCreatedEvent {
	return &domain.OrderCreatedEvent{OrderID: id, UserID: "user-1", TotalAmount: 1500, Items: lines}
}

func TestHandleOrderCreated_HappyPath(t *testing.T) {
	f := newServiceFixture()
	f.store.addProduct("product-1", 10)
	f.seedOrder("order-1", 1500)

	err := f.svc.HandleOrderCreated(context.Background(), orderCreated("order-1",
		domain.OrderLine{ProductID: "product-1", Quantity: 3}))
	require.NoError(t, err)

	// 预占、支付记录、订单状态、通知全部就位
	reservations := f.store.reservationsByOrder("order-1")
	require.Len(t, reservations, 1)
	assert.Equal(t, domain.ReservationReserved, reservations[0].Status)

	payment := f.store.payment("order-1")
	require.NotNil(t, payment)
	assert.Equal(t, domain.PaymentPending, payment.Status)
	assert.EqualValues(t, 1500, payment.Amount)

	assert.Equal(t, domain.StatePendingPayment, f.store.order("order-1").State)
	assert.Equal(t, []string{"order-1"}, f.notifier.pendingPayment)
}

func TestHandleOrderCreated_InsufficientStockCancelsOrder(t *testing.T) {
	f := newServiceFixture()
	f.store.addProduct("product-1", 2)
	f.seedOrder("order-1", 1500)

	// 业务性失败在本地补偿完毕，不触发消息重投
	err := f.svc.HandleOrderCreated(context.Background(), orderCreated("order-1",
		domain.OrderLine{ProductID: "product-1", Quantity: 5}))
	require.NoError(t, err)

	assert.Empty(t, f.store.reservationsByOrder("order-1"))
	assert.Nil(t, f.store.payment("order-1"))
	assert.Equal(t, domain.StateCancelled, f.store.order("order-1").State)
	assert.Equal(t, []string{"order-1"}, f.notifier.cancelled)
}

func TestHandleOrderCreated_DuplicateDeliverySkipped(t *testing.T) {
	f := newServiceFixture()
	f.store.addProduct("product-1", 10)
	f.seedOrder("order-1", 1500)
	f.guard.duplicate = true

	err := f.svc.HandleOrderCreated(context.Background(), orderCreated("order-1",
		domain.OrderLine{ProductID: "product-1", Quantity: 3}))
	require.NoError(t, err)

	assert.Empty(t, f.store.reservationsByOrder("order-1"))
	assert.Equal(t, domain.StateCreated, f.store.order("order-1").State)
}

func TestHandleOrderCreated_GuardOutageDoesNotBlock(t *testing.T) {
	f := newServiceFixture()
	f.store.addProduct("product-1", 10)
	f.seedOrder("order-1", 1500)
	f.guard.err = errBoom

	// Redis 不可用时退化为依赖订单状态检查，处理照常进行
	err := f.svc.HandleOrderCreated(context.Background(), orderCreated("order-1",
		domain.OrderLine{ProductID: "product-1", Quantity: 3}))
	require.NoError(t, err)
	assert.Equal(t, domain.StatePendingPayment, f.store.order("order-1").State)
}

func TestHandleOrderCreated_AlreadyProcessedOrderSkipped(t *testing.T) {
	f := newServiceFixture()
	f.store.addProduct("product-1", 10)
	f.store.addOrder(&domain.Order{ID: "order-1", UserID: "user-1", TotalAmount: 1500, State: domain.StatePendingPayment})

	err := f.svc.HandleOrderCreated(context.Background(), orderCreated("order-1",
		domain.OrderLine{ProductID: "product-1", Quantity: 3}))
	require.NoError(t, err)
	assert.Empty(t, f.store.reservationsByOrder("order-1"))
}

func TestHandleOrderCreated_UnknownOrderIsRetriable(t *testing.T) {
	f := newServiceFixture()
	f.store.addProduct("product-1", 10)

	// 订单行还没读到（例如主从延迟）：错误向上抛出，交给重投
	err := f.svc.HandleOrderCreated(context.Background(), orderCreated("order-missing",
		domain.OrderLine{ProductID: "product-1", Quantity: 1}))
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestHandleOrderCreated_PaymentRecordFailureLeavesReservationHeld(t *testing.T) {
	f := newServiceFixture()
	f.store.addProduct("product-1", 10)
	f.seedOrder("order-1", 1500)
	// 订单上已存在支付记录，第二步的 Create 必然失败
	f.store.addPayment(domain.NewPayment("order-1", 1500))

	err := f.svc.HandleOrderCreated(context.Background(), orderCreated("order-1",
		domain.OrderLine{ProductID: "product-1", Quantity: 3}))
	require.NoError(t, err)

	// 预占不回滚：库存已被诚实持有，订单保持原状等待人工介入
	reservations := f.store.reservationsByOrder("order-1")
	require.Len(t, reservations, 1)
	assert.Equal(t, domain.ReservationReserved, reservations[0].Status)
	assert.Equal(t, domain.StateCreated, f.store.order("order-1").State)
	assert.Empty(t, f.notifier.cancelled)
	assert.Empty(t, f.notifier.pendingPayment)
}

func TestHandleOrderCreated_NotificationFailureIsNonFatal(t *testing.T) {
	f := newServiceFixture()
	f.store.addProduct("product-1", 10)
	f.seedOrder("order-1", 1500)
	f.notifier.err = errBoom

	err := f.svc.HandleOrderCreated(context.Background(), orderCreated("order-1",
		domain.OrderLine{ProductID: "product-1", Quantity: 3}))
	require.NoError(t, err)

	// 通知失败不影响订单/预占/支付状态
	assert.Equal(t, domain.StatePendingPayment, f.store.order("order-1").State)
	require.Len(t, f.store.reservationsByOrder("order-1"), 1)
	require.NotNil(t, f.store.payment("order-1"))
}
