package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bazaar/internal/service/fulfillment/domain"
	"bazaar/internal/service/fulfillment/domain/port"
)

// memStore 是测试用的内存持久化：Execute 用互斥锁串行化事务，
// fn 在数据的完整拷贝上执行，成功才提交，失败整体丢弃——
// 与真实实现的事务回滚语义一致。
type memStore struct {
	mu    sync.Mutex
	state *memState

	// 前 N 次 BumpVersion 强制返回版本冲突，用于触发重试路径
	forcedConflicts int
}

type memState struct {
	store        *memStore
	reservations map[string]*domain.Reservation
	products     map[string]*domain.ProductStock
	orders       map[string]*domain.Order
	payments     map[string]*domain.Payment // 以 orderID 为键
}

func newMemStore() *memStore {
	s := &memStore{}
	s.state = &memState{
		store:        s,
		reservations: map[string]*domain.Reservation{},
		products:     map[string]*domain.ProductStock{},
		orders:       map[string]*domain.Order{},
		payments:     map[string]*domain.Payment{},
	}
	return s
}

func (s *memStore) Execute(ctx context.Context, fn func(repos domain.RepositorySet) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.state.clone()
	repos := domain.RepositorySet{
		Reservations: &memReservationRepo{tx: tx},
		Products:     &memProductRepo{tx: tx},
		Orders:       &memOrderRepo{tx: tx},
		Payments:     &memPaymentRepo{tx: tx},
	}
	if err := fn(repos); err != nil {
		return err
	}
	s.state = tx
	return nil
}

func (st *memState) clone() *memState {
	out := &memState{
		store:        st.store,
		reservations: make(map[string]*domain.Reservation, len(st.reservations)),
		products:     make(map[string]*domain.ProductStock, len(st.products)),
		orders:       make(map[string]*domain.Order, len(st.orders)),
		payments:     make(map[string]*domain.Payment, len(st.payments)),
	}
	for k, v := range st.reservations {
		out.reservations[k] = cloneReservation(v)
	}
	for k, v := range st.products {
		c := *v
		out.products[k] = &c
	}
	for k, v := range st.orders {
		c := *v
		out.orders[k] = &c
	}
	for k, v := range st.payments {
		c := *v
		out.payments[k] = &c
	}
	return out
}

func cloneReservation(r *domain.Reservation) *domain.Reservation {
	c := *r
	if r.ConfirmedAt != nil {
		at := *r.ConfirmedAt
		c.ConfirmedAt = &at
	}
	return &c
}

// ---- 测试的准备与断言辅助 ----

func (s *memStore) addProduct(id string, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.products[id] = &domain.ProductStock{ID: id, TotalStock: stock}
}

func (s *memStore) addOrder(order *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *order
	s.state.orders[order.ID] = &c
}

func (s *memStore) addReservation(r *domain.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.reservations[r.ID] = cloneReservation(r)
}

func (s *memStore) addPayment(p *domain.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *p
	s.state.payments[p.OrderID] = &c
}

func (s *memStore) product(id string) *domain.ProductStock {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *s.state.products[id]
	return &c
}

func (s *memStore) order(id string) *domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *s.state.orders[id]
	return &c
}

func (s *memStore) payment(orderID string) *domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.payments[orderID]
	if !ok {
		return nil
	}
	c := *p
	return &c
}

func (s *memStore) reservationsByOrder(orderID string) []*domain.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Reservation
	for _, r := range s.state.reservations {
		if r.OrderID == orderID {
			out = append(out, cloneReservation(r))
		}
	}
	return out
}

func (s *memStore) countByStatus(status domain.ReservationStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.state.reservations {
		if r.Status == status {
			n++
		}
	}
	return n
}

func (s *memStore) forceVersionConflicts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forcedConflicts = n
}

// ---- 事务内的仓储实现 ----

type memReservationRepo struct{ tx *memState }

func (r *memReservationRepo) CreateAll(ctx context.Context, reservations []*domain.Reservation) error {
	for _, res := range reservations {
		r.tx.reservations[res.ID] = cloneReservation(res)
	}
	return nil
}

func (r *memReservationRepo) FindActiveByOrderID(ctx context.Context, orderID string) ([]*domain.Reservation, error) {
	var out []*domain.Reservation
	for _, res := range r.tx.reservations {
		if res.OrderID == orderID && res.Status == domain.ReservationReserved {
			out = append(out, cloneReservation(res))
		}
	}
	return out, nil
}

func (r *memReservationRepo) SumActiveQuantity(ctx context.Context, productID string) (int, error) {
	sum := 0
	for _, res := range r.tx.reservations {
		if res.ProductID == productID && res.Status == domain.ReservationReserved {
			sum += res.ReservedQuantity
		}
	}
	return sum, nil
}

func (r *memReservationRepo) TransitionIfActive(ctx context.Context, id string, to domain.ReservationStatus, confirmedAt *time.Time) (bool, error) {
	res, ok := r.tx.reservations[id]
	if !ok || res.Status != domain.ReservationReserved {
		return false, nil
	}
	res.Status = to
	res.Version++
	if confirmedAt != nil {
		at := *confirmedAt
		res.ConfirmedAt = &at
	}
	return true, nil
}

func (r *memReservationRepo) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for _, res := range r.tx.reservations {
		if res.Status == domain.ReservationReserved && !res.ExpiresAt.After(now) {
			res.Status = domain.ReservationExpired
			res.Version++
			n++
		}
	}
	return n, nil
}

type memProductRepo struct{ tx *memState }

func (r *memProductRepo) FindByID(ctx context.Context, id string) (*domain.ProductStock, error) {
	p, ok := r.tx.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	c := *p
	return &c, nil
}

func (r *memProductRepo) BumpVersion(ctx context.Context, id string, expectedVersion int64) error {
	if r.tx.store.forcedConflicts > 0 {
		r.tx.store.forcedConflicts--
		return domain.ErrConcurrencyConflict
	}
	p, ok := r.tx.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	if p.Version != expectedVersion {
		return domain.ErrConcurrencyConflict
	}
	p.Version++
	return nil
}

func (r *memProductRepo) DecrementStock(ctx context.Context, id string, quantity int) error {
	p, ok := r.tx.products[id]
	if !ok || p.TotalStock < quantity {
		return &domain.StockDecrementError{ProductID: id, Quantity: quantity}
	}
	p.TotalStock -= quantity
	p.Version++
	return nil
}

type memOrderRepo struct{ tx *memState }

func (r *memOrderRepo) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	o, ok := r.tx.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	c := *o
	return &c, nil
}

func (r *memOrderRepo) Save(ctx context.Context, order *domain.Order) error {
	c := *order
	r.tx.orders[order.ID] = &c
	return nil
}

type memPaymentRepo struct{ tx *memState }

func (r *memPaymentRepo) Create(ctx context.Context, payment *domain.Payment) error {
	if _, exists := r.tx.payments[payment.OrderID]; exists {
		return fmt.Errorf("payment record already exists for order %s", payment.OrderID)
	}
	c := *payment
	r.tx.payments[payment.OrderID] = &c
	return nil
}

func (r *memPaymentRepo) FindByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	p, ok := r.tx.payments[orderID]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	c := *p
	return &c, nil
}

func (r *memPaymentRepo) Save(ctx context.Context, payment *domain.Payment) error {
	c := *payment
	r.tx.payments[payment.OrderID] = &c
	return nil
}

// ---- 出站端口的测试替身 ----

type fakeNotifier struct {
	mu             sync.Mutex
	pendingPayment []string // 收到"等待支付"通知的订单
	cancelled      []string // 收到"已取消"通知的订单
	err            error
}

func (f *fakeNotifier) SendOrderPendingPayment(ctx context.Context, order *domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.pendingPayment = append(f.pendingPayment, order.ID)
	return nil
}

func (f *fakeNotifier) SendOrderCancelled(ctx context.Context, orderID, userID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

type fakeGuard struct {
	duplicate bool
	err       error
	seen      []string
}

func (f *fakeGuard) FirstDelivery(ctx context.Context, eventID string) (bool, error) {
	f.seen = append(f.seen, eventID)
	if f.err != nil {
		return false, f.err
	}
	return !f.duplicate, nil
}

type fakeGateway struct {
	confirmation *port.GatewayConfirmation
	err          error
	calls        int
	onConfirm    func() // 在返回前执行，用于模拟并发交错
}

func (f *fakeGateway) Confirm(ctx context.Context, paymentKey, orderID string, amount int64) (*port.GatewayConfirmation, error) {
	f.calls++
	if f.onConfirm != nil {
		f.onConfirm()
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.confirmation != nil {
		return f.confirmation, nil
	}
	// 默认回声一致地批准
	return &port.GatewayConfirmation{Approved: true, OrderID: orderID, Amount: amount}, nil
}

var errBoom = errors.New("boom")
