// internal/service/fulfillment/domain/repository.go
package domain

import (
	"context"
	"time"
)

// ReservationRepository 定义了预占记录的持久化接口。
// 它位于领域层，但由基础设施层实现。
type ReservationRepository interface {
	// CreateAll 批量创建预占记录（一个订单的所有行共享一个事务）。
	CreateAll(ctx context.Context, reservations []*Reservation) error

	// FindActiveByOrderID 加载订单下所有仍处于 RESERVED 的记录。
	FindActiveByOrderID(ctx context.Context, orderID string) ([]*Reservation, error)

	// SumActiveQuantity 统计某商品当前被 RESERVED 占用的总量，
	// 与商品行的读取处于同一个事务中，用于派生可用库存。
	SumActiveQuantity(ctx context.Context, productID string) (int, error)

	// TransitionIfActive 条件流转：UPDATE ... WHERE status = 'RESERVED'。
	// 返回 false 表示记录已被并发方抢先流转（例如确认与过期竞争），
	// 调用方必须把它当作"已被处理"而不是错误。
	TransitionIfActive(ctx context.Context, id string, to ReservationStatus, confirmedAt *time.Time) (bool, error)

	// ExpireDue 单条批量条件更新：把所有到期且仍为 RESERVED 的记录置为 EXPIRED。
	// 返回受影响的行数。
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

// ProductStockRepository 定义了商品库存行的持久化接口。
type ProductStockRepository interface {
	FindByID(ctx context.Context, id string) (*ProductStock, error)

	// BumpVersion 是预占阶段的串行化点：
	// UPDATE ... SET version = version + 1 WHERE id = ? AND version = ?。
	// 版本不匹配时返回 ErrConcurrencyConflict，调用方从读取处重试。
	BumpVersion(ctx context.Context, id string, expectedVersion int64) error

	// DecrementStock 原子地执行"余量充足才扣减"：
	// UPDATE ... SET total_stock = total_stock - ? WHERE id = ? AND total_stock >= ?。
	// 条件不满足时返回 *StockDecrementError。
	DecrementStock(ctx context.Context, id string, quantity int) error
}

// OrderRepository 定义了订单聚合的持久化接口。
type OrderRepository interface {
	FindByID(ctx context.Context, id string) (*Order, error)
	Save(ctx context.Context, order *Order) error
}

// PaymentRepository 定义了支付记录的持久化接口。
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	FindByOrderID(ctx context.Context, orderID string) (*Payment, error)
	Save(ctx context.Context, payment *Payment) error
}

// RepositorySet 把绑定到同一个事务的各仓储打包在一起。
type RepositorySet struct {
	Reservations ReservationRepository
	Products     ProductStockRepository
	Orders       OrderRepository
	Payments     PaymentRepository
}

// UnitOfWork 提供事务边界：fn 内的所有仓储操作要么全部提交，要么全部回滚。
// 基础设施层用 gorm 的 db.Transaction 实现；测试里用互斥锁串行化的内存实现。
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(repos RepositorySet) error) error
}
