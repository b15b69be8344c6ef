package port

import (
	"context"

	"bazaar/internal/service/fulfillment/domain"
)

// StockLedger 是库存预占台账的入站端口，供 Saga 编排器和支付协调器调用。
type StockLedger interface {
	// ReserveAll 原子地为一个订单的所有行预占库存，全有或全无。
	ReserveAll(ctx context.Context, orderID string, lines []domain.OrderLine) ([]*domain.Reservation, error)

	// ConfirmAll 确认订单下仍在持有的预占并扣减真实库存，返回实际确认的记录。
	ConfirmAll(ctx context.Context, orderID string) ([]*domain.Reservation, error)

	// CancelAll 取消订单下仍在持有的预占。调用层面幂等：重复调用返回空结果。
	CancelAll(ctx context.Context, orderID string) ([]*domain.Reservation, error)

	// AvailableStock 返回派生的可用库存。
	AvailableStock(ctx context.Context, productID string) (int, error)
}
