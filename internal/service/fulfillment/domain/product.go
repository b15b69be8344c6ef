// internal/service/fulfillment/domain/product.go
package domain

import "time"

// ProductStock 是商品库存实体。
// TotalStock 只能通过"余量充足才扣减"的单条原子更新变化，
// 绝不允许读出来再写回去；Version 用于预占阶段的乐观并发控制。
type ProductStock struct {
	ID         string
	TotalStock int
	Version    int64
	UpdatedAt  time.Time
}

// AvailableStock 计算派生的可用库存：总库存减去当前所有 RESERVED 的持有量。
// reservedSum 由仓储在同一个事务里统计得出。
func (p *ProductStock) AvailableStock(reservedSum int) int {
	return p.TotalStock - reservedSum
}
