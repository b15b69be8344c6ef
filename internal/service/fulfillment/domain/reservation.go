// internal/service/fulfillment/domain/reservation.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReservationStatus 定义了预占记录的生命周期状态
type ReservationStatus string

const (
	ReservationReserved  ReservationStatus = "RESERVED"  // 库存已占用，等待确认或释放
	ReservationConfirmed ReservationStatus = "CONFIRMED" // 支付成功，真实库存已扣减（终态）
	ReservationCancelled ReservationStatus = "CANCELLED" // 已释放（终态）
	ReservationExpired   ReservationStatus = "EXPIRED"   // 保留超时被清扫器回收（终态）
)

// Reservation 是库存预占聚合：一条记录对应一个 (订单, 商品) 的持有量。
// ReservedQuantity 在创建后不可变更——修改数量必须取消后重新预占。
type Reservation struct {
	ID               string
	OrderID          string
	ProductID        string
	ReservedQuantity int
	Status           ReservationStatus
	ReservedAt       time.Time
	ConfirmedAt      *time.Time // 仅在 CONFIRMED 时非空
	ExpiresAt        time.Time
	Version          int64
}

// NewReservation 创建一条新的预占记录，初始状态为 RESERVED。
func NewReservation(orderID, productID string, quantity int, ttl time.Duration) (*Reservation, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	now := time.Now()
	return &Reservation{
		ID:               uuid.New().String(),
		OrderID:          orderID,
		ProductID:        productID,
		ReservedQuantity: quantity,
		Status:           ReservationReserved,
		ReservedAt:       now,
		ExpiresAt:        now.Add(ttl),
	}, nil
}

// Confirm 将 RESERVED 流转为 CONFIRMED。
// 确认刻意设计为不幂等：对已确认的记录再次 Confirm 会返回错误，
// 调用方必须先检查状态，否则存在重复扣减真实库存的风险。
func (r *Reservation) Confirm() error {
	if r.Status != ReservationReserved {
		return ErrInvalidStateTransition
	}
	now := time.Now()
	r.Status = ReservationConfirmed
	r.ConfirmedAt = &now
	return nil
}

// Cancel 将 RESERVED 流转为 CANCELLED，释放持有的数量。
func (r *Reservation) Cancel() error {
	if r.Status != ReservationReserved {
		return ErrInvalidStateTransition
	}
	r.Status = ReservationCancelled
	return nil
}

// Expire 将 RESERVED 流转为 EXPIRED，由清扫器在保留超时后调用。
func (r *Reservation) Expire() error {
	if r.Status != ReservationReserved {
		return ErrInvalidStateTransition
	}
	r.Status = ReservationExpired
	return nil
}

// IsActive 仅当状态为 RESERVED 时为真。
func (r *Reservation) IsActive() bool {
	return r.Status == ReservationReserved
}

// IsExpired 是纯时间判断，与存储的状态无关。
// 清扫器用它筛选候选记录，真正的状态流转仍然要走条件更新。
func (r *Reservation) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
