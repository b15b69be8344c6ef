// internal/service/fulfillment/domain/order.go
package domain

import (
	"errors"
	"time"
)

// OrderState 定义了订单的生命周期状态。
// 订单状态是整个履约流程对外唯一可见的结果，下单方只需要轮询它。
type OrderState string

const (
	StateCreated          OrderState = "CREATED"           // 订单已落库，履约流程尚未开始
	StatePendingPayment   OrderState = "PAYMENT_PENDING"   // 库存预占成功，等待支付
	StatePaymentCompleted OrderState = "PAYMENT_COMPLETED" // 支付确认完成，真实库存已扣减
	StateCancelled        OrderState = "CANCELLED"         // 预占失败或支付失败后被取消
)

// Order 是订单聚合的根实体。创建订单本身在本子系统之外，
// 这里只维护履约视角需要的字段。金额以最小货币单位（分）存储。
type Order struct {
	ID          string
	UserID      string
	TotalAmount int64
	State       OrderState
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MarkAsPendingPayment 预占成功后将订单置为等待支付。
// 这个方法只负责状态流转，不负责调用外部服务。
func (o *Order) MarkAsPendingPayment() error {
	if o.State != StateCreated {
		return errors.New("order can only be marked as pending payment from created state")
	}
	o.State = StatePendingPayment
	o.UpdatedAt = time.Now()
	return nil
}

// MarkAsPaymentCompleted 支付确认成功、预占全部确认后调用。
func (o *Order) MarkAsPaymentCompleted() error {
	if o.State != StatePendingPayment {
		return errors.New("only pending payment orders can be completed")
	}
	o.State = StatePaymentCompleted
	o.UpdatedAt = time.Now()
	return nil
}

// Cancel 取消订单。重复取消是无害的空操作，
// 因为支付失败路径被设计为可以安全地调用多次。
func (o *Order) Cancel() error {
	if o.State == StateCancelled {
		return nil
	}
	if o.State == StatePaymentCompleted {
		return errors.New("completed orders cannot be cancelled")
	}
	o.State = StateCancelled
	o.UpdatedAt = time.Now()
	return nil
}
