// internal/service/fulfillment/domain/event.go
package domain

import "time"

// OrderLine 是订单中的一行商品。
type OrderLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// OrderCreatedEvent 在订单行自身持久化成功之后由下单方发布。
// 履约 Saga 以它为起点：先预占库存，再创建支付记录。
type OrderCreatedEvent struct {
	OrderID     string      `json:"orderId"`
	UserID      string      `json:"userId"`
	TotalAmount int64       `json:"totalAmount"`
	Items       []OrderLine `json:"items"`
	TraceID     string      `json:"traceId,omitempty"`
}

// PaymentConfirmedEvent 来自支付网关回调边界。
type PaymentConfirmedEvent struct {
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
}

// PaymentFailedEvent 来自支付网关回调边界。
type PaymentFailedEvent struct {
	OrderID string `json:"orderId"`
	Code    string `json:"code"`
	Reason  string `json:"reason"`
}

// NotificationEvent 是发往通知主题的载体。通知投递本身在子系统之外，
// 这里只负责尽力而为地发布。
type NotificationEvent struct {
	UserID  string    `json:"userId"`
	OrderID string    `json:"orderId"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}
