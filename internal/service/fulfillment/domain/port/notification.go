package port

import (
	"context"

	"bazaar/internal/service/fulfillment/domain"
)

// NotificationProducer 是消息生产者的出站端口。
// 通知是尽力而为的：任何实现的失败都不允许影响订单/预占/支付状态。
type NotificationProducer interface {
	// SendOrderPendingPayment 发送"预占成功，等待支付"的通知。
	SendOrderPendingPayment(ctx context.Context, order *domain.Order) error

	// SendOrderCancelled 发送订单被取消的通知。
	SendOrderCancelled(ctx context.Context, orderID, userID, reason string) error
}
