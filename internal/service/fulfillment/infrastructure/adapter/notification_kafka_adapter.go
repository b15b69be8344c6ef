package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"bazaar/internal/pkg/mq"
	"bazaar/internal/service/fulfillment/domain"
)

// NotificationKafkaAdapter 实现了 port.NotificationProducer 接口。
type NotificationKafkaAdapter struct {
	writer *kafka.Writer
}

// NewNotificationKafkaAdapter 创建一个新的通知生产者适配器。
func NewNotificationKafkaAdapter(writer *kafka.Writer) *NotificationKafkaAdapter {
	return &NotificationKafkaAdapter{writer: writer}
}

// SendOrderPendingPayment 发送"预占成功，等待支付"的通知。
func (a *NotificationKafkaAdapter) SendOrderPendingPayment(ctx context.Context, order *domain.Order) error {
	message := fmt.Sprintf(
		"Your order %s is reserved and waiting for payment.", order.ID,
	)
	return a.publish(ctx, order.UserID, order.ID, message)
}

// SendOrderCancelled 发送订单被取消的通知。
func (a *NotificationKafkaAdapter) SendOrderCancelled(ctx context.Context, orderID, userID, reason string) error {
	message := fmt.Sprintf("Your order %s has been cancelled: %s", orderID, reason)
	return a.publish(ctx, userID, orderID, message)
}

func (a *NotificationKafkaAdapter) publish(ctx context.Context, userID, orderID, message string) error {
	event := domain.NotificationEvent{
		UserID:  userID,
		OrderID: orderID,
		Message: message,
		At:      time.Now(),
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notification event: %w", err)
	}

	// 调用通用的 mq.ProduceMessage，它会自动处理追踪上下文注入
	return mq.ProduceMessage(ctx, a.writer, []byte(userID), eventBytes)
}

// Close 关闭底层的Kafka writer。
func (a *NotificationKafkaAdapter) Close() error {
	return a.writer.Close()
}
