// internal/service/fulfillment/interfaces/payment_failed_handler.go
package interfaces

import (
	"context"
	"encoding/json"

	"bazaar/internal/pkg/mq"
	"bazaar/internal/service/fulfillment/application"
	"bazaar/internal/service/fulfillment/domain"

	"github.com/segmentio/kafka-go"
)

// NewPaymentFailedConsumer 监听支付失败事件：释放预占并取消订单。
func NewPaymentFailedConsumer(reader *kafka.Reader, appSvc *application.FulfillmentService, failureHandler *mq.FailureHandler) *ConsumerAdapter {
	return NewConsumerAdapter(reader, func(ctx context.Context, msg kafka.Message) error {
		var event domain.PaymentFailedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return err
		}
		return appSvc.HandlePaymentFailed(ctx, &event)
	}, failureHandler)
}
