// internal/service/fulfillment/interfaces/order_created_handler.go
package interfaces

import (
	"context"
	"encoding/json"

	"bazaar/internal/pkg/mq"
	"bazaar/internal/service/fulfillment/application"
	"bazaar/internal/service/fulfillment/domain"

	"github.com/segmentio/kafka-go"
)

// NewOrderCreatedConsumer 监听订单创建事件并驱动履约 Saga。
func NewOrderCreatedConsumer(reader *kafka.Reader, appSvc *application.FulfillmentService, failureHandler *mq.FailureHandler) *ConsumerAdapter {
	return NewConsumerAdapter(reader, func(ctx context.Context, msg kafka.Message) error {
		var event domain.OrderCreatedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return err
		}
		return appSvc.HandleOrderCreated(ctx, &event)
	}, failureHandler)
}
