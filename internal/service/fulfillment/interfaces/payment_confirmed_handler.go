// internal/service/fulfillment/interfaces/payment_confirmed_handler.go
package interfaces

import (
	"context"
	"encoding/json"

	"bazaar/internal/pkg/mq"
	"bazaar/internal/service/fulfillment/application"
	"bazaar/internal/service/fulfillment/domain"

	"github.com/segmentio/kafka-go"
)

// NewPaymentConfirmedConsumer 监听支付确认事件并驱动支付协调器。
func NewPaymentConfirmedConsumer(reader *kafka.Reader, appSvc *application.FulfillmentService, failureHandler *mq.FailureHandler) *ConsumerAdapter {
	return NewConsumerAdapter(reader, func(ctx context.Context, msg kafka.Message) error {
		var event domain.PaymentConfirmedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return err
		}
		return appSvc.HandlePaymentConfirmed(ctx, &event)
	}, failureHandler)
}
