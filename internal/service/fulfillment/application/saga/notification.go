package saga

import (
	"bazaar/internal/pkg/logger"

	"go.opentelemetry.io/otel/attribute"
)

// NotificationHandler 是 Saga 流程的最后一步，负责发送最终通知。
type NotificationHandler struct {
	NextHandler
}

func (h *NotificationHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.Notification")
	defer span.End()

	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination.topic", "fulfillment-notifications"),
	)

	if orderCtx.Notifier == nil {
		span.AddEvent("Notifications disabled, skipping")
		return h.executeNext(orderCtx)
	}

	// 发送通知失败是非关键路径的失败：只记录警告，
	// 让整个 Saga 流程成功结束。它绝不允许影响订单/预占/支付状态。
	if err := orderCtx.Notifier.SendOrderPendingPayment(ctx, orderCtx.Order); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("order", orderCtx.Order.ID).
			Msg("WARN: failed to publish pending-payment notification")
		span.RecordError(err)
	}

	span.AddEvent("Saga process finalized and notification sent (or attempted).")
	return h.executeNext(orderCtx)
}
