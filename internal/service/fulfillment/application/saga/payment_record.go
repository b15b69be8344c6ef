package saga

import (
	"bazaar/internal/pkg/logger"
	"bazaar/internal/service/fulfillment/domain"

	"go.opentelemetry.io/otel/codes"
)

// PaymentRecordHandler 是 Saga 的第二步：创建 PENDING 支付记录，
// 并把订单置为等待支付。
type PaymentRecordHandler struct {
	NextHandler
}

func (h *PaymentRecordHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.CreatePaymentRecord")
	defer span.End()

	err := orderCtx.UoW.Execute(ctx, func(repos domain.RepositorySet) error {
		payment := domain.NewPayment(orderCtx.Order.ID, orderCtx.Order.TotalAmount)
		if err := repos.Payments.Create(ctx, payment); err != nil {
			return err
		}
		if err := orderCtx.Order.MarkAsPendingPayment(); err != nil {
			return err
		}
		return repos.Orders.Save(ctx, orderCtx.Order)
	})
	if err != nil {
		// 刻意不回滚预占、也不中断为补偿：库存已经被诚实地持有，
		// 在这里重复取消会和迟到的支付确认产生竞态。
		// 订单保持原状，留待人工介入。
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create pending payment record")
		logger.Ctx(ctx).Error().Err(err).Str("order", orderCtx.Order.ID).
			Msg("CRITICAL: payment record creation failed, order left as-is for manual intervention")
		return nil
	}

	span.AddEvent("Pending payment record created, order is now awaiting payment")
	return h.executeNext(orderCtx)
}
