package saga

import (
	"context"

	"bazaar/internal/pkg/logger"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ReserveStockHandler 是 Saga 的第一步，负责库存预占。
// 预占是全有或全无的：失败时台账里不会留下任何残留，
// 编排方只需要取消订单本身作为补偿。
type ReserveStockHandler struct {
	NextHandler
}

func (h *ReserveStockHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.ReserveStock")
	defer span.End()

	span.SetAttributes(
		attribute.String("order.id", orderCtx.Order.ID),
		attribute.Int("order.lines", len(orderCtx.Event.Items)),
	)

	if _, err := orderCtx.Ledger.ReserveAll(ctx, orderCtx.Order.ID, orderCtx.Event.Items); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Stock reservation failed")
		return err
	}

	// 注册补偿：后续某个步骤硬失败时释放本步骤持有的库存。
	// CancelAll 在调用层面幂等，重复补偿不会破坏状态。
	orderCtx.AddCompensation(func(compCtx context.Context) {
		compCtx, compSpan := orderCtx.Tracer.Start(compCtx, "saga.compensation.CancelReservations")
		defer compSpan.End()

		if _, err := orderCtx.Ledger.CancelAll(compCtx, orderCtx.Order.ID); err != nil {
			// 补偿失败需要记录严重错误，可能需要人工介入
			compSpan.RecordError(err)
			logger.Ctx(compCtx).Error().Err(err).Str("order", orderCtx.Order.ID).
				Msg("CRITICAL: failed to release reservations during compensation")
		}
	})

	span.AddEvent("All lines reserved successfully")
	return h.executeNext(orderCtx)
}
