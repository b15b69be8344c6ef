// internal/service/fulfillment/application/service.go
package application

import (
	"context"
	"errors"
	"time"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/service/fulfillment/application/saga"
	"bazaar/internal/service/fulfillment/domain"
	"bazaar/internal/service/fulfillment/domain/port"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// FulfillmentService 是履约 Saga 的编排器。
// 它订阅已落库的事实信号（订单创建、支付结果），把每个信号展开成一串
// 各自带失败边界的步骤；只有第一步（库存预占）的失败会触发补偿。
type FulfillmentService struct {
	uow               domain.UnitOfWork
	ledger            port.StockLedger
	notifier          port.NotificationProducer
	guard             port.DeliveryGuard
	coordinator       *PaymentCoordinator
	tracer            trace.Tracer
	processingTimeout time.Duration
}

func NewFulfillmentService(
	uow domain.UnitOfWork,
	ledger port.StockLedger,
	notifier port.NotificationProducer,
	guard port.DeliveryGuard,
	coordinator *PaymentCoordinator,
	tracer trace.Tracer,
	processingTimeout time.Duration,
) *FulfillmentService {
	return &FulfillmentService{
		uow:               uow,
		ledger:            ledger,
		notifier:          notifier,
		guard:             guard,
		coordinator:       coordinator,
		tracer:            tracer,
		processingTimeout: processingTimeout,
	}
}

// HandleOrderCreated 是 Saga 的被动入口，由 Kafka 消费适配器调用。
// 事件只在订单行自身持久化成功之后才会发布，所以这里总是能读到订单。
func (s *FulfillmentService) HandleOrderCreated(ctx context.Context, event *domain.OrderCreatedEvent) error {
	ctx, span := s.tracer.Start(ctx, "app.HandleOrderCreated", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", event.OrderID),
		attribute.String("user.id", event.UserID),
	)

	// 幂等守卫：Kafka 是 at-least-once 投递。Redis 打标挡掉大部分重复，
	// 订单状态检查兜底剩下的。
	if s.guard != nil {
		first, err := s.guard.FirstDelivery(ctx, "order-created:"+event.OrderID)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("Delivery guard unavailable, relying on order state check")
		} else if !first {
			span.AddEvent("Duplicate delivery, skipping")
			return nil
		}
	}

	// 为每个订单的处理流程设置独立的超时时间
	processingCtx, cancel := context.WithTimeout(ctx, s.processingTimeout)
	defer cancel()

	var order *domain.Order
	err := s.uow.Execute(processingCtx, func(repos domain.RepositorySet) error {
		o, err := repos.Orders.FindByID(processingCtx, event.OrderID)
		if err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to load order")
		logger.Ctx(ctx).Error().Err(err).Str("order", event.OrderID).Msg("Failed to load order for fulfillment")
		return err
	}
	if order.State != domain.StateCreated {
		// 另一次投递已经处理过这个订单
		span.AddEvent("Order already processed, skipping")
		logger.Ctx(ctx).Warn().Str("order", order.ID).Str("state", string(order.State)).
			Msg("Order is not in CREATED state, skipping fulfillment")
		return nil
	}

	orderContext := &saga.OrderContext{
		Ctx:      processingCtx,
		Order:    order,
		Event:    event,
		Tracer:   s.tracer,
		Ledger:   s.ledger,
		Notifier: s.notifier,
		UoW:      s.uow,
	}

	logger.Ctx(ctx).Info().Str("order", order.ID).Str("user", event.UserID).
		Msg("Starting reservation saga")

	chain := s.buildChain()
	if err := chain.Handle(orderContext); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Fulfillment saga failed")
		logger.Ctx(ctx).Error().Err(err).Str("order", order.ID).
			Msg("Fulfillment saga failed, compensation triggered")

		orderContext.TriggerCompensation(processingCtx)

		if !isCompensable(err) {
			// 基础设施故障：订单保持原状，交给消息重投恢复
			return err
		}

		// 预占阶段的业务性失败在本地补偿：取消订单。
		// 下单方只能通过订单状态观察到结果，看不到内部错误。
		if cancelErr := s.cancelOrder(processingCtx, order, err.Error()); cancelErr != nil {
			span.RecordError(cancelErr, trace.WithAttributes(attribute.Bool("critical.error", true)))
			logger.Ctx(ctx).Error().Err(cancelErr).Str("order", order.ID).
				Msg("CRITICAL: failed to cancel order after compensation")
			return cancelErr
		}
		return nil
	}

	logger.Ctx(ctx).Info().Str("order", order.ID).Str("state", string(order.State)).
		Msg("SUCCESS: reservation saga finished")
	return nil
}

// HandlePaymentConfirmed 处理支付网关回调边界发来的确认信号。
func (s *FulfillmentService) HandlePaymentConfirmed(ctx context.Context, event *domain.PaymentConfirmedEvent) error {
	return s.coordinator.ConfirmPayment(ctx, event.PaymentKey, event.OrderID, event.Amount)
}

// HandlePaymentFailed 处理支付失败信号：释放预占并取消订单。
func (s *FulfillmentService) HandlePaymentFailed(ctx context.Context, event *domain.PaymentFailedEvent) error {
	return s.coordinator.FailPayment(ctx, event.OrderID, event.Code, event.Reason)
}

func (s *FulfillmentService) cancelOrder(ctx context.Context, order *domain.Order, reason string) error {
	err := s.uow.Execute(ctx, func(repos domain.RepositorySet) error {
		if err := order.Cancel(); err != nil {
			return err
		}
		return repos.Orders.Save(ctx, order)
	})
	if err != nil {
		return err
	}
	if s.notifier != nil {
		// 尽力而为，失败只记录
		if nerr := s.notifier.SendOrderCancelled(ctx, order.ID, order.UserID, reason); nerr != nil {
			logger.Ctx(ctx).Warn().Err(nerr).Str("order", order.ID).Msg("WARN: failed to publish cancellation notification")
		}
	}
	return nil
}

func (s *FulfillmentService) buildChain() saga.Handler {
	chain := new(saga.ReserveStockHandler)
	chain.
		SetNext(new(saga.PaymentRecordHandler)).
		SetNext(new(saga.NotificationHandler))
	return chain
}

// isCompensable 区分业务性失败（本地补偿后吞掉）和基础设施失败（向上抛出重投）。
func isCompensable(err error) bool {
	var insufficient *domain.InsufficientStockError
	return errors.As(err, &insufficient) || errors.Is(err, domain.ErrConcurrencyConflict)
}
