// internal/service/fulfillment/application/payment.go
package application

import (
	"context"
	"errors"
	"fmt"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/service/fulfillment/domain"
	"bazaar/internal/service/fulfillment/domain/port"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PaymentCoordinator 负责支付结果的收敛：确认路径推进订单到终态，
// 失败路径释放预占并取消订单。两条路径都必须对重复投递保持幂等。
type PaymentCoordinator struct {
	uow      domain.UnitOfWork
	ledger   port.StockLedger
	gateway  port.PaymentGateway
	notifier port.NotificationProducer
	tracer   trace.Tracer
}

func NewPaymentCoordinator(
	uow domain.UnitOfWork,
	ledger port.StockLedger,
	gateway port.PaymentGateway,
	notifier port.NotificationProducer,
	tracer trace.Tracer,
) *PaymentCoordinator {
	return &PaymentCoordinator{
		uow:      uow,
		ledger:   ledger,
		gateway:  gateway,
		notifier: notifier,
		tracer:   tracer,
	}
}

// ConfirmPayment 处理支付确认信号。顺序是刻意的：
// 先做本地状态与金额校验，再调用网关，成功之后才确认预占、
// 最后把支付和订单推进到终态。订单只有在预占确认成功后才算完成。
func (c *PaymentCoordinator) ConfirmPayment(ctx context.Context, paymentKey, orderID string, amount int64) error {
	ctx, span := c.tracer.Start(ctx, "app.ConfirmPayment",
		trace.WithAttributes(
			attribute.String("order.id", orderID),
			attribute.Int64("payment.amount", amount),
		))
	defer span.End()

	var (
		order   *domain.Order
		payment *domain.Payment
	)
	err := c.uow.Execute(ctx, func(repos domain.RepositorySet) error {
		o, err := repos.Orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		p, err := repos.Payments.FindByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		order = o
		payment = p
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to load order/payment for confirmation")
		return err
	}

	// 状态守卫兜底重复确认：第二次投递会看到 SUCCESS/COMPLETED，直接拒绝。
	if payment.Status != domain.PaymentPending {
		span.AddEvent("Payment is not pending, rejecting confirmation")
		logger.Ctx(ctx).Warn().Str("order", orderID).Str("status", string(payment.Status)).
			Msg("Payment confirmation rejected: payment is not pending")
		return fmt.Errorf("payment for order %s is %s: %w", orderID, payment.Status, domain.ErrInvalidPaymentState)
	}
	if order.State != domain.StatePendingPayment {
		span.AddEvent("Order is not awaiting payment, rejecting confirmation")
		logger.Ctx(ctx).Warn().Str("order", orderID).Str("state", string(order.State)).
			Msg("Payment confirmation rejected: order is not awaiting payment")
		return fmt.Errorf("order %s is %s: %w", orderID, order.State, domain.ErrInvalidPaymentState)
	}
	if amount != order.TotalAmount {
		span.SetStatus(codes.Error, "Payment amount mismatch")
		logger.Ctx(ctx).Error().Str("order", orderID).
			Int64("expected", order.TotalAmount).Int64("actual", amount).
			Msg("Payment confirmation rejected: amount mismatch")
		return fmt.Errorf("expected %d, got %d: %w", order.TotalAmount, amount, domain.ErrAmountMismatch)
	}

	// 网关调用必须在任何事务之外：它是远程调用，延迟不可控。
	conf, err := c.gateway.Confirm(ctx, paymentKey, orderID, amount)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Payment gateway call failed")
		return &domain.GatewayRejectedError{Code: "GATEWAY_ERROR", Message: err.Error()}
	}
	if !conf.Approved {
		span.SetStatus(codes.Error, "Payment gateway rejected confirmation")
		logger.Ctx(ctx).Warn().Str("order", orderID).Str("code", conf.Code).
			Msg("Payment gateway rejected confirmation")
		return &domain.GatewayRejectedError{Code: conf.Code, Message: conf.Message}
	}
	if conf.OrderID != orderID || conf.Amount != amount {
		// 网关回显与请求不一致，宁可拒绝也不能带着存疑的凭据完成订单
		span.SetStatus(codes.Error, "Gateway echo mismatch")
		logger.Ctx(ctx).Error().Str("order", orderID).
			Str("echo_order", conf.OrderID).Int64("echo_amount", conf.Amount).
			Msg("Payment gateway echo does not match request, rejecting")
		return &domain.GatewayRejectedError{Code: "ECHO_MISMATCH", Message: "gateway echo does not match request"}
	}

	confirmed, err := c.ledger.ConfirmAll(ctx, orderID)
	if err != nil {
		// 预占确认失败时订单不得进入完成态：资金已划走但库存未落定，
		// 这是需要人工对账的窗口。
		span.RecordError(err)
		span.SetStatus(codes.Error, "Reservation confirmation failed after gateway approval")
		logger.Ctx(ctx).Error().Err(err).Str("order", orderID).
			Msg("CRITICAL: gateway approved but reservation confirmation failed, order left pending")
		return err
	}
	if len(confirmed) == 0 {
		// 预占在支付到达前已过期或被取消。资金侧需要走退款流程。
		span.SetStatus(codes.Error, "No reservations left to confirm")
		logger.Ctx(ctx).Warn().Str("order", orderID).
			Msg("WARN: payment confirmed but reservations already lapsed, refund required")
		return fmt.Errorf("reservations lapsed before confirmation for order %s: %w", orderID, domain.ErrInvalidPaymentState)
	}

	err = c.uow.Execute(ctx, func(repos domain.RepositorySet) error {
		// 事务内重新加载再推进：守卫检查之后可能有并发的 FailPayment 介入，
		// 不能拿旧快照把它写下的终态覆盖掉。状态机守卫会拦下这种交错。
		p, err := repos.Payments.FindByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := p.MarkAsSuccess(paymentKey); err != nil {
			return err
		}
		if err := repos.Payments.Save(ctx, p); err != nil {
			return err
		}
		o, err := repos.Orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := o.MarkAsPaymentCompleted(); err != nil {
			return err
		}
		return repos.Orders.Save(ctx, o)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to finalize payment/order state")
		logger.Ctx(ctx).Error().Err(err).Str("order", orderID).
			Msg("CRITICAL: reservations confirmed but payment/order finalization failed")
		return err
	}

	logger.Ctx(ctx).Info().Str("order", orderID).Int("confirmed", len(confirmed)).
		Msg("SUCCESS: payment confirmed, order completed")
	span.AddEvent("Payment confirmed and order completed")
	return nil
}

// FailPayment 处理支付失败信号：记录失败原因、释放预占、取消订单。
// 每个子步骤都容忍"没有可做的事"，所以重复投递是安全的。
func (c *PaymentCoordinator) FailPayment(ctx context.Context, orderID, code, reason string) error {
	ctx, span := c.tracer.Start(ctx, "app.FailPayment",
		trace.WithAttributes(
			attribute.String("order.id", orderID),
			attribute.String("failure.code", code),
		))
	defer span.End()

	var order *domain.Order
	err := c.uow.Execute(ctx, func(repos domain.RepositorySet) error {
		payment, err := repos.Payments.FindByOrderID(ctx, orderID)
		if err != nil {
			if errors.Is(err, domain.ErrPaymentNotFound) {
				// 失败信号可能先于支付记录到达（步骤二被人工搁置的订单），
				// 此时只做预占释放和订单取消。
				span.AddEvent("No payment record, releasing reservations only")
				return nil
			}
			return err
		}
		if err := payment.MarkAsFailed(code, reason); err != nil {
			return err
		}
		return repos.Payments.Save(ctx, payment)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to record payment failure")
		return err
	}

	cancelled, err := c.ledger.CancelAll(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to release reservations")
		logger.Ctx(ctx).Error().Err(err).Str("order", orderID).
			Msg("CRITICAL: failed to release reservations after payment failure")
		return err
	}

	var userID string
	err = c.uow.Execute(ctx, func(repos domain.RepositorySet) error {
		order, err = repos.Orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		userID = order.UserID
		if err := order.Cancel(); err != nil {
			return err
		}
		return repos.Orders.Save(ctx, order)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to cancel order after payment failure")
		return err
	}

	if c.notifier != nil {
		// 尽力而为，失败只记录
		if nerr := c.notifier.SendOrderCancelled(ctx, orderID, userID, reason); nerr != nil {
			logger.Ctx(ctx).Warn().Err(nerr).Str("order", orderID).
				Msg("WARN: failed to publish cancellation notification")
		}
	}

	logger.Ctx(ctx).Info().Str("order", orderID).Str("code", code).Int("released", len(cancelled)).
		Msg("Payment failure handled, reservations released and order cancelled")
	return nil
}
