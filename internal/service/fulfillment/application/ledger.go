// internal/service/fulfillment/application/ledger.go
package application

import (
	"context"
	"errors"
	"time"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/service/fulfillment/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ReservationLedger 实现了 port.StockLedger，是库存预占的唯一入口。
// 所有写路径都在 UnitOfWork 的事务边界内执行，
// 并发安全完全依赖商品行的版本 CAS 和预占行的条件更新，没有任何进程内锁。
type ReservationLedger struct {
	uow        domain.UnitOfWork
	tracer     trace.Tracer
	ttl        time.Duration // 预占的保留时长
	maxRetries int           // 版本冲突的最大重试次数
}

func NewReservationLedger(uow domain.UnitOfWork, tracer trace.Tracer, ttl time.Duration, maxRetries int) *ReservationLedger {
	return &ReservationLedger{
		uow:        uow,
		tracer:     tracer,
		ttl:        ttl,
		maxRetries: maxRetries,
	}
}

// ReserveAll 原子地为一个订单的所有行预占库存。
// 任何一行可用库存不足都会中止整个调用，不留下任何预占（全有或全无）。
// 同一商品上的并发预占通过版本 CAS 串行化：冲突方回滚后从读取处整体重试，
// 有限次重试仍然冲突时向上抛出 ErrConcurrencyConflict。
func (l *ReservationLedger) ReserveAll(ctx context.Context, orderID string, lines []domain.OrderLine) ([]*domain.Reservation, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.ReserveAll",
		trace.WithAttributes(
			attribute.String("order.id", orderID),
			attribute.Int("order.lines", len(lines)),
		))
	defer span.End()

	var lastErr error
	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		var created []*domain.Reservation
		err := l.uow.Execute(ctx, func(repos domain.RepositorySet) error {
			type versionCheck struct {
				productID string
				version   int64
			}
			reservations := make([]*domain.Reservation, 0, len(lines))
			checks := make([]versionCheck, 0, len(lines))

			for _, line := range lines {
				product, err := repos.Products.FindByID(ctx, line.ProductID)
				if err != nil {
					return err
				}
				reservedSum, err := repos.Reservations.SumActiveQuantity(ctx, line.ProductID)
				if err != nil {
					return err
				}
				if available := product.AvailableStock(reservedSum); available < line.Quantity {
					return &domain.InsufficientStockError{
						ProductID: line.ProductID,
						Requested: line.Quantity,
						Available: available,
					}
				}
				r, err := domain.NewReservation(orderID, line.ProductID, line.Quantity, l.ttl)
				if err != nil {
					return err
				}
				reservations = append(reservations, r)
				checks = append(checks, versionCheck{productID: product.ID, version: product.Version})
			}

			// 串行化点：对每个商品做版本 CAS。并发事务读到同一个版本时，
			// 只有先提交的一方能成功，失败方回滚后从头重试。
			for _, c := range checks {
				if err := repos.Products.BumpVersion(ctx, c.productID, c.version); err != nil {
					return err
				}
			}

			if err := repos.Reservations.CreateAll(ctx, reservations); err != nil {
				return err
			}
			created = reservations
			return nil
		})

		if err == nil {
			reservationsReserved.Add(float64(len(created)))
			span.AddEvent("All lines reserved")
			return created, nil
		}
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			versionConflicts.Inc()
			lastErr = err
			logger.Ctx(ctx).Debug().Str("order", orderID).Int("attempt", attempt+1).Msg("Stock version conflict, retrying reserveAll")
			continue
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "reserveAll failed")
		return nil, err
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "reserveAll exhausted optimistic retries")
	return nil, lastErr
}

// ConfirmAll 把订单下仍处于 RESERVED 的预占流转为 CONFIRMED，
// 并对每个商品执行一次"余量充足才扣减"的原子扣减。
// 没有任何活跃预占时返回空结果——这是一次空操作，由调用方决定如何对待。
// 任何一个商品扣减失败都会整体回滚，不存在部分确认。
func (l *ReservationLedger) ConfirmAll(ctx context.Context, orderID string) ([]*domain.Reservation, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.ConfirmAll",
		trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	var confirmed []*domain.Reservation
	err := l.uow.Execute(ctx, func(repos domain.RepositorySet) error {
		confirmed = confirmed[:0]
		active, err := repos.Reservations.FindActiveByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		if len(active) == 0 {
			span.AddEvent("No active reservations, confirmAll is a no-op")
			return nil
		}

		now := time.Now()
		for _, r := range active {
			// 条件流转：WHERE status = 'RESERVED'。
			// 如果清扫器在加载之后抢先把这条记录置为 EXPIRED，
			// 这里会看到零行受影响，这条记录视为"已被处理"，不是错误。
			ok, err := repos.Reservations.TransitionIfActive(ctx, r.ID, domain.ReservationConfirmed, &now)
			if err != nil {
				return err
			}
			if !ok {
				logger.Ctx(ctx).Warn().Str("reservation", r.ID).Msg("Reservation lost the confirm/expire race, skipping")
				continue
			}
			if err := repos.Products.DecrementStock(ctx, r.ProductID, r.ReservedQuantity); err != nil {
				return err
			}
			r.Status = domain.ReservationConfirmed
			r.ConfirmedAt = &now
			confirmed = append(confirmed, r)
		}
		return nil
	})
	if err != nil {
		var decrementErr *domain.StockDecrementError
		if errors.As(err, &decrementErr) {
			stockDecrementFailures.Inc()
			// 预占账目和真实库存已经漂移。不自动重试，留待人工对账。
			logger.Ctx(ctx).Error().Err(err).Str("order", orderID).
				Msg("CRITICAL: stock decrement failed during confirmAll, manual reconciliation required")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "confirmAll failed")
		return nil, err
	}

	reservationsConfirmed.Add(float64(len(confirmed)))
	return confirmed, nil
}

// CancelAll 取消订单下仍处于 RESERVED 的预占。
// 调用层面幂等：第二次调用找不到活跃记录，返回空结果而不是错误。
func (l *ReservationLedger) CancelAll(ctx context.Context, orderID string) ([]*domain.Reservation, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.CancelAll",
		trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	var cancelled []*domain.Reservation
	err := l.uow.Execute(ctx, func(repos domain.RepositorySet) error {
		cancelled = cancelled[:0]
		active, err := repos.Reservations.FindActiveByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		for _, r := range active {
			ok, err := repos.Reservations.TransitionIfActive(ctx, r.ID, domain.ReservationCancelled, nil)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			r.Status = domain.ReservationCancelled
			cancelled = append(cancelled, r)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancelAll failed")
		return nil, err
	}

	reservationsCancelled.Add(float64(len(cancelled)))
	return cancelled, nil
}

// AvailableStock 返回派生的可用库存：总库存减去所有 RESERVED 持有量。
func (l *ReservationLedger) AvailableStock(ctx context.Context, productID string) (int, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.AvailableStock",
		trace.WithAttributes(attribute.String("product.id", productID)))
	defer span.End()

	var available int
	err := l.uow.Execute(ctx, func(repos domain.RepositorySet) error {
		product, err := repos.Products.FindByID(ctx, productID)
		if err != nil {
			return err
		}
		reservedSum, err := repos.Reservations.SumActiveQuantity(ctx, productID)
		if err != nil {
			return err
		}
		available = product.AvailableStock(reservedSum)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return available, nil
}
