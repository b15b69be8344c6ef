// internal/service/fulfillment/application/sweeper.go
package application

import (
	"context"
	"time"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/service/fulfillment/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ExpirationSweeper 周期性地回收保留超时的预占。
// 每轮只发出一条批量条件更新（status = RESERVED AND expires_at <= now → EXPIRED），
// 刚被确认或取消的行不再命中 WHERE 条件，因此清扫永远不会覆盖主流程的流转。
type ExpirationSweeper struct {
	uow      domain.UnitOfWork
	tracer   trace.Tracer
	interval time.Duration
}

func NewExpirationSweeper(uow domain.UnitOfWork, tracer trace.Tracer, interval time.Duration) *ExpirationSweeper {
	return &ExpirationSweeper{
		uow:      uow,
		tracer:   tracer,
		interval: interval,
	}
}

// Run 启动固定周期的清扫循环，直到 ctx 被取消。
func (s *ExpirationSweeper) Run(ctx context.Context) {
	logger.Ctx(ctx).Info().Dur("interval", s.interval).Msg("✅ Expiration sweeper started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				// 单轮失败不影响后续轮次，等下一个 tick 再试
				logger.Ctx(ctx).Error().Err(err).Msg("Sweep run failed")
			}
		case <-ctx.Done():
			logger.Ctx(ctx).Info().Msg("🛑 Expiration sweeper shutting down")
			return
		}
	}
}

// SweepOnce 执行一轮清扫，返回被置为 EXPIRED 的行数。
// 过期隐式地把持有量还给可用库存——可用库存是派生值，没有字段需要恢复。
func (s *ExpirationSweeper) SweepOnce(ctx context.Context) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "sweeper.ExpireDue")
	defer span.End()

	var expired int64
	err := s.uow.Execute(ctx, func(repos domain.RepositorySet) error {
		n, err := repos.Reservations.ExpireDue(ctx, time.Now())
		expired = n
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bulk expire failed")
		return 0, err
	}

	span.SetAttributes(attribute.Int64("reservations.expired", expired))
	if expired > 0 {
		reservationsExpired.Add(float64(expired))
		logger.Ctx(ctx).Info().Int64("expired", expired).Msg("Reclaimed timed-out reservations")
	}
	return expired, nil
}
