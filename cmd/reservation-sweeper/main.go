// cmd/reservation-sweeper/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bazaar/internal/pkg/bootstrap"
	"bazaar/internal/pkg/logger"
	"bazaar/internal/pkg/tracing"
	"bazaar/internal/service/fulfillment/application"
	"bazaar/internal/service/fulfillment/infrastructure"
	"bazaar/internal/zookeeper"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName  = "reservation-sweeper"
	leaderLockID = "reservation-sweeper"
	leaderRetry  = 15 * time.Second
)

// 清扫器是单写者：批量过期更新不需要也不应该被多个实例同时执行。
// 通过 Zookeeper 临时顺序节点做 leader 选举，落选的实例热备等待。
func main() {
	logger.Init(serviceName)
	bootstrap.LoadConfig(nil, serviceName+".yaml")
	cfg := bootstrap.GetCurrentConfig()

	tp, err := tracing.InitTracerProvider(serviceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to initialize tracer provider")
	}
	defer tp.Shutdown(context.Background())
	tracer := otel.Tracer(serviceName)

	db, err := infrastructure.NewDB(cfg.Infra.Mysql.DSN)
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to connect to mysql")
	}
	uow := infrastructure.NewGormUnitOfWork(db)

	zkConn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers)
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to connect to zookeeper")
	}
	defer zkConn.Close()

	sweeper := application.NewExpirationSweeper(uow, tracer,
		time.Duration(cfg.App.Reservation.SweepIntervalSec)*time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// 健康检查和指标端口
	server := &http.Server{Addr: ":" + getEnv("SWEEPER_PORT", "8083")}
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	http.Handle("/metrics", promhttp.Handler())
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	// leader 选举 + 清扫循环
	g.Go(func() error {
		return runAsLeader(gctx, zkConn, sweeper)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Logger().Fatal().Err(err).Msg("sweeper exited with error")
	}
	logger.Logger().Info().Msg("Reservation sweeper gracefully shut down.")
}

// runAsLeader 反复竞选，选上后持锁运行清扫循环直到退出。
// 锁节点是临时的，持有者崩溃后会话过期，其他实例自然接替。
func runAsLeader(ctx context.Context, conn *zookeeper.Conn, sweeper *application.ExpirationSweeper) error {
	for {
		lock, err := zookeeper.NewDistributedLock(conn, leaderLockID)
		if err != nil {
			return err
		}

		err = lock.TryLock()
		switch {
		case err == nil:
			logger.Ctx(ctx).Info().Msg("✅ Acquired sweeper leadership")
			sweeper.Run(ctx)
			if uerr := lock.Unlock(); uerr != nil {
				logger.Ctx(ctx).Warn().Err(uerr).Msg("Failed to release sweeper leader lock")
			}
			return ctx.Err()
		case errors.Is(err, zookeeper.ErrLockHeld):
			logger.Ctx(ctx).Debug().Msg("Sweeper leadership held elsewhere, standing by")
		default:
			logger.Ctx(ctx).Error().Err(err).Msg("Leader election attempt failed")
		}

		select {
		case <-time.After(leaderRetry):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
