// cmd/fulfillment-service/main.go
package main

import (
	"context"
	"strings"
	"time"

	"bazaar/internal/pkg/bootstrap"
	"bazaar/internal/pkg/httpclient"
	"bazaar/internal/pkg/logger"
	"bazaar/internal/pkg/mq"
	"bazaar/internal/pkg/redis"
	"bazaar/internal/service/fulfillment/application"
	"bazaar/internal/service/fulfillment/domain/port"
	"bazaar/internal/service/fulfillment/infrastructure"
	"bazaar/internal/service/fulfillment/infrastructure/adapter"
	"bazaar/internal/service/fulfillment/interfaces"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

const (
	serviceName = "fulfillment-service"

	orderCreatedTopic     = "order-created-topic"
	paymentConfirmedTopic = "payment-confirmed-topic"
	paymentFailedTopic    = "payment-failed-topic"
	notificationTopic     = "fulfillment-notifications"
	dltTopic              = "fulfillment-dlt"

	consumerGroupID = "fulfillment-consumer-group"

	processingTimeout = 30 * time.Second // 单个订单处理流程的超时上限
	retryBackoff      = 10 * time.Second // 重试主题的退避窗口
	dedupeTTL         = 24 * time.Hour   // 幂等标记的保留时长
)

type stoppable interface {
	Stop(ctx context.Context)
}

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	var (
		consumers []stoppable
		writers   []*kafka.Writer
		closers   []func() error
		cancelAll context.CancelFunc
	)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8082,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			cfg := bootstrap.GetCurrentConfig()
			tracer := otel.Tracer(serviceName)
			brokers := strings.Split(cfg.Infra.Kafka.Brokers, ",")

			// 1. 持久化层
			db, err := infrastructure.NewDB(cfg.Infra.Mysql.DSN)
			if err != nil {
				logger.Logger().Fatal().Err(err).Msg("failed to connect to mysql")
			}
			if err := infrastructure.AutoMigrate(db); err != nil {
				logger.Logger().Fatal().Err(err).Msg("failed to migrate schema")
			}
			uow := infrastructure.NewGormUnitOfWork(db)
			if sqlDB, err := db.DB(); err == nil {
				closers = append(closers, sqlDB.Close)
			}

			// 2. 出站适配器
			redisClient, err := redis.NewClient(cfg.Infra.Redis.Addrs)
			if err != nil {
				logger.Logger().Fatal().Err(err).Msg("failed to initialize redis client")
			}
			closers = append(closers, redisClient.Close)
			guard := adapter.NewDedupeRedisAdapter(redisClient, dedupeTTL)

			newWriter := func(topic string) *kafka.Writer {
				w := mq.NewKafkaWriter(brokers, topic)
				writers = append(writers, w)
				return w
			}

			var notifier port.NotificationProducer
			if cfg.App.FeatureFlags.EnableNotifications {
				notifier = adapter.NewNotificationKafkaAdapter(newWriter(notificationTopic))
			}

			httpClient := httpclient.NewClient(tracer)
			gateway := adapter.NewGatewayHTTPAdapter(httpClient, appCtx.Nacos)

			// 3. 应用层
			ledger := application.NewReservationLedger(uow, tracer,
				time.Duration(cfg.App.Reservation.TTLMinutes)*time.Minute,
				cfg.App.Reservation.MaxRetries)
			coordinator := application.NewPaymentCoordinator(uow, ledger, gateway, notifier, tracer)
			appSvc := application.NewFulfillmentService(uow, ledger, notifier, guard, coordinator, tracer, processingTimeout)

			// 4. 入站消费者：每个主题一个消费者 + 带退避的重试消费者
			ctx, cancel := context.WithCancel(context.Background())
			cancelAll = cancel
			dltWriter := newWriter(dltTopic)

			startConsumer := func(topic string, build func(*kafka.Reader, *mq.FailureHandler) *interfaces.ConsumerAdapter) {
				failureHandler := mq.NewFailureHandler(newWriter(topic+"-retry"), dltWriter, cfg.App.Reservation.MaxRetries)

				primary := build(mq.NewKafkaReader(brokers, topic, consumerGroupID), failureHandler)
				primary.Start(ctx)
				consumers = append(consumers, primary)

				retry := build(mq.NewKafkaReader(brokers, topic+"-retry", consumerGroupID), failureHandler)
				retry.SetDelay(retryBackoff)
				retry.Start(ctx)
				consumers = append(consumers, retry)
			}

			startConsumer(orderCreatedTopic, func(r *kafka.Reader, fh *mq.FailureHandler) *interfaces.ConsumerAdapter {
				return interfaces.NewOrderCreatedConsumer(r, appSvc, fh)
			})
			startConsumer(paymentConfirmedTopic, func(r *kafka.Reader, fh *mq.FailureHandler) *interfaces.ConsumerAdapter {
				return interfaces.NewPaymentConfirmedConsumer(r, appSvc, fh)
			})
			startConsumer(paymentFailedTopic, func(r *kafka.Reader, fh *mq.FailureHandler) *interfaces.ConsumerAdapter {
				return interfaces.NewPaymentFailedConsumer(r, appSvc, fh)
			})

			dltConsumer := interfaces.NewDltConsumerAdapter(mq.NewKafkaReader(brokers, dltTopic, consumerGroupID))
			dltConsumer.Start(ctx)
			consumers = append(consumers, dltConsumer)

			// 5. HTTP 边界：库存查询 + 支付回调
			httpHandler := interfaces.NewFulfillmentHandler(ledger,
				newWriter(paymentConfirmedTopic), newWriter(paymentFailedTopic))
			httpHandler.RegisterRoutes(appCtx.Mux)
		},
		OnShutdown: func(ctx context.Context) {
			if cancelAll != nil {
				cancelAll()
			}
			for _, c := range consumers {
				c.Stop(ctx)
			}
			for _, w := range writers {
				w.Close()
			}
			for _, closeFn := range closers {
				if err := closeFn(); err != nil {
					logger.Logger().Warn().Err(err).Msg("Error closing client during shutdown")
				}
			}
		},
	})
}
