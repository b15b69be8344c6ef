// internal/service/fulfillment/interfaces/consumer.go
package interfaces

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/pkg/mq"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// messageProcessor 反序列化消息并调用应用服务。
// 返回错误意味着这条消息要移交给 FailureHandler（重试主题或死信）。
type messageProcessor func(ctx context.Context, msg kafka.Message) error

// ConsumerAdapter 是一个驱动适配器：监听 Kafka 主题并驱动应用服务。
// 每个主题一个实例，具体的反序列化和分发逻辑由 processor 决定。
type ConsumerAdapter struct {
	reader    *kafka.Reader
	processor messageProcessor
	wg        sync.WaitGroup
	stopped   atomic.Bool // Stop 和消费 goroutine 并发读写

	failureHandler *mq.FailureHandler
	delay          time.Duration // 重试主题的退避延迟
}

// NewConsumerAdapter 创建一个新的Kafka消费者适配器。
func NewConsumerAdapter(reader *kafka.Reader, processor messageProcessor, failureHandler *mq.FailureHandler) *ConsumerAdapter {
	return &ConsumerAdapter{
		reader:         reader,
		processor:      processor,
		failureHandler: failureHandler,
	}
}

// SetDelay 让消息在写入时间之后延迟 d 才被处理，用于重试主题的退避。
func (a *ConsumerAdapter) SetDelay(d time.Duration) {
	a.delay = d
}

// Start 开始监听Kafka主题。这是一个长期运行的方法。
func (a *ConsumerAdapter) Start(ctx context.Context) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Ctx(ctx).Printf("✅ Kafka Consumer Adapter started for topic '%s'.", a.reader.Config().Topic)
		for {
			if a.stopped.Load() {
				return
			}
			// 使用FetchMessage而不是ReadMessage，以便更好地控制退出逻辑
			msg, err := a.reader.FetchMessage(ctx)
			if err != nil {
				// 如果是上下文取消导致的错误，则正常退出
				if ctx.Err() != nil {
					logger.Ctx(ctx).Error().Err(ctx.Err()).Msg("🛑 Kafka Consumer Adapter shutting down.")
					return
				}
				logger.Ctx(ctx).Printf("ERROR: could not read message: %v. Retrying...", err)
				time.Sleep(1 * time.Second) // 避免快速失败循环
				continue
			}

			// 延迟处理逻辑：重试消息按写入时间加退避窗口投递
			if a.delay > 0 {
				deliveryTime := msg.Time.Add(a.delay)
				if wait := time.Until(deliveryTime); wait > 0 {
					time.Sleep(wait)
				}
			}

			propagator := otel.GetTextMapPropagator()
			headerCarrier := mq.KafkaHeaderCarrier(msg.Headers)
			newCtx := propagator.Extract(ctx, &headerCarrier)

			processingErr := a.processor(newCtx, msg)

			if processingErr != nil {
				// 处理失败：移交给FailureHandler（重试主题或死信）
				a.failureHandler.Handle(newCtx, msg, processingErr)
			}

			// 无论成功或失败（已移交），都提交Offset
			if err := a.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("Failed to commit messages")
			}
		}
	}()
	return nil
}

// Stop 优雅地停止消费者。
func (a *ConsumerAdapter) Stop(ctx context.Context) {
	a.stopped.Store(true)
	a.reader.Close()
	a.wg.Wait()
	logger.Ctx(ctx).Printf("✅ Kafka Consumer Adapter stopped.")
}
