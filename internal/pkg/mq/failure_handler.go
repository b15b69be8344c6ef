// internal/pkg/mq/failure_handler.go
package mq

import (
	"context"
	"fmt"
	"strconv"

	"bazaar/internal/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// 死信消息携带的诊断头，供 DLT 消费者记录分析。
const (
	HeaderOriginalTopic     = "x-original-topic"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
	HeaderRetryCount        = "x-retry-count"
	HeaderExceptionFqcn     = "x-exception-type"
	HeaderExceptionMessage  = "x-exception-message"
)

// FailureHandler 负责处理消费失败的消息：
// 未达到最大重试次数的消息进入 retry 主题延迟重投，
// 超过次数的消息移交 DLT，保证主消费循环永不被毒消息阻塞。
type FailureHandler struct {
	retryWriter *kafka.Writer
	dltWriter   *kafka.Writer
	maxRetries  int
}

func NewFailureHandler(retryWriter, dltWriter *kafka.Writer, maxRetries int) *FailureHandler {
	return &FailureHandler{
		retryWriter: retryWriter,
		dltWriter:   dltWriter,
		maxRetries:  maxRetries,
	}
}

// Handle 根据消息已重试的次数决定重投还是移交死信队列。
func (f *FailureHandler) Handle(ctx context.Context, msg kafka.Message, cause error) {
	retryCount := f.retryCountOf(msg)

	forwarded := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafka.Header{Key: HeaderOriginalTopic, Value: []byte(msg.Topic)},
			kafka.Header{Key: HeaderOriginalPartition, Value: []byte(strconv.Itoa(msg.Partition))},
			kafka.Header{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
			kafka.Header{Key: HeaderRetryCount, Value: []byte(strconv.Itoa(retryCount + 1))},
			kafka.Header{Key: HeaderExceptionFqcn, Value: []byte(fmt.Sprintf("%T", cause))},
			kafka.Header{Key: HeaderExceptionMessage, Value: []byte(cause.Error())},
		),
	}
	InjectTraceContext(ctx, &forwarded.Headers)

	if retryCount < f.maxRetries && f.retryWriter != nil {
		if err := f.retryWriter.WriteMessages(ctx, forwarded); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("CRITICAL: failed to forward message to retry topic")
		}
		return
	}

	if f.dltWriter == nil {
		logger.Ctx(ctx).Error().Err(cause).Msg("CRITICAL: no DLT configured, poison message dropped")
		return
	}
	if err := f.dltWriter.WriteMessages(ctx, forwarded); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("CRITICAL: failed to forward message to DLT")
		return
	}
	logger.Ctx(ctx).Warn().
		Str("topic", msg.Topic).
		Int("retries", retryCount).
		Err(cause).
		Msg("Message moved to DLT after exhausting retries")
}

func (f *FailureHandler) retryCountOf(msg kafka.Message) int {
	for _, h := range msg.Headers {
		if h.Key == HeaderRetryCount {
			if n, err := strconv.Atoi(string(h.Value)); err == nil {
				return n
			}
		}
	}
	return 0
}
