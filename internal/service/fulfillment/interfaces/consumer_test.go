package interfaces

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

// Stop 与消费 goroutine 并发执行，-race 下必须干净退出。
func TestConsumerAdapterStopsCleanly(t *testing.T) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{"127.0.0.1:1"}, // 不可达，FetchMessage 会一直阻塞在重连上
		GroupID: "test-group",
		Topic:   "test-topic",
	})
	adapter := NewConsumerAdapter(reader, func(ctx context.Context, msg kafka.Message) error {
		return nil
	}, nil)

	require.NoError(t, adapter.Start(context.Background()))

	done := make(chan struct{})
	go func() {
		adapter.Stop(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer goroutine did not exit after Stop")
	}
}
