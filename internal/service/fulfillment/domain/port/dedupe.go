package port

import "context"

// DeliveryGuard 是幂等消费的出站端口。
// Kafka 是 at-least-once 投递，而确认/取消刻意不幂等，
// 所以消费侧必须先判定这条事件是不是第一次见到。
type DeliveryGuard interface {
	// FirstDelivery 对事件 id 打标，返回 true 表示首次投递。
	FirstDelivery(ctx context.Context, eventID string) (bool, error)
}
