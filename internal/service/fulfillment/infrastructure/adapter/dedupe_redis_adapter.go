package adapter

import (
	"context"
	"fmt"
	"time"

	"bazaar/internal/pkg/redis"
)

// DedupeRedisAdapter 是 port.DeliveryGuard 接口的 Redis 实现。
// SETNX 打标：第一次投递设置成功，之后的重复投递看到已有标记。
// 标记带 TTL，只需要覆盖 Kafka 重投的时间窗口，不追求永久去重——
// 状态守卫兜底窗口之外的重复。
type DedupeRedisAdapter struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewDedupeRedisAdapter 创建一个新的幂等守卫适配器实例。
func NewDedupeRedisAdapter(redisClient *redis.Client, ttl time.Duration) *DedupeRedisAdapter {
	return &DedupeRedisAdapter{redisClient: redisClient, ttl: ttl}
}

// FirstDelivery 对事件 id 打标，返回 true 表示首次投递。
func (a *DedupeRedisAdapter) FirstDelivery(ctx context.Context, eventID string) (bool, error) {
	key := fmt.Sprintf("fulfillment:dedupe:{%s}", eventID)
	first, err := a.redisClient.SetNX(ctx, key, "1", a.ttl)
	if err != nil {
		return false, fmt.Errorf("dedupe adapter failed to mark delivery: %w", err)
	}
	return first, nil
}
