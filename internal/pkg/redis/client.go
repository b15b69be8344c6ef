// internal/pkg/redis/client.go
package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client 封装了 go-redis 的 UniversalClient，
// 单节点和集群地址都可以用同一套构造逻辑。
type Client struct {
	client redis.UniversalClient
}

// NewClient 创建一个 Redis 客户端。addrs 格式为 "ip1:port1,ip2:port2"。
func NewClient(addrs string) (*Client, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: strings.Split(addrs, ","),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addrs, err)
	}

	return &Client{client: client}, nil
}

// GetClient 返回底层的 UniversalClient，供需要原生 API 的调用方使用。
func (c *Client) GetClient() redis.UniversalClient {
	return c.client
}

// SetNX 仅当 key 不存在时写入，返回是否写入成功。
func (c *Client) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, value, ttl).Result()
}

// Close 关闭底层连接。
func (c *Client) Close() error {
	return c.client.Close()
}
