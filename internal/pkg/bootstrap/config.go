// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"sync"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/pkg/nacos"

	"gopkg.in/yaml.v3"
)

// Config 是整个进程的配置树，从 Nacos 配置中心以 YAML 形式下发。
// 本地开发时允许所有字段缺省，代码中的 fallback 会兜底。
type Config struct {
	Infra struct {
		Jaeger struct {
			Endpoint string `yaml:"endpoint"`
		} `yaml:"jaeger"`
		Kafka struct {
			Brokers string `yaml:"brokers"`
		} `yaml:"kafka"`
		Mysql struct {
			DSN string `yaml:"dsn"`
		} `yaml:"mysql"`
		Redis struct {
			Addrs string `yaml:"addrs"`
		} `yaml:"redis"`
		Zookeeper struct {
			Servers string `yaml:"servers"`
		} `yaml:"zookeeper"`
	} `yaml:"infra"`

	App struct {
		Reservation struct {
			TTLMinutes       int `yaml:"ttlMinutes"`       // 预占的保留时长
			SweepIntervalSec int `yaml:"sweepIntervalSec"` // 过期清扫周期
			MaxRetries       int `yaml:"maxRetries"`       // 乐观锁冲突的最大重试次数
		} `yaml:"reservation"`
		FeatureFlags struct {
			EnableNotifications bool `yaml:"enableNotifications"`
		} `yaml:"featureFlags"`
	} `yaml:"app"`
}

var (
	currentConfig Config
	configOnce    sync.Once
)

func defaultConfig() Config {
	var cfg Config
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces")
	cfg.Infra.Kafka.Brokers = getEnv("KAFKA_BROKERS", "localhost:9092")
	cfg.Infra.Mysql.DSN = getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/bazaar?parseTime=true")
	cfg.Infra.Redis.Addrs = getEnv("REDIS_ADDRS", "localhost:6379")
	cfg.Infra.Zookeeper.Servers = getEnv("ZK_SERVERS", "localhost:2181")
	cfg.App.Reservation.TTLMinutes = 30
	cfg.App.Reservation.SweepIntervalSec = 60
	cfg.App.Reservation.MaxRetries = 3
	cfg.App.FeatureFlags.EnableNotifications = true
	return cfg
}

// LoadConfig 从 Nacos 配置中心加载配置并合并到默认值之上。
// Nacos 不可用时退回默认配置，不阻塞服务启动。
func LoadConfig(nacosClient *nacos.Client, dataId string) {
	configOnce.Do(func() {
		cfg := defaultConfig()
		if nacosClient != nil {
			content, err := nacosClient.GetConfig(dataId)
			if err != nil {
				logger.Logger().Warn().Err(err).Str("dataId", dataId).Msg("⚠️ Falling back to default config")
			} else if content != "" {
				if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
					logger.Logger().Error().Err(err).Str("dataId", dataId).Msg("Invalid YAML config from Nacos, using defaults")
					cfg = defaultConfig()
				}
			}
		}
		currentConfig = cfg
	})
}

// GetCurrentConfig 返回进程级配置。未显式加载时返回默认配置。
func GetCurrentConfig() Config {
	configOnce.Do(func() {
		currentConfig = defaultConfig()
	})
	return currentConfig
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
