// Package config TOML 配置加载，支持默认值和 HESTON_ 前缀的环境变量覆盖
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"hestonq.com/pkg/logger"
)

// EnvPrefix 环境变量前缀，例如 HESTON_HTTP_PORT 覆盖 http.port
const EnvPrefix = "HESTON"

// Config 服务配置
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	// 环境：dev, staging, prod
	Environment string `mapstructure:"environment"`

	HTTP       HTTPConfig       `mapstructure:"http"`
	GRPC       GRPCConfig       `mapstructure:"grpc"`
	Logger     logger.Config    `mapstructure:"logger"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Snowflake  SnowflakeConfig  `mapstructure:"snowflake"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// 单个请求的处理超时，超过返回 504
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Addr 监听地址
func (c HTTPConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// GRPCConfig gRPC 服务配置
type GRPCConfig struct {
	Host                 string `mapstructure:"host"`
	Port                 int    `mapstructure:"port"`
	MaxConcurrentStreams uint32 `mapstructure:"max_concurrent_streams"`
}

// Addr 监听地址
func (c GRPCConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// SimulationConfig 模拟引擎和服务层限额
type SimulationConfig struct {
	// 并发块数，0 表示 GOMAXPROCS
	Workers int `mapstructure:"workers"`
	// 每块路径数
	BlockSize int `mapstructure:"block_size"`
	// 保留完整轨迹的路径数
	VisualizedPaths int `mapstructure:"visualized_paths"`
	// 单次请求的路径数上限
	MaxPaths int `mapstructure:"max_paths"`
	// 单次请求的时间步数上限
	MaxTimeSteps int `mapstructure:"max_time_steps"`
	// 路径数 × 时间步数上限
	MaxTotalSteps int64 `mapstructure:"max_total_steps"`
	// 单次模拟超时
	Timeout time.Duration `mapstructure:"timeout"`
}

// RedisConfig 结果缓存
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// NATSConfig 完成事件和请求/应答
type NATSConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	URL              string `mapstructure:"url"`
	CompletedSubject string `mapstructure:"completed_subject"`
	RequestSubject   string `mapstructure:"request_subject"`
	QueueGroup       string `mapstructure:"queue_group"`
}

// KafkaConfig 完成事件和模拟请求队列
type KafkaConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Brokers        []string `mapstructure:"brokers"`
	CompletedTopic string   `mapstructure:"completed_topic"`
	RequestTopic   string   `mapstructure:"request_topic"`
	GroupID        string   `mapstructure:"group_id"`
	Compression    string   `mapstructure:"compression"`
	RequiredAcks   int      `mapstructure:"required_acks"`
}

// SnowflakeConfig 运行 ID 生成器
type SnowflakeConfig struct {
	// 节点 ID (0-1023)
	NodeID int64 `mapstructure:"node_id"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load 加载配置。path 为空时只使用默认值和环境变量。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	var errs []error

	if c.ServiceName == "" {
		errs = append(errs, errors.New("service_name is required"))
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port))
	}
	if c.GRPC.Port <= 0 || c.GRPC.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid gRPC port: %d", c.GRPC.Port))
	}

	s := c.Simulation
	if s.MaxPaths < 1 || s.MaxTimeSteps < 1 || s.MaxTotalSteps < 1 {
		errs = append(errs, fmt.Errorf("simulation limits must be positive: max_paths=%d max_time_steps=%d max_total_steps=%d",
			s.MaxPaths, s.MaxTimeSteps, s.MaxTotalSteps))
	}
	if s.Workers < 0 || s.BlockSize < 0 || s.VisualizedPaths < 0 {
		errs = append(errs, errors.New("simulation workers, block_size and visualized_paths must not be negative"))
	}
	if c.Snowflake.NodeID < 0 || c.Snowflake.NodeID > 1023 {
		errs = append(errs, fmt.Errorf("snowflake node_id out of range: %d", c.Snowflake.NodeID))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka enabled without brokers"))
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, errors.New("nats enabled without url"))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis enabled without addr"))
	}

	return errors.Join(errs...)
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "heston-pricer")
	v.SetDefault("environment", "dev")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8000)
	v.SetDefault("http.read_timeout", "30s")
	v.SetDefault("http.write_timeout", "60s")
	v.SetDefault("http.request_timeout", "30s")

	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)
	v.SetDefault("grpc.max_concurrent_streams", 1000)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/heston.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", false)

	v.SetDefault("simulation.workers", 0)
	v.SetDefault("simulation.block_size", 2048)
	v.SetDefault("simulation.visualized_paths", 50)
	v.SetDefault("simulation.max_paths", 2_000_000)
	v.SetDefault("simulation.max_time_steps", 1000)
	v.SetDefault("simulation.max_total_steps", int64(200_000_000))
	v.SetDefault("simulation.timeout", "25s")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "1h")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.completed_subject", "heston.simulation.completed")
	v.SetDefault("nats.request_subject", "heston.simulate")
	v.SetDefault("nats.queue_group", "heston-workers")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.completed_topic", "heston.simulation.completed")
	v.SetDefault("kafka.request_topic", "heston.simulation.requests")
	v.SetDefault("kafka.group_id", "heston-workers")
	v.SetDefault("kafka.compression", "snappy")
	v.SetDefault("kafka.required_acks", 1)

	v.SetDefault("snowflake.node_id", 1)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
