package config

import (
	"strings"
	"time"
)

// Config 是 sigtrade 的主配置载体。
type Config struct {
	App       AppConfig       `toml:"app"`
	Server    ServerConfig    `toml:"server"`
	Exchange  ExchangeConfig  `toml:"exchange"`
	Orders    OrdersConfig    `toml:"orders"`
	Monitor   MonitorConfig   `toml:"monitor"`
	Admission AdmissionConfig `toml:"admission"`
	Persist   PersistConfig   `toml:"persist"`
	Store     StoreConfig     `toml:"store"`
	Notify    NotifyConfig    `toml:"notify"`

	// ContractsPath 指向按币种的合约配置文件（支持热更新）。
	ContractsPath string `toml:"contracts_path"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
}

type ServerConfig struct {
	HTTPAddr      string `toml:"http_addr"`
	WebhookSecret string `toml:"webhook_secret"`
}

type ExchangeConfig struct {
	Name            string `toml:"name"`
	APIKey          string `toml:"api_key"`
	APISecret       string `toml:"api_secret"`
	Testnet         bool   `toml:"testnet"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	DefaultLeverage int    `toml:"default_leverage"`
	// RateLimitPerSecond 适配器侧请求限频，防止触发交易所 ban。
	RateLimitPerSecond float64 `toml:"rate_limit_per_second"`
}

// Timeout 单次交易所调用的超时。
func (e ExchangeConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// OrdersConfig 撤单与重试策略，对应原系统的 ORDER_MANAGEMENT。
type OrdersConfig struct {
	CancelTimeoutSeconds int `toml:"cancel_timeout"`
	RetryIntervalSeconds int `toml:"retry_interval"`
	MaxRetries           int `toml:"max_retries"`
}

func (o OrdersConfig) CancelTimeout() time.Duration {
	return time.Duration(o.CancelTimeoutSeconds) * time.Second
}

func (o OrdersConfig) RetryInterval() time.Duration {
	return time.Duration(o.RetryIntervalSeconds) * time.Second
}

// MonitorConfig 订单监控轮询参数。
type MonitorConfig struct {
	InitialIntervalSeconds   int `toml:"initial_interval"`
	NormalIntervalSeconds    int `toml:"normal_interval"`
	IntensiveIntervalSeconds int `toml:"intensive_interval"`
	IntensiveThresholdSecs   int `toml:"intensive_threshold"`
	MaxConcurrent            int `toml:"max_concurrent"`
}

func (m MonitorConfig) InitialInterval() time.Duration {
	return time.Duration(m.InitialIntervalSeconds) * time.Second
}

func (m MonitorConfig) NormalInterval() time.Duration {
	return time.Duration(m.NormalIntervalSeconds) * time.Second
}

func (m MonitorConfig) IntensiveInterval() time.Duration {
	return time.Duration(m.IntensiveIntervalSeconds) * time.Second
}

func (m MonitorConfig) IntensiveThreshold() time.Duration {
	return time.Duration(m.IntensiveThresholdSecs) * time.Second
}

// AdmissionConfig 信号准入队列参数。
type AdmissionConfig struct {
	MaxWorkers   int `toml:"max_workers"`
	MaxQueueSize int `toml:"max_queue_size"`
}

// PersistConfig 异步持久化队列参数。
type PersistConfig struct {
	QueueSize            int `toml:"queue_size"`
	ShutdownGraceSeconds int `toml:"shutdown_grace_seconds"`
}

func (p PersistConfig) ShutdownGrace() time.Duration {
	return time.Duration(p.ShutdownGraceSeconds) * time.Second
}

type StoreConfig struct {
	Path string `toml:"path"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
