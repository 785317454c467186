package config

import "strings"

// 默认值常量，监控与撤单参数沿用线上运行多年的老系统配置。
const (
	defaultAppEnv        = "dev"
	defaultAppLogLevel   = "info"
	defaultAppLogPath    = "data/logs/sigtrade.log"
	defaultHTTPAddr      = ":9985"
	defaultExchangeName  = "binance"
	defaultExchangeTO    = 10
	defaultLeverage      = 10
	defaultRateLimit     = 8.0
	defaultCancelTimeout = 180
	defaultRetryInterval = 5
	defaultMaxRetries    = 2
	defaultInitialIntvl  = 5
	defaultNormalIntvl   = 10
	defaultIntensiveIntv = 2
	defaultIntensiveThr  = 10
	defaultMaxConcurrent = 20
	defaultMaxWorkers    = 5
	defaultMaxQueueSize  = 1000
	defaultPersistQueue  = 1000
	defaultPersistGrace  = 30
	defaultStorePath     = "data/db/sigtrade.db"
	defaultContractsPath = "configs/contracts.yaml"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Server.applyDefaults(keys)
	c.Exchange.applyDefaults(keys)
	c.Orders.applyDefaults(keys)
	c.Monitor.applyDefaults(keys)
	c.Admission.applyDefaults(keys)
	c.Persist.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	applyFieldDefaults(keys,
		stringFieldDefault("contracts_path", &c.ContractsPath, defaultContractsPath),
	)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (s *ServerConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("server.http_addr", &s.HTTPAddr, defaultHTTPAddr),
	)
}

func (e *ExchangeConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("exchange.name", &e.Name, defaultExchangeName),
		fieldDefault{
			key:   "exchange.timeout_seconds",
			need:  func() bool { return e.TimeoutSeconds <= 0 },
			apply: func() { e.TimeoutSeconds = defaultExchangeTO },
		},
		fieldDefault{
			key:   "exchange.default_leverage",
			need:  func() bool { return e.DefaultLeverage <= 0 },
			apply: func() { e.DefaultLeverage = defaultLeverage },
		},
		fieldDefault{
			key:   "exchange.rate_limit_per_second",
			need:  func() bool { return e.RateLimitPerSecond <= 0 },
			apply: func() { e.RateLimitPerSecond = defaultRateLimit },
		},
	)
}

func (o *OrdersConfig) applyDefaults(keys keySet) {
	if o == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "orders.cancel_timeout",
			need:  func() bool { return o.CancelTimeoutSeconds <= 0 },
			apply: func() { o.CancelTimeoutSeconds = defaultCancelTimeout },
		},
		fieldDefault{
			key:   "orders.retry_interval",
			need:  func() bool { return o.RetryIntervalSeconds <= 0 },
			apply: func() { o.RetryIntervalSeconds = defaultRetryInterval },
		},
		fieldDefault{
			key:   "orders.max_retries",
			need:  func() bool { return o.MaxRetries <= 0 },
			apply: func() { o.MaxRetries = defaultMaxRetries },
		},
	)
}

func (m *MonitorConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "monitor.initial_interval",
			need:  func() bool { return m.InitialIntervalSeconds <= 0 },
			apply: func() { m.InitialIntervalSeconds = defaultInitialIntvl },
		},
		fieldDefault{
			key:   "monitor.normal_interval",
			need:  func() bool { return m.NormalIntervalSeconds <= 0 },
			apply: func() { m.NormalIntervalSeconds = defaultNormalIntvl },
		},
		fieldDefault{
			key:   "monitor.intensive_interval",
			need:  func() bool { return m.IntensiveIntervalSeconds <= 0 },
			apply: func() { m.IntensiveIntervalSeconds = defaultIntensiveIntv },
		},
		fieldDefault{
			key:   "monitor.intensive_threshold",
			need:  func() bool { return m.IntensiveThresholdSecs <= 0 },
			apply: func() { m.IntensiveThresholdSecs = defaultIntensiveThr },
		},
		fieldDefault{
			key:   "monitor.max_concurrent",
			need:  func() bool { return m.MaxConcurrent <= 0 },
			apply: func() { m.MaxConcurrent = defaultMaxConcurrent },
		},
	)
}

func (a *AdmissionConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "admission.max_workers",
			need:  func() bool { return a.MaxWorkers <= 0 },
			apply: func() { a.MaxWorkers = defaultMaxWorkers },
		},
		fieldDefault{
			key:   "admission.max_queue_size",
			need:  func() bool { return a.MaxQueueSize <= 0 },
			apply: func() { a.MaxQueueSize = defaultMaxQueueSize },
		},
	)
}

func (p *PersistConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "persist.queue_size",
			need:  func() bool { return p.QueueSize <= 0 },
			apply: func() { p.QueueSize = defaultPersistQueue },
		},
		fieldDefault{
			key:   "persist.shutdown_grace_seconds",
			need:  func() bool { return p.ShutdownGraceSeconds <= 0 },
			apply: func() { p.ShutdownGraceSeconds = defaultPersistGrace },
		},
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.path", &s.Path, defaultStorePath),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
