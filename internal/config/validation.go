package config

import (
	"fmt"
	"strings"
)

func validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	var errs []string
	if err := validateApp(&cfg.App); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateServer(&cfg.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateExchange(&cfg.Exchange); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateOrders(&cfg.Orders); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateMonitor(&cfg.Monitor); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateNotify(&cfg.Notify); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateApp(a *AppConfig) error {
	switch strings.ToLower(a.LogLevel) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("app.log_level must be one of debug/info/warn/error, got %q", a.LogLevel)
	}
}

func validateServer(s *ServerConfig) error {
	if strings.TrimSpace(s.HTTPAddr) == "" {
		return fmt.Errorf("server.http_addr cannot be empty")
	}
	return nil
}

func validateExchange(e *ExchangeConfig) error {
	if strings.ToLower(e.Name) != "binance" {
		return fmt.Errorf("exchange.name %q is not supported", e.Name)
	}
	if strings.TrimSpace(e.APIKey) == "" || strings.TrimSpace(e.APISecret) == "" {
		return fmt.Errorf("exchange.api_key and exchange.api_secret are required")
	}
	if e.DefaultLeverage < 1 || e.DefaultLeverage > 125 {
		return fmt.Errorf("exchange.default_leverage must be within [1, 125], got %d", e.DefaultLeverage)
	}
	return nil
}

func validateOrders(o *OrdersConfig) error {
	// retry_interval 必须留出至少一次重试的空间。
	if o.RetryIntervalSeconds*o.MaxRetries >= o.CancelTimeoutSeconds {
		return fmt.Errorf("orders.retry_interval * orders.max_retries must be smaller than orders.cancel_timeout")
	}
	return nil
}

func validateMonitor(m *MonitorConfig) error {
	if m.IntensiveIntervalSeconds > m.NormalIntervalSeconds {
		return fmt.Errorf("monitor.intensive_interval must not exceed monitor.normal_interval")
	}
	if m.IntensiveThresholdSecs < m.IntensiveIntervalSeconds {
		return fmt.Errorf("monitor.intensive_threshold must be at least monitor.intensive_interval")
	}
	return nil
}

func validateNotify(n *NotifyConfig) error {
	if !n.Telegram.Enabled {
		return nil
	}
	if strings.TrimSpace(n.Telegram.BotToken) == "" || strings.TrimSpace(n.Telegram.ChatID) == "" {
		return fmt.Errorf("notify.telegram.bot_token and notify.telegram.chat_id are required when telegram is enabled")
	}
	return nil
}
