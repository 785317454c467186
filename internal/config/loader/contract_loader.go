package loader

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"sigtrade/internal/logger"
	"sigtrade/internal/types"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// contractEntry 是配置文件中单个合约的原始结构。
type contractEntry struct {
	ExchangeSymbol     string  `mapstructure:"exchange_symbol"`
	Name               string  `mapstructure:"name"`
	PricePrecision     int32   `mapstructure:"price_precision"`
	SizePrecision      int32   `mapstructure:"size_precision"`
	MinSize            string  `mapstructure:"min_size"`
	SizeIncrement      string  `mapstructure:"size_increment"`
	DefaultQuantity    string  `mapstructure:"default_quantity"`
	StopLossPercentage float64 `mapstructure:"stop_loss_percentage"`
	StopLossSlippage   float64 `mapstructure:"stop_loss_slippage"`
	Active             *bool   `mapstructure:"active"`
}

type fileConfig struct {
	Contracts map[string]contractEntry `mapstructure:"contracts"`
}

// ContractSnapshot 对外暴露的只读快照。
type ContractSnapshot struct {
	Version   int64
	LoadedAt  time.Time
	Contracts map[string]types.ContractConfig
}

// Get 按交易对符号查找合约配置（大小写不敏感）。
func (s ContractSnapshot) Get(symbol string) (types.ContractConfig, bool) {
	c, ok := s.Contracts[strings.ToUpper(strings.TrimSpace(symbol))]
	return c, ok
}

// ChangeListener 在合约配置变更时被调用。
type ChangeListener func(ContractSnapshot)

// ContractLoader 从 YAML 文件加载合约参数，并监听热更新。
// 修改配置文件即可调整止损比例、默认下单量等参数，无需重启进程。
type ContractLoader struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  ContractSnapshot
	listeners []ChangeListener
}

// NewContractLoader 读取合约配置文件并开始监听 FS 事件。
func NewContractLoader(path string) (*ContractLoader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("contract loader requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read contract config failed: %w", err)
	}
	l := &ContractLoader{path: path, v: v}
	if err := l.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := l.reload(); err != nil {
			logger.Errorf("contract reload failed (%s): %v", evt.Name, err)
			return
		}
		l.notify()
	})
	v.WatchConfig()
	return l, nil
}

// Snapshot 返回当前配置快照（深拷贝）。
func (l *ContractLoader) Snapshot() ContractSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneSnapshot(l.snapshot)
}

// Lookup 查找单个合约配置，未配置或已停用时返回 false。
func (l *ContractLoader) Lookup(symbol string) (types.ContractConfig, bool) {
	snap := l.Snapshot()
	c, ok := snap.Get(symbol)
	if !ok || !c.Active {
		return types.ContractConfig{}, false
	}
	return c, true
}

// Subscribe 注册监听器，并立即收到一次完整快照。
func (l *ContractLoader) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	snap := cloneSnapshot(l.snapshot)
	l.mu.Unlock()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("contract listener panic: %v", r)
			}
		}()
		fn(snap)
	}()
}

func (l *ContractLoader) notify() {
	l.mu.RLock()
	snap := cloneSnapshot(l.snapshot)
	listeners := append([]ChangeListener(nil), l.listeners...)
	l.mu.RUnlock()
	for _, fn := range listeners {
		if fn == nil {
			continue
		}
		go func(cb ChangeListener) {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("contract listener panic: %v", r)
				}
			}()
			cb(snap)
		}(fn)
	}
}

func (l *ContractLoader) reload() error {
	var fileCfg fileConfig
	if err := l.v.Unmarshal(&fileCfg); err != nil {
		return fmt.Errorf("parse contract config failed: %w", err)
	}
	normalized := make(map[string]types.ContractConfig, len(fileCfg.Contracts))
	for symbol, entry := range fileCfg.Contracts {
		cc, err := normalizeContract(symbol, entry)
		if err != nil {
			return fmt.Errorf("contract %s: %w", symbol, err)
		}
		normalized[cc.Symbol] = cc
	}
	l.mu.Lock()
	l.snapshot = ContractSnapshot{
		Version:   l.snapshot.Version + 1,
		LoadedAt:  time.Now(),
		Contracts: normalized,
	}
	l.mu.Unlock()
	logger.Infof("Contract loader reloaded %d contracts from %s", len(normalized), filepath.Base(l.path))
	return nil
}

func normalizeContract(symbol string, entry contractEntry) (types.ContractConfig, error) {
	cc := types.ContractConfig{
		Symbol:             strings.ToUpper(strings.TrimSpace(symbol)),
		ExchangeSymbol:     strings.ToUpper(strings.TrimSpace(entry.ExchangeSymbol)),
		Name:               strings.TrimSpace(entry.Name),
		PricePrecision:     entry.PricePrecision,
		SizePrecision:      entry.SizePrecision,
		StopLossPercentage: decimal.NewFromFloat(entry.StopLossPercentage),
		StopLossSlippage:   decimal.NewFromFloat(entry.StopLossSlippage),
		Active:             true,
	}
	if cc.Symbol == "" {
		return cc, fmt.Errorf("symbol cannot be empty")
	}
	if cc.ExchangeSymbol == "" {
		cc.ExchangeSymbol = cc.Symbol
	}
	if entry.Active != nil {
		cc.Active = *entry.Active
	}
	if !cc.StopLossPercentage.IsPositive() {
		// 默认止损比例 10%。
		cc.StopLossPercentage = decimal.NewFromInt(10)
	}
	var err error
	if cc.MinSize, err = parseDecimalField("min_size", entry.MinSize); err != nil {
		return cc, err
	}
	if cc.SizeIncrement, err = parseDecimalField("size_increment", entry.SizeIncrement); err != nil {
		return cc, err
	}
	if cc.DefaultQuantity, err = parseDecimalField("default_quantity", entry.DefaultQuantity); err != nil {
		return cc, err
	}
	if cc.DefaultQuantity.IsZero() {
		return cc, fmt.Errorf("default_quantity is required")
	}
	return cc, nil
}

func parseDecimalField(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s is not a valid decimal: %w", field, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s cannot be negative", field)
	}
	return d, nil
}

func cloneSnapshot(src ContractSnapshot) ContractSnapshot {
	dst := ContractSnapshot{
		Version:   src.Version,
		LoadedAt:  src.LoadedAt,
		Contracts: make(map[string]types.ContractConfig, len(src.Contracts)),
	}
	for k, v := range src.Contracts {
		dst.Contracts[k] = v
	}
	return dst
}
