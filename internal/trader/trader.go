// Package trader 负责信号到订单的转换与订单生命周期监控。
// 每个在途订单由唯一一个监控协程持有写权，其余组件只读。
package trader

import (
	"sync"
	"time"

	"sigtrade/internal/gateway/exchange"
	"sigtrade/internal/gateway/notifier"
	"sigtrade/internal/logger"
	"sigtrade/internal/persist"
	"sigtrade/internal/types"

	"golang.org/x/sync/semaphore"
)

// ContractSource 按交易对提供下单参数，实现方支持热更新。
type ContractSource interface {
	Lookup(symbol string) (types.ContractConfig, bool)
}

// OrderSaver 异步持久化订单快照。队列满且等待超时后返回错误。
type OrderSaver interface {
	SaveOrder(rec *types.OrderRecord) error
}

// Options 汇总下单与监控参数，时间参数全部显式传入便于测试。
type Options struct {
	CancelTimeout      time.Duration
	RetryInterval      time.Duration
	MaxCancelRetries   int
	InitialInterval    time.Duration
	NormalInterval     time.Duration
	IntensiveInterval  time.Duration
	IntensiveThreshold time.Duration
	MaxConcurrent      int64
	DefaultLeverage    int
}

func (o Options) withDefaults() Options {
	if o.CancelTimeout <= 0 {
		o.CancelTimeout = 180 * time.Second
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 5 * time.Second
	}
	if o.MaxCancelRetries <= 0 {
		o.MaxCancelRetries = 2
	}
	if o.InitialInterval <= 0 {
		o.InitialInterval = 5 * time.Second
	}
	if o.NormalInterval <= 0 {
		o.NormalInterval = 10 * time.Second
	}
	if o.IntensiveInterval <= 0 {
		o.IntensiveInterval = 2 * time.Second
	}
	if o.IntensiveThreshold <= 0 {
		o.IntensiveThreshold = 10 * time.Second
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 20
	}
	if o.DefaultLeverage <= 0 {
		o.DefaultLeverage = 10
	}
	return o
}

// Trader 聚合交易所客户端、合约参数与持久化队列。
type Trader struct {
	client    exchange.TradingClient
	contracts ContractSource
	saver     OrderSaver
	notify    notifier.TextNotifier
	opts      Options

	sem *semaphore.Weighted

	mu     sync.Mutex
	active map[string]struct{}

	wg sync.WaitGroup
}

// New 创建 Trader。notify 传 nil 时退化为空通知。
func New(client exchange.TradingClient, contracts ContractSource, saver OrderSaver, notify notifier.TextNotifier, opts Options) *Trader {
	opts = opts.withDefaults()
	if notify == nil {
		notify = notifier.Noop{}
	}
	if saver == nil {
		saver = noopSaver{}
	}
	return &Trader{
		client:    client,
		contracts: contracts,
		saver:     saver,
		notify:    notify,
		opts:      opts,
		sem:       semaphore.NewWeighted(opts.MaxConcurrent),
		active:    make(map[string]struct{}),
	}
}

// ActiveCount 返回当前被监控的订单数。
func (t *Trader) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// Wait 阻塞到所有监控协程退出，停机时调用。
func (t *Trader) Wait() {
	t.wg.Wait()
}

// tryClaim 将订单加入监控去重集合，已存在时返回 false。
func (t *Trader) tryClaim(orderID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.active[orderID]; ok {
		return false
	}
	t.active[orderID] = struct{}{}
	return true
}

func (t *Trader) release(orderID string) {
	t.mu.Lock()
	delete(t.active, orderID)
	t.mu.Unlock()
}

// save 落库失败只记错误，订单内存状态仍然是权威的。
func (t *Trader) save(rec *types.OrderRecord) {
	if err := t.saver.SaveOrder(rec); err != nil {
		logger.Errorf("persist order %s failed: %v", rec.ID, err)
	}
}

type noopSaver struct{}

func (noopSaver) SaveOrder(*types.OrderRecord) error { return nil }

var _ OrderSaver = (*persist.Writer)(nil)
