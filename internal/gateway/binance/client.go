// Package binance 基于 go-binance SDK 实现 exchange.TradingClient（USDT 永续）。
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"sigtrade/internal/gateway/exchange"
	"sigtrade/internal/logger"
	"sigtrade/internal/pkg/circuit"
	"sigtrade/internal/types"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	// 只读查询的有限重试。
	maxReadRetries = 3
	readRetryDelay = 500 * time.Millisecond

	// 订单状态短缓存，抑制多个监控协程的突发查询。
	statusCacheTTL = 2 * time.Second

	// 连续失败 5 次后熔断 30 秒，避免监控协程持续打挂掉的接口。
	breakerThreshold = 5
	breakerTimeout   = 30 * time.Second
)

// Config 适配器配置。
type Config struct {
	APIKey             string
	APISecret          string
	Testnet            bool
	Timeout            time.Duration
	RateLimitPerSecond float64
	DefaultLeverage    int
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RateLimitPerSecond <= 0 {
		c.RateLimitPerSecond = 8
	}
	if c.DefaultLeverage <= 0 {
		c.DefaultLeverage = 10
	}
	return c
}

type cachedState struct {
	state *exchange.OrderState
	at    time.Time
}

// Client 币安合约客户端。
type Client struct {
	cfg     Config
	client  *futures.Client
	limiter *rate.Limiter
	breaker *circuit.Breaker

	cacheMu sync.Mutex
	cache   map[string]cachedState

	levMu    sync.Mutex
	leverage map[string]int
}

var _ exchange.TradingClient = (*Client)(nil)

// New 创建客户端。Testnet 通过 SDK 的全局开关切换。
func New(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.APISecret) == "" {
		return nil, fmt.Errorf("binance: api credentials are required")
	}
	if cfg.Testnet {
		futures.UseTestnet = true
	}
	client := futures.NewClient(cfg.APIKey, cfg.APISecret)
	client.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Client{
		cfg:      cfg,
		client:   client,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), int(cfg.RateLimitPerSecond)+1),
		breaker:  circuit.NewBreaker("binance", breakerThreshold, breakerTimeout),
		cache:    make(map[string]cachedState),
		leverage: make(map[string]int),
	}, nil
}

func (c *Client) Name() string { return "binance" }

func (c *Client) wait(ctx context.Context) error {
	if !c.breaker.Allow() {
		return exchange.NewError("circuit_open", exchange.ErrKindTransient,
			fmt.Errorf("binance api circuit is open"))
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return exchange.NewError("rate_wait", exchange.ErrKindTransient, err)
	}
	return nil
}

// observe 把一次接口调用的结果反馈给熔断器。业务类错误
//（订单不存在、保证金不足等）说明接口本身是通的，计为成功。
func (c *Client) observe(err error) {
	if err == nil {
		c.breaker.RecordSuccess()
		return
	}
	switch exchange.KindOf(err) {
	case exchange.ErrKindTransient, exchange.ErrKindRateLimited, exchange.ErrKindUnknown:
		c.breaker.RecordFailure()
	default:
		c.breaker.RecordSuccess()
	}
}

// ensureLeverage 每个交易对只设置一次杠杆，失败不阻断下单。
func (c *Client) ensureLeverage(ctx context.Context, symbol string, lev int) {
	if lev <= 0 {
		lev = c.cfg.DefaultLeverage
	}
	c.levMu.Lock()
	cur, ok := c.leverage[symbol]
	c.levMu.Unlock()
	if ok && cur == lev {
		return
	}
	_, err := c.client.NewChangeLeverageService().Symbol(symbol).Leverage(lev).Do(ctx)
	if err != nil {
		logger.Warnf("binance: set leverage %dx for %s failed: %v", lev, symbol, err)
		return
	}
	c.levMu.Lock()
	c.leverage[symbol] = lev
	c.levMu.Unlock()
}

// PlaceOrder 下 GTC 限价单。下单失败不在适配器内重试。
func (c *Client) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.OrderInfo, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	c.ensureLeverage(ctx, req.Symbol, 0)

	svc := c.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(sideOf(req.Side)).
		Type(futures.OrderTypeLimit).
		TimeInForce(futures.TimeInForceTypeGTC).
		Price(req.Price.String()).
		Quantity(req.Quantity.String())
	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}
	if req.ClientID != "" {
		svc = svc.NewClientOrderID(req.ClientID)
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		cerr := classify("place_order", err)
		c.observe(cerr)
		return nil, cerr
	}
	c.observe(nil)
	raw, _ := json.Marshal(resp)
	return &exchange.OrderInfo{
		ExchangeOrderID: strconv.FormatInt(resp.OrderID, 10),
		Status:          mapStatus(resp.Status),
		RawPayload:      raw,
	}, nil
}

// PlaceStopLossOrder 下条件止损单。配置了滑点时用 STOP 限价单，
// 否则用 STOP_MARKET 保证触发即成交。
func (c *Client) PlaceStopLossOrder(ctx context.Context, req exchange.StopOrderRequest) (*exchange.OrderInfo, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	svc := c.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(sideOf(req.Side)).
		Quantity(req.Quantity.String()).
		StopPrice(req.TriggerPrice.String()).
		WorkingType(futures.WorkingTypeContractPrice)
	if req.LimitPrice.IsPositive() && !req.LimitPrice.Equal(req.TriggerPrice) {
		svc = svc.Type(futures.OrderTypeStop).
			Price(req.LimitPrice.String()).
			TimeInForce(futures.TimeInForceTypeGTC)
	} else {
		svc = svc.Type(futures.OrderTypeStopMarket)
	}
	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}
	if req.ClientID != "" {
		svc = svc.NewClientOrderID(req.ClientID)
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		cerr := classify("place_stop_order", err)
		c.observe(cerr)
		return nil, cerr
	}
	c.observe(nil)
	raw, _ := json.Marshal(resp)
	return &exchange.OrderInfo{
		ExchangeOrderID: strconv.FormatInt(resp.OrderID, 10),
		Status:          mapStatus(resp.Status),
		RawPayload:      raw,
	}, nil
}

// CancelOrder 撤单。订单已不存在时返回 order_not_found，由调用方判定。
func (c *Client) CancelOrder(ctx context.Context, symbol, exchangeOrderID string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	id, err := strconv.ParseInt(exchangeOrderID, 10, 64)
	if err != nil {
		return exchange.NewError("cancel_order", exchange.ErrKindInvalidOrder, err)
	}
	if _, err := c.client.NewCancelOrderService().Symbol(symbol).OrderID(id).Do(ctx); err != nil {
		cerr := classify("cancel_order", err)
		c.observe(cerr)
		return cerr
	}
	c.observe(nil)
	c.invalidate(symbol, exchangeOrderID)
	return nil
}

// GetOrderStatus 查询订单状态，带 2 秒短缓存与有限重试。
func (c *Client) GetOrderStatus(ctx context.Context, symbol, exchangeOrderID string) (*exchange.OrderState, error) {
	key := symbol + "/" + exchangeOrderID
	c.cacheMu.Lock()
	if entry, ok := c.cache[key]; ok && time.Since(entry.at) < statusCacheTTL {
		state := *entry.state
		c.cacheMu.Unlock()
		return &state, nil
	}
	c.cacheMu.Unlock()

	id, err := strconv.ParseInt(exchangeOrderID, 10, 64)
	if err != nil {
		return nil, exchange.NewError("get_order", exchange.ErrKindInvalidOrder, err)
	}

	var order *futures.Order
	for attempt := 1; ; attempt++ {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		order, err = c.client.NewGetOrderService().Symbol(symbol).OrderID(id).Do(ctx)
		if err == nil {
			c.observe(nil)
			break
		}
		cerr := classify("get_order", err)
		c.observe(cerr)
		if attempt >= maxReadRetries || !exchange.Retryable(cerr) {
			return nil, cerr
		}
		logger.Debugf("binance: get order %s retry %d: %v", exchangeOrderID, attempt, err)
		if !sleepWithContext(ctx, readRetryDelay*time.Duration(attempt)) {
			return nil, exchange.NewError("get_order", exchange.ErrKindTransient, ctx.Err())
		}
	}

	state := &exchange.OrderState{
		Status:    mapStatus(order.Status),
		FilledQty: parseDecimal(order.ExecutedQuantity),
		AvgPrice:  parseDecimal(order.AvgPrice),
		UpdatedAt: order.UpdateTime,
	}
	if state.Status == types.OrderStatusFilled || state.Status == types.OrderStatusPartiallyFilled {
		if fee, err := c.sumFees(ctx, symbol, id, order.Time); err == nil {
			state.Fee = fee
		} else {
			logger.Debugf("binance: fee lookup for order %s failed: %v", exchangeOrderID, err)
		}
	}

	c.cacheMu.Lock()
	c.cache[key] = cachedState{state: state, at: time.Now()}
	c.cacheMu.Unlock()

	snapshot := *state
	return &snapshot, nil
}

// sumFees 汇总该订单的成交手续费。交易所接口按时间窗口返回成交，本地再按订单号过滤。
func (c *Client) sumFees(ctx context.Context, symbol string, orderID, orderTime int64) (decimal.Decimal, error) {
	if err := c.wait(ctx); err != nil {
		return decimal.Zero, err
	}
	svc := c.client.NewListAccountTradeService().Symbol(symbol).Limit(1000)
	if orderTime > 0 {
		svc = svc.StartTime(orderTime)
	}
	trades, err := svc.Do(ctx)
	if err != nil {
		cerr := classify("list_trades", err)
		c.observe(cerr)
		return decimal.Zero, cerr
	}
	c.observe(nil)
	total := decimal.Zero
	for _, t := range trades {
		if t == nil || t.OrderID != orderID {
			continue
		}
		total = total.Add(parseDecimal(t.Commission))
	}
	return total, nil
}

// GetPosition 查询某交易对当前持仓，无持仓返回 (nil, nil)。
func (c *Client) GetPosition(ctx context.Context, symbol string) (*types.Position, error) {
	var risks []*futures.PositionRisk
	var err error
	for attempt := 1; ; attempt++ {
		if werr := c.wait(ctx); werr != nil {
			return nil, werr
		}
		risks, err = c.client.NewGetPositionRiskService().Symbol(symbol).Do(ctx)
		if err == nil {
			c.observe(nil)
			break
		}
		cerr := classify("get_position", err)
		c.observe(cerr)
		if attempt >= maxReadRetries || !exchange.Retryable(cerr) {
			return nil, cerr
		}
		if !sleepWithContext(ctx, readRetryDelay*time.Duration(attempt)) {
			return nil, exchange.NewError("get_position", exchange.ErrKindTransient, ctx.Err())
		}
	}
	for _, r := range risks {
		if r == nil {
			continue
		}
		amt := parseDecimal(r.PositionAmt)
		if amt.IsZero() {
			continue
		}
		lev, _ := strconv.Atoi(strings.TrimSpace(r.Leverage))
		return &types.Position{
			Symbol:     symbol,
			Size:       amt,
			EntryPrice: parseDecimal(r.EntryPrice),
			Leverage:   lev,
		}, nil
	}
	return nil, nil
}

// GetAccountEquity 返回账户保证金余额（USDT 本位）。
func (c *Client) GetAccountEquity(ctx context.Context) (decimal.Decimal, error) {
	if err := c.wait(ctx); err != nil {
		return decimal.Zero, err
	}
	acct, err := c.client.NewGetAccountService().Do(ctx)
	if err != nil {
		cerr := classify("get_account", err)
		c.observe(cerr)
		return decimal.Zero, cerr
	}
	c.observe(nil)
	return parseDecimal(acct.TotalMarginBalance), nil
}

func (c *Client) invalidate(symbol, exchangeOrderID string) {
	c.cacheMu.Lock()
	delete(c.cache, symbol+"/"+exchangeOrderID)
	c.cacheMu.Unlock()
}

func sideOf(s types.Side) futures.SideType {
	if s == types.SideBuy {
		return futures.SideTypeBuy
	}
	return futures.SideTypeSell
}

func parseDecimal(raw string) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
