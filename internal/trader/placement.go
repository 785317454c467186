package trader

import (
	"context"
	"time"

	"sigtrade/internal/gateway/exchange"
	"sigtrade/internal/gateway/notifier"
	"sigtrade/internal/logger"
	"sigtrade/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HandleSignal 将一条有效信号转换为订单并启动监控。
// 仓位决定下单语义：反向持仓 -> 挂 reduce-only 平仓单；
// 同向持仓 -> 跳过；无持仓 -> 按合约默认数量开仓。
func (t *Trader) HandleSignal(ctx context.Context, sig *types.Signal) {
	if sig == nil {
		return
	}
	if !sig.ContractType.Tradable() {
		logger.Debugf("signal %d (%s) is not a crypto contract, skip trading", sig.ID, sig.Symbol)
		return
	}
	contract, ok := t.contracts.Lookup(sig.Symbol)
	if !ok {
		logger.Warnf("no contract config for %s, signal %d skipped", sig.Symbol, sig.ID)
		return
	}

	pos, err := t.client.GetPosition(ctx, contract.ExchangeSymbol)
	if err != nil {
		logger.Errorf("query position for %s failed: %v", contract.ExchangeSymbol, err)
		t.notify.SendText(notifier.OrderEvent{
			Icon: "⚠️", Title: "查询持仓失败",
			Fields: [][2]string{{"交易对", sig.Symbol}, {"错误", err.Error()}},
		}.Render())
		return
	}

	req, role, ok := t.buildRequest(sig, contract, pos)
	if !ok {
		return
	}
	if role == types.OrderRoleOpen {
		if !t.marginSufficient(ctx, req, contract) {
			return
		}
	}
	t.placeAndSupervise(ctx, req, role, sig)
}

// buildRequest 根据当前持仓产出下单请求。第三个返回值为 false 表示无需下单。
func (t *Trader) buildRequest(sig *types.Signal, contract types.ContractConfig, pos *types.Position) (exchange.OrderRequest, types.OrderRole, bool) {
	price := contract.RoundPrice(sig.Price)
	if pos != nil && !pos.Size.IsZero() {
		sameDirection := (pos.IsLong() && sig.Side == types.SideBuy) ||
			(!pos.IsLong() && sig.Side == types.SideSell)
		if sameDirection {
			logger.Infof("already positioned %s on %s, signal %d skipped", sig.Side, sig.Symbol, sig.ID)
			return exchange.OrderRequest{}, "", false
		}
		// 反向信号：平掉现有仓位。
		qty := contract.RoundSize(pos.Size.Abs())
		return exchange.OrderRequest{
			Symbol:     contract.ExchangeSymbol,
			Side:       sig.Side,
			Quantity:   qty,
			Price:      price,
			ReduceOnly: true,
		}, types.OrderRoleClose, true
	}

	qty := contract.RoundSize(contract.DefaultQuantity)
	if contract.MinSize.IsPositive() && qty.LessThan(contract.MinSize) {
		logger.Errorf("default quantity %s below min size %s for %s", qty, contract.MinSize, sig.Symbol)
		return exchange.OrderRequest{}, "", false
	}
	return exchange.OrderRequest{
		Symbol:   contract.ExchangeSymbol,
		Side:     sig.Side,
		Quantity: qty,
		Price:    price,
	}, types.OrderRoleOpen, true
}

// marginSufficient 开仓前做保证金预检，查询失败时放行交给交易所判定。
func (t *Trader) marginSufficient(ctx context.Context, req exchange.OrderRequest, contract types.ContractConfig) bool {
	equity, err := t.client.GetAccountEquity(ctx)
	if err != nil {
		logger.Warnf("equity check failed for %s, proceeding anyway: %v", req.Symbol, err)
		return true
	}
	required := req.Price.Mul(req.Quantity).DivRound(decimal.NewFromInt(int64(t.opts.DefaultLeverage)), 8)
	if equity.LessThan(required) {
		logger.Errorf("insufficient margin for %s: need %s, have %s", req.Symbol, required, equity)
		t.notify.SendText(notifier.OrderEvent{
			Icon: "💸", Title: "保证金不足",
			Fields: [][2]string{
				{"交易对", req.Symbol},
				{"需要", required.String()},
				{"可用", equity.String()},
			},
		}.Render())
		return false
	}
	return true
}

// placeAndSupervise 建档、下单并移交监控协程。
func (t *Trader) placeAndSupervise(ctx context.Context, req exchange.OrderRequest, role types.OrderRole, sig *types.Signal) {
	now := time.Now()
	rec := &types.OrderRecord{
		ID:         uuid.NewString(),
		Symbol:     req.Symbol,
		Side:       req.Side,
		Price:      req.Price,
		Quantity:   req.Quantity,
		ReduceOnly: req.ReduceOnly,
		Role:       role,
		Status:     types.OrderStatusPending,
		Leverage:   t.opts.DefaultLeverage,
		CreateTime: now,
		UpdateTime: now,
	}
	req.ClientID = rec.ID
	t.save(rec)

	info, err := t.client.PlaceOrder(ctx, req)
	if err != nil {
		t.markFailed(rec, err)
		return
	}
	rec.ExchangeOrderID = info.ExchangeOrderID
	rec.RawPayload = info.RawPayload
	t.transition(rec, info.Status)
	logger.Infof("order %s placed: %s %s %s@%s (role=%s)", rec.ID, rec.Symbol, rec.Side, rec.Quantity, rec.Price, role)

	if rec.Status.Terminal() {
		t.onTerminal(ctx, rec)
		return
	}
	t.Supervise(ctx, rec)
}

func (t *Trader) markFailed(rec *types.OrderRecord, err error) {
	kind := exchange.KindOf(err)
	next := types.OrderStatusFailed
	if kind == exchange.ErrKindInsufficientMargin || kind == exchange.ErrKindInvalidOrder || kind == exchange.ErrKindNoPosition {
		next = types.OrderStatusRejected
	}
	t.transition(rec, next)
	logger.Errorf("place order %s (%s %s) failed: %v", rec.ID, rec.Symbol, rec.Side, err)
	t.notify.SendText(notifier.FailedMessage(rec, kind.String()))
}

// transition 应用一次状态迁移并异步落库；非法迁移丢弃并告警。
func (t *Trader) transition(rec *types.OrderRecord, next types.OrderStatus) {
	if !rec.Status.CanTransition(next) {
		logger.Warnf("order %s: illegal transition %s -> %s dropped", rec.ID, rec.Status, next)
		return
	}
	rec.Status = next
	rec.UpdateTime = time.Now()
	if next == types.OrderStatusFilled && rec.FilledTime == nil {
		now := rec.UpdateTime
		rec.FilledTime = &now
	}
	t.save(rec)
}
