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

var oneHundred = decimal.NewFromInt(100)

// StopLossTrigger 由成交均价推导止损触发价：
// 按名义价格偏移比例除以杠杆，买入开仓向下偏移，卖出开仓向上偏移。
func StopLossTrigger(side types.Side, avgPrice decimal.Decimal, pct decimal.Decimal, leverage int, contract types.ContractConfig) decimal.Decimal {
	if leverage <= 0 {
		leverage = 1
	}
	offset := avgPrice.Mul(pct).
		Div(oneHundred).
		Div(decimal.NewFromInt(int64(leverage)))
	var trigger decimal.Decimal
	if side == types.SideBuy {
		trigger = avgPrice.Sub(offset)
	} else {
		trigger = avgPrice.Add(offset)
	}
	return contract.RoundPrice(trigger)
}

// placeStopLoss 为已成交的开仓量挂保护性止损单并纳入监控。
func (t *Trader) placeStopLoss(ctx context.Context, parent *types.OrderRecord) {
	if !parent.HasFill() {
		return
	}
	contract, ok := t.contracts.Lookup(parent.Symbol)
	if !ok {
		logger.Errorf("stop-loss skipped: no contract config for %s", parent.Symbol)
		return
	}
	leverage := parent.Leverage
	if leverage <= 0 {
		leverage = t.opts.DefaultLeverage
	}
	avg := parent.AvgPrice
	if !avg.IsPositive() {
		avg = parent.Price
	}
	trigger := StopLossTrigger(parent.Side, avg, contract.StopLossPercentage, leverage, contract)
	limit := trigger
	if contract.StopLossSlippage.IsPositive() {
		slip := trigger.Mul(contract.StopLossSlippage).Div(oneHundred)
		if parent.Side == types.SideBuy {
			limit = contract.RoundPrice(trigger.Sub(slip))
		} else {
			limit = contract.RoundPrice(trigger.Add(slip))
		}
	}

	now := time.Now()
	rec := &types.OrderRecord{
		ID:         uuid.NewString(),
		Symbol:     parent.Symbol,
		Side:       parent.Side.Opposite(),
		Price:      limit,
		Quantity:   parent.FilledQuantity,
		ReduceOnly: true,
		IsStopLoss: true,
		Role:       types.OrderRoleClose,
		Status:     types.OrderStatusPending,
		Leverage:   leverage,
		CreateTime: now,
		UpdateTime: now,
	}
	t.save(rec)

	info, err := t.client.PlaceStopLossOrder(ctx, exchange.StopOrderRequest{
		Symbol:       rec.Symbol,
		Side:         rec.Side,
		Quantity:     rec.Quantity,
		TriggerPrice: trigger,
		LimitPrice:   limit,
		ReduceOnly:   true,
		ClientID:     rec.ID,
	})
	if err != nil {
		t.markFailed(rec, err)
		logger.Errorf("stop-loss for order %s failed: %v", parent.ID, err)
		return
	}
	rec.ExchangeOrderID = info.ExchangeOrderID
	rec.RawPayload = info.RawPayload
	t.transition(rec, info.Status)
	logger.Infof("stop-loss %s placed for order %s: trigger %s qty %s", rec.ID, parent.ID, trigger, rec.Quantity)
	t.notify.SendText(notifier.StopLossPlacedMessage(rec, trigger.String()))

	if rec.Status.Terminal() {
		t.onTerminal(ctx, rec)
		return
	}
	t.Supervise(ctx, rec)
}
