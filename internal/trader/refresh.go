package trader

import (
	"context"
	"fmt"

	"sigtrade/internal/types"
)

// OrderFinder 按内部订单号取订单。
type OrderFinder interface {
	FindByID(ctx context.Context, orderID string) (*types.OrderRecord, error)
}

// RefreshOrder 拉取交易所最新状态并回写订单，幂等：
// 重复刷新已终结的订单不会产生额外迁移。手动补偿接口使用。
func (t *Trader) RefreshOrder(ctx context.Context, orders OrderFinder, orderID string) (*types.OrderRecord, error) {
	rec, err := orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("order %s not found", orderID)
	}
	if rec.ExchangeOrderID == "" {
		return rec, fmt.Errorf("order %s was never submitted", orderID)
	}
	// 监控协程在场时不抢写权，直接返回当前快照。
	t.mu.Lock()
	_, supervised := t.active[rec.ID]
	t.mu.Unlock()
	if supervised {
		return rec, nil
	}
	state, err := t.client.GetOrderStatus(ctx, rec.Symbol, rec.ExchangeOrderID)
	if err != nil {
		return rec, err
	}
	t.applyState(rec, state)
	return rec, nil
}
