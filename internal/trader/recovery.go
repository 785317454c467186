package trader

import (
	"context"
	"time"

	"sigtrade/internal/logger"
	"sigtrade/internal/types"
)

// ActiveOrderLister 供启动恢复扫描使用。
type ActiveOrderLister interface {
	ListActive(ctx context.Context) ([]*types.OrderRecord, error)
}

// Recover 进程重启后接管库里的非终态订单：
// 超过整个撤单周期仍未终结的订单视为失联，直接置为 FAILED；
// 其余订单重新纳入监控。
func (t *Trader) Recover(ctx context.Context, orders ActiveOrderLister) error {
	records, err := orders.ListActive(ctx)
	if err != nil {
		return err
	}
	staleAfter := t.opts.CancelTimeout * time.Duration(t.opts.MaxCancelRetries+1)
	recovered, failed := 0, 0
	for _, rec := range records {
		if rec == nil {
			continue
		}
		if rec.ExchangeOrderID == "" || time.Since(rec.CreateTime) > staleAfter {
			t.transition(rec, types.OrderStatusFailed)
			logger.Warnf("recovery: order %s (created %s) marked FAILED", rec.ID, rec.CreateTime.Format(time.RFC3339))
			failed++
			continue
		}
		t.Supervise(ctx, rec)
		recovered++
	}
	logger.Infof("recovery scan done: %d orders resupervised, %d marked failed", recovered, failed)
	return nil
}
