package trader

import (
	"context"
	"time"

	"sigtrade/internal/gateway/exchange"
	"sigtrade/internal/gateway/notifier"
	"sigtrade/internal/logger"
	"sigtrade/internal/types"
)

// Supervise 为订单启动监控协程。同一订单只会有一个监控者；
// 并发额度耗尽时放弃监控并记错误，订单留待启动恢复扫描兜底。
func (t *Trader) Supervise(ctx context.Context, rec *types.OrderRecord) {
	if rec == nil || rec.Status.Terminal() {
		return
	}
	if !t.tryClaim(rec.ID) {
		logger.Warnf("order %s already supervised, duplicate spawn ignored", rec.ID)
		return
	}
	if !t.sem.TryAcquire(1) {
		t.release(rec.ID)
		logger.Errorf("monitor capacity exhausted (%d), order %s left unsupervised", t.opts.MaxConcurrent, rec.ID)
		return
	}
	t.wg.Add(1)
	go func() {
		start := time.Now()
		defer t.wg.Done()
		defer t.sem.Release(1)
		defer t.release(rec.ID)
		// 单个监控协程崩溃不能波及其他订单的监控。
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("supervisor for order %s (%s) panicked after %s: %v",
					rec.ID, rec.Symbol, time.Since(start).Round(time.Millisecond), r)
			}
		}()
		t.superviseLoop(ctx, rec)
	}()
}

// superviseLoop 轮询订单直到终态。首次查询不等待，下单瞬间已成交的
// 订单直接进入收尾。止损单没有超时撤单，一直守到终态。
func (t *Trader) superviseLoop(ctx context.Context, rec *types.OrderRecord) {
	deadline := rec.CreateTime.Add(t.opts.CancelTimeout)

	interval := t.opts.InitialInterval
	for {
		state, err := t.client.GetOrderStatus(ctx, rec.Symbol, rec.ExchangeOrderID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warnf("poll order %s failed: %v", rec.ID, err)
		} else {
			t.applyState(rec, state)
			if rec.Status.Terminal() {
				t.onTerminal(ctx, rec)
				return
			}
		}

		if !rec.IsStopLoss && !time.Now().Before(deadline) {
			t.cancelWithRetry(ctx, rec)
			return
		}
		if !sleepWithContext(ctx, interval) {
			return
		}
		interval = t.nextInterval(rec, deadline)
	}
}

// nextInterval 常规轮询用普通间隔，临近撤单期限时切换到密集间隔。
func (t *Trader) nextInterval(rec *types.OrderRecord, deadline time.Time) time.Duration {
	if rec.IsStopLoss {
		return t.opts.NormalInterval
	}
	if time.Until(deadline) <= t.opts.IntensiveThreshold {
		return t.opts.IntensiveInterval
	}
	return t.opts.NormalInterval
}

// applyState 把交易所的最新状态并入订单记录。
func (t *Trader) applyState(rec *types.OrderRecord, state *exchange.OrderState) {
	if state == nil {
		return
	}
	changed := false
	// 成交量只增不减，过期的响应直接忽略。
	if state.FilledQty.GreaterThan(rec.FilledQuantity) {
		if state.FilledQty.GreaterThan(rec.Quantity) {
			logger.Warnf("order %s: exchange filled %s exceeds requested %s, clamped", rec.ID, state.FilledQty, rec.Quantity)
			state.FilledQty = rec.Quantity
		}
		rec.FilledQuantity = state.FilledQty
		changed = true
	}
	if state.AvgPrice.IsPositive() && !state.AvgPrice.Equal(rec.AvgPrice) {
		rec.AvgPrice = state.AvgPrice
		changed = true
	}
	if state.Fee.IsPositive() && !state.Fee.Equal(rec.Fee) {
		rec.Fee = state.Fee
		changed = true
	}
	if state.Status != rec.Status && rec.Status.CanTransition(state.Status) {
		t.transition(rec, state.Status)
		return
	}
	if changed {
		rec.UpdateTime = time.Now()
		t.save(rec)
	}
}

// cancelWithRetry 超时撤单。撤单前重查一次状态，避免撤掉刚成交的订单。
func (t *Trader) cancelWithRetry(ctx context.Context, rec *types.OrderRecord) {
	for attempt := 0; attempt <= t.opts.MaxCancelRetries; attempt++ {
		if attempt > 0 {
			if !sleepWithContext(ctx, t.opts.RetryInterval) {
				return
			}
		}
		// 撤单前的最后一次状态确认。
		if state, err := t.client.GetOrderStatus(ctx, rec.Symbol, rec.ExchangeOrderID); err == nil {
			t.applyState(rec, state)
			if rec.Status.Terminal() {
				t.onTerminal(ctx, rec)
				return
			}
		}

		err := t.client.CancelOrder(ctx, rec.Symbol, rec.ExchangeOrderID)
		if err == nil {
			t.finishCancelled(ctx, rec)
			return
		}
		if exchange.KindOf(err) == exchange.ErrKindOrderNotFound {
			// 撤单与成交竞态：订单已被交易所终结，以最终状态为准。
			if state, serr := t.client.GetOrderStatus(ctx, rec.Symbol, rec.ExchangeOrderID); serr == nil {
				t.applyState(rec, state)
				if rec.Status.Terminal() {
					t.onTerminal(ctx, rec)
					return
				}
			}
			t.finishCancelled(ctx, rec)
			return
		}
		logger.Warnf("cancel order %s attempt %d failed: %v", rec.ID, attempt+1, err)
	}
	logger.Errorf("cancel order %s exhausted retries, marking FAILED", rec.ID)
	t.transition(rec, types.OrderStatusFailed)
	t.notify.SendText(notifier.FailedMessage(rec, "cancel retries exhausted"))
}

// finishCancelled 撤单成功后的收尾：有部分成交时保持 PARTIALLY_FILLED 并为
// 已成交部分挂止损，否则置为 CANCELLED。
func (t *Trader) finishCancelled(ctx context.Context, rec *types.OrderRecord) {
	if rec.HasFill() {
		t.transition(rec, types.OrderStatusPartiallyFilled)
		logger.Infof("order %s cancelled with partial fill %s/%s", rec.ID, rec.FilledQuantity, rec.Quantity)
		t.notify.SendText(notifier.CancelledMessage(rec, true))
		if rec.Role == types.OrderRoleOpen && !rec.IsStopLoss {
			t.placeStopLoss(ctx, rec)
		}
		return
	}
	t.transition(rec, types.OrderStatusCancelled)
	logger.Infof("order %s cancelled after timeout", rec.ID)
	t.notify.SendText(notifier.CancelledMessage(rec, false))
}

// onTerminal 订单进入终态后的收尾动作。
func (t *Trader) onTerminal(ctx context.Context, rec *types.OrderRecord) {
	switch rec.Status {
	case types.OrderStatusFilled:
		logger.Infof("order %s filled: %s %s %s@%s", rec.ID, rec.Symbol, rec.Side, rec.FilledQuantity, rec.AvgPrice)
		t.notify.SendText(notifier.FilledMessage(rec))
		if rec.Role == types.OrderRoleOpen && !rec.IsStopLoss {
			t.placeStopLoss(ctx, rec)
		}
	case types.OrderStatusCancelled:
		logger.Infof("order %s cancelled on exchange side", rec.ID)
		// 交易所侧撤单也可能带着部分成交，已成交部分同样要有止损保护。
		if rec.HasFill() && rec.Role == types.OrderRoleOpen && !rec.IsStopLoss {
			t.placeStopLoss(ctx, rec)
		}
	case types.OrderStatusRejected, types.OrderStatusFailed:
		logger.Warnf("order %s ended %s", rec.ID, rec.Status)
	}
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
