package strategy

import (
	"context"

	"sigtrade/internal/logger"
	"sigtrade/internal/types"
)

// PriorSignalFinder 查询同一交易对同一周期中严格早于给定信号的最近一条。
type PriorSignalFinder interface {
	LatestPrior(ctx context.Context, sig *types.Signal) (*types.Signal, error)
}

// DedupStrategy 默认策略：同一交易对同一周期内连续同向信号视为重复。
// 只看最近一条先前信号，方向翻转后再翻转回来仍然有效。
type DedupStrategy struct {
	signals PriorSignalFinder
}

func NewDedupStrategy(signals PriorSignalFinder) *DedupStrategy {
	return &DedupStrategy{signals: signals}
}

func (d *DedupStrategy) Name() string { return "dedup" }

func (d *DedupStrategy) Evaluate(ctx context.Context, sig *types.Signal) (bool, error) {
	prior, err := d.signals.LatestPrior(ctx, sig)
	if err != nil {
		return false, err
	}
	if prior != nil && prior.Side == sig.Side {
		logger.Warnf("duplicate signal rejected: %s %s %s (previous at %s)",
			sig.Symbol, sig.Side, sig.TimeCircle, prior.CreatedAt.Format("2006-01-02 15:04:05"))
		return false, nil
	}
	logger.Infof("signal accepted: %s %s %s", sig.Symbol, sig.Side, sig.TimeCircle)
	return true, nil
}
