package strategy

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"sigtrade/internal/types"
)

// Strategy 判定一条信号是否有效。返回 false 的信号仍会入库，但不会触发下单。
type Strategy interface {
	Name() string
	Evaluate(ctx context.Context, sig *types.Signal) (bool, error)
}

// Registry 按策略 ID 分发信号。未注册的 ID 回退到默认策略。
type Registry struct {
	mu         sync.RWMutex
	strategies map[int]Strategy
	defaultID  int
}

// NewRegistry 创建空注册表，defaultID 指定兜底策略。
func NewRegistry(defaultID int) *Registry {
	return &Registry{
		strategies: make(map[int]Strategy),
		defaultID:  defaultID,
	}
}

// Register 注册策略，重复注册同一 ID 报错。
func (r *Registry) Register(id int, s Strategy) error {
	if s == nil {
		return fmt.Errorf("strategy cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.strategies[id]; ok {
		return fmt.Errorf("strategy id %d already registered", id)
	}
	r.strategies[id] = s
	return nil
}

// Evaluate 执行信号对应的策略。
func (r *Registry) Evaluate(ctx context.Context, sig *types.Signal) (bool, error) {
	if sig == nil {
		return false, fmt.Errorf("signal cannot be nil")
	}
	r.mu.RLock()
	s, ok := r.strategies[sig.StrategyID]
	if !ok {
		s, ok = r.strategies[r.defaultID]
	}
	r.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("no strategy registered for id %d", sig.StrategyID)
	}
	return s.Evaluate(ctx, sig)
}

// IDs 返回已注册的策略 ID，升序。
func (r *Registry) IDs() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]int, 0, len(r.strategies))
	for id := range r.strategies {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
