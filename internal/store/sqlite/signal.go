package sqlite

import (
	"context"
	"errors"

	"sigtrade/internal/store/model"
	"sigtrade/internal/types"

	"gorm.io/gorm"
)

// SignalRepo 信号仓储。
type SignalRepo struct {
	db *gorm.DB
}

func NewSignalRepo(db *gorm.DB) *SignalRepo {
	return &SignalRepo{db: db}
}

// Save 插入信号并回填自增 ID。
func (r *SignalRepo) Save(ctx context.Context, sig *types.Signal) error {
	if sig == nil {
		return errors.New("signal cannot be nil")
	}
	m := model.FromSignal(sig)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	sig.ID = m.ID
	return nil
}

// SetValid 策略评估后回写有效标记。
func (r *SignalRepo) SetValid(ctx context.Context, id int64, valid bool) error {
	return r.db.WithContext(ctx).
		Model(&model.SignalModel{}).
		Where("id = ?", id).
		Update("valid", valid).Error
}

// LatestPrior 返回同一交易对同一周期、严格早于给定信号的最近一条信号。
// 时间相同时以自增 ID 的先后为准。未找到返回 (nil, nil)。
func (r *SignalRepo) LatestPrior(ctx context.Context, sig *types.Signal) (*types.Signal, error) {
	if sig == nil {
		return nil, errors.New("signal cannot be nil")
	}
	createMs := sig.CreatedAt.UnixMilli()
	var m model.SignalModel
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND time_circle = ?", sig.Symbol, sig.TimeCircle).
		Where("create_time < ? OR (create_time = ? AND id < ?)", createMs, createMs, sig.ID).
		Order("create_time DESC, id DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.ToSignal(), nil
}

// ListRecent 按创建时间倒序列出最近的信号。
func (r *SignalRepo) ListRecent(ctx context.Context, limit int) ([]*types.Signal, error) {
	if limit <= 0 {
		limit = 100
	}
	var ms []model.SignalModel
	if err := r.db.WithContext(ctx).
		Order("create_time DESC, id DESC").
		Limit(limit).
		Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*types.Signal, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].ToSignal())
	}
	return out, nil
}
