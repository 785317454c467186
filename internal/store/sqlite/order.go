package sqlite

import (
	"context"
	"errors"

	"sigtrade/internal/store/model"
	"sigtrade/internal/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderRepo 订单仓储。
type OrderRepo struct {
	db *gorm.DB
}

func NewOrderRepo(db *gorm.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

// Save 以 order_id 为冲突键插入或覆盖订单。
func (r *OrderRepo) Save(ctx context.Context, rec *types.OrderRecord) error {
	if rec == nil {
		return errors.New("order cannot be nil")
	}
	m := model.FromOrderRecord(rec)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		UpdateAll: true,
	}).Create(m).Error
}

// FindByID 按内部订单号查找，未找到返回 (nil, nil)。
func (r *OrderRepo) FindByID(ctx context.Context, orderID string) (*types.OrderRecord, error) {
	var m model.OrderRecordModel
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.ToOrderRecord(), nil
}

// FindByExchangeID 按交易所订单号查找。
func (r *OrderRepo) FindByExchangeID(ctx context.Context, exchangeOrderID string) (*types.OrderRecord, error) {
	var m model.OrderRecordModel
	err := r.db.WithContext(ctx).Where("exchange_order_id = ?", exchangeOrderID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.ToOrderRecord(), nil
}

// ListActive 列出所有非终态订单，启动恢复时使用。
func (r *OrderRepo) ListActive(ctx context.Context) ([]*types.OrderRecord, error) {
	statuses := []string{
		string(types.OrderStatusPending),
		string(types.OrderStatusSubmitted),
		string(types.OrderStatusPartiallyFilled),
	}
	var ms []model.OrderRecordModel
	if err := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("create_time ASC, id ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return toRecords(ms), nil
}

// ListRecent 按创建时间倒序列出最近的订单。
func (r *OrderRepo) ListRecent(ctx context.Context, limit int) ([]*types.OrderRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var ms []model.OrderRecordModel
	if err := r.db.WithContext(ctx).
		Order("create_time DESC, id DESC").
		Limit(limit).
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return toRecords(ms), nil
}

// ListBySymbol 列出某交易对最近的订单。
func (r *OrderRepo) ListBySymbol(ctx context.Context, symbol string, limit int) ([]*types.OrderRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var ms []model.OrderRecordModel
	if err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("create_time DESC, id DESC").
		Limit(limit).
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return toRecords(ms), nil
}

func toRecords(ms []model.OrderRecordModel) []*types.OrderRecord {
	out := make([]*types.OrderRecord, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].ToOrderRecord())
	}
	return out
}
