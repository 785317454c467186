package model

import (
	"time"

	"sigtrade/internal/types"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// OrderRecordModel 订单持久化模型。时间戳统一使用毫秒。
type OrderRecordModel struct {
	ID              int64           `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID         string          `gorm:"column:order_id;uniqueIndex"`
	ExchangeOrderID string          `gorm:"column:exchange_order_id;index"`
	Symbol          string          `gorm:"column:symbol;index:idx_order_symbol_ctime"`
	Side            string          `gorm:"column:side"`
	Price           decimal.Decimal `gorm:"column:price;type:decimal(32,16)"`
	Quantity        decimal.Decimal `gorm:"column:quantity;type:decimal(32,16)"`
	FilledQuantity  decimal.Decimal `gorm:"column:filled_quantity;type:decimal(32,16)"`
	AvgPrice        decimal.Decimal `gorm:"column:avg_price;type:decimal(32,16)"`
	Fee             decimal.Decimal `gorm:"column:fee;type:decimal(32,16)"`
	ReduceOnly      bool            `gorm:"column:reduce_only"`
	IsStopLoss      bool            `gorm:"column:is_stop_loss"`
	Role            string          `gorm:"column:role"`
	Status          string          `gorm:"column:status;index:idx_order_status_ctime"`
	Leverage        int             `gorm:"column:leverage"`
	RawData         datatypes.JSON  `gorm:"column:raw_data"`
	CreateTime      int64           `gorm:"column:create_time;index:idx_order_symbol_ctime;index:idx_order_status_ctime"`
	UpdateTime      int64           `gorm:"column:update_time"`
	FilledTime      int64           `gorm:"column:filled_time"`
}

func (OrderRecordModel) TableName() string { return "order_records" }

// SignalModel 信号持久化模型，写入后不再修改。
type SignalModel struct {
	ID           int64           `gorm:"column:id;primaryKey;autoIncrement"`
	Title        string          `gorm:"column:title"`
	Symbol       string          `gorm:"column:symbol;index:idx_signal_lookup"`
	Scode        string          `gorm:"column:scode"`
	ContractType int             `gorm:"column:contract_type"`
	Price        decimal.Decimal `gorm:"column:price;type:decimal(32,16)"`
	Side         string          `gorm:"column:side"`
	TimeCircle   string          `gorm:"column:time_circle;index:idx_signal_lookup"`
	Valid        bool            `gorm:"column:valid"`
	StrategyID   int             `gorm:"column:strategy_id"`
	CreateTime   int64           `gorm:"column:create_time;index:idx_signal_lookup"`
}

func (SignalModel) TableName() string { return "signals" }

// FromOrderRecord 将领域实体转换为持久化模型。
func FromOrderRecord(rec *types.OrderRecord) *OrderRecordModel {
	if rec == nil {
		return nil
	}
	m := &OrderRecordModel{
		OrderID:         rec.ID,
		ExchangeOrderID: rec.ExchangeOrderID,
		Symbol:          rec.Symbol,
		Side:            string(rec.Side),
		Price:           rec.Price,
		Quantity:        rec.Quantity,
		FilledQuantity:  rec.FilledQuantity,
		AvgPrice:        rec.AvgPrice,
		Fee:             rec.Fee,
		ReduceOnly:      rec.ReduceOnly,
		IsStopLoss:      rec.IsStopLoss,
		Role:            string(rec.Role),
		Status:          string(rec.Status),
		Leverage:        rec.Leverage,
		RawData:         datatypes.JSON(rec.RawPayload),
		CreateTime:      rec.CreateTime.UnixMilli(),
		UpdateTime:      rec.UpdateTime.UnixMilli(),
	}
	if rec.FilledTime != nil {
		m.FilledTime = rec.FilledTime.UnixMilli()
	}
	return m
}

// ToOrderRecord 将持久化模型还原为领域实体。
func (m *OrderRecordModel) ToOrderRecord() *types.OrderRecord {
	if m == nil {
		return nil
	}
	rec := &types.OrderRecord{
		ID:              m.OrderID,
		ExchangeOrderID: m.ExchangeOrderID,
		Symbol:          m.Symbol,
		Side:            types.Side(m.Side),
		Price:           m.Price,
		Quantity:        m.Quantity,
		FilledQuantity:  m.FilledQuantity,
		AvgPrice:        m.AvgPrice,
		Fee:             m.Fee,
		ReduceOnly:      m.ReduceOnly,
		IsStopLoss:      m.IsStopLoss,
		Role:            types.OrderRole(m.Role),
		Status:          types.OrderStatus(m.Status),
		Leverage:        m.Leverage,
		RawPayload:      []byte(m.RawData),
		CreateTime:      time.UnixMilli(m.CreateTime),
		UpdateTime:      time.UnixMilli(m.UpdateTime),
	}
	if m.FilledTime > 0 {
		t := time.UnixMilli(m.FilledTime)
		rec.FilledTime = &t
	}
	return rec
}

// FromSignal 将信号实体转换为持久化模型。
func FromSignal(sig *types.Signal) *SignalModel {
	if sig == nil {
		return nil
	}
	return &SignalModel{
		ID:           sig.ID,
		Title:        sig.Title,
		Symbol:       sig.Symbol,
		Scode:        sig.Scode,
		ContractType: int(sig.ContractType),
		Price:        sig.Price,
		Side:         string(sig.Side),
		TimeCircle:   sig.TimeCircle,
		Valid:        sig.Valid,
		StrategyID:   sig.StrategyID,
		CreateTime:   sig.CreatedAt.UnixMilli(),
	}
}

// ToSignal 将持久化模型还原为信号实体。
func (m *SignalModel) ToSignal() *types.Signal {
	if m == nil {
		return nil
	}
	return &types.Signal{
		ID:           m.ID,
		Title:        m.Title,
		Symbol:       m.Symbol,
		Scode:        m.Scode,
		ContractType: types.ContractType(m.ContractType),
		Price:        m.Price,
		Side:         types.Side(m.Side),
		TimeCircle:   m.TimeCircle,
		Valid:        m.Valid,
		StrategyID:   m.StrategyID,
		CreatedAt:    time.UnixMilli(m.CreateTime),
	}
}
