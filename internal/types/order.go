package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus 订单生命周期状态。终态之后不再变更。
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusSubmitted       OrderStatus = "SUBMITTED"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusFailed          OrderStatus = "FAILED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusFailed, OrderStatusRejected:
		return true
	}
	return false
}

// CanTransition enforces the monotonic state machine: a terminal state is
// frozen, and PARTIALLY_FILLED may re-enter itself while fills accumulate.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if s == next {
		return s == OrderStatusPartiallyFilled || !s.Terminal()
	}
	if s.Terminal() {
		return false
	}
	switch s {
	case OrderStatusPending:
		return true
	case OrderStatusSubmitted:
		return next != OrderStatusPending
	case OrderStatusPartiallyFilled:
		switch next {
		case OrderStatusFilled, OrderStatusCancelled, OrderStatusFailed:
			return true
		}
		return false
	}
	return false
}

// OrderRole 区分开仓单与平仓单（止损单一律视为平仓）。
type OrderRole string

const (
	OrderRoleOpen  OrderRole = "OPEN"
	OrderRoleClose OrderRole = "CLOSE"
)

// OrderRecord 是订单监控的核心实体，归属其 Supervisor 单写。
type OrderRecord struct {
	ID              string
	ExchangeOrderID string
	Symbol          string
	Side            Side
	Price           decimal.Decimal
	Quantity        decimal.Decimal
	FilledQuantity  decimal.Decimal
	AvgPrice        decimal.Decimal
	Fee             decimal.Decimal
	ReduceOnly      bool
	IsStopLoss      bool
	Role            OrderRole
	Status          OrderStatus
	Leverage        int
	RawPayload      []byte
	CreateTime      time.Time
	UpdateTime      time.Time
	FilledTime      *time.Time
}

// Remaining 返回未成交的数量（不为负）。
func (r *OrderRecord) Remaining() decimal.Decimal {
	rem := r.Quantity.Sub(r.FilledQuantity)
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}

// HasFill reports whether any quantity has been filled so far.
func (r *OrderRecord) HasFill() bool {
	return r.FilledQuantity.IsPositive()
}

// Clone 返回深拷贝快照，异步落库时避免与监控协程共享内存。
func (r *OrderRecord) Clone() *OrderRecord {
	if r == nil {
		return nil
	}
	cp := *r
	if r.RawPayload != nil {
		cp.RawPayload = append([]byte(nil), r.RawPayload...)
	}
	if r.FilledTime != nil {
		t := *r.FilledTime
		cp.FilledTime = &t
	}
	return &cp
}
