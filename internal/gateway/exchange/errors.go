package exchange

import (
	"errors"
	"fmt"
)

// ErrKind 区分交易所返回的预期失败，调用方据此决定是否可重试。
type ErrKind int

const (
	ErrKindUnknown ErrKind = iota
	// ErrKindTransient 网络/超时等临时错误，只读查询可重试。
	ErrKindTransient
	// ErrKindInsufficientMargin 保证金不足，业务性拒绝，不重试。
	ErrKindInsufficientMargin
	// ErrKindNoPosition 无可平仓位。
	ErrKindNoPosition
	// ErrKindInvalidOrder 参数非法（数量/价格精度、最小下单量）。
	ErrKindInvalidOrder
	// ErrKindOrderNotFound 交易所查不到该订单。
	ErrKindOrderNotFound
	// ErrKindRateLimited 触发交易所限频。
	ErrKindRateLimited
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindTransient:
		return "transient"
	case ErrKindInsufficientMargin:
		return "insufficient_margin"
	case ErrKindNoPosition:
		return "no_position"
	case ErrKindInvalidOrder:
		return "invalid_order"
	case ErrKindOrderNotFound:
		return "order_not_found"
	case ErrKindRateLimited:
		return "rate_limited"
	}
	return "unknown"
}

// Error 是适配器对外的统一错误载体。
type Error struct {
	Kind ErrKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exchange %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("exchange %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with an operation name and a classified kind.
func NewError(op string, kind ErrKind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf 返回错误的分类；非 *Error 一律视为 unknown。
func KindOf(err error) ErrKind {
	var ex *Error
	if errors.As(err, &ex) {
		return ex.Kind
	}
	return ErrKindUnknown
}

// Retryable reports whether a read-only call may be retried for this error.
func Retryable(err error) bool {
	switch KindOf(err) {
	case ErrKindTransient, ErrKindRateLimited:
		return true
	}
	return false
}
