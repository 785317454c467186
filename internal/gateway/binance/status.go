package binance

import (
	"context"
	"errors"
	"net"

	"sigtrade/internal/gateway/exchange"
	"sigtrade/internal/types"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
)

// mapStatus 将交易所状态映射到内部状态机。
// EXPIRED 与 CANCELED 同等对待：交易所侧已不会再成交。
func mapStatus(s futures.OrderStatusType) types.OrderStatus {
	switch s {
	case futures.OrderStatusTypeNew:
		return types.OrderStatusSubmitted
	case futures.OrderStatusTypePartiallyFilled:
		return types.OrderStatusPartiallyFilled
	case futures.OrderStatusTypeFilled:
		return types.OrderStatusFilled
	case futures.OrderStatusTypeCanceled, futures.OrderStatusTypeExpired:
		return types.OrderStatusCancelled
	case futures.OrderStatusTypeRejected:
		return types.OrderStatusRejected
	}
	return types.OrderStatusSubmitted
}

// 交易所错误码分类。参考 fapi 文档的错误码表。
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return exchange.NewError(op, kindOfAPICode(apiErr.Code), err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return exchange.NewError(op, exchange.ErrKindTransient, err)
	}
	return exchange.NewError(op, exchange.ErrKindUnknown, err)
}

func kindOfAPICode(code int64) exchange.ErrKind {
	switch code {
	case -1003, -1015:
		return exchange.ErrKindRateLimited
	case -1001, -1007, -1008:
		return exchange.ErrKindTransient
	case -2018, -2019:
		return exchange.ErrKindInsufficientMargin
	case -2022, -4118:
		return exchange.ErrKindNoPosition
	case -2011, -2013:
		return exchange.ErrKindOrderNotFound
	case -1013, -1111, -4003, -4164, -5022:
		return exchange.ErrKindInvalidOrder
	}
	return exchange.ErrKindUnknown
}
