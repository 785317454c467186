package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side 交易方向，沿用 TradingView 信号里的 buy/sell。
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite 返回反方向（用于止损单与平仓判断）。
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// ParseSide normalizes a side string; ok is false for anything else.
func ParseSide(raw string) (Side, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy", "long":
		return SideBuy, true
	case "sell", "short":
		return SideSell, true
	}
	return "", false
}

// ContractType 标识信号来源市场。只有虚拟货币合约会被下单。
type ContractType int

const (
	ContractTypeCommodity ContractType = 1
	ContractTypeStock     ContractType = 2
	ContractTypeCrypto    ContractType = 3
)

// Tradable 只有虚拟货币渠道的信号会进入下单流程。
func (c ContractType) Tradable() bool { return c == ContractTypeCrypto }

// Signal 是一次 webhook 告警的不可变快照，入库后不再修改。
type Signal struct {
	ID           int64
	Title        string
	Symbol       string
	Scode        string
	ContractType ContractType
	Price        decimal.Decimal
	Side         Side
	TimeCircle   string
	Valid        bool
	StrategyID   int
	CreatedAt    time.Time
}
