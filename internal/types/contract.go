package types

import "github.com/shopspring/decimal"

// ContractConfig 每个交易对的下单配置，核心只读。
type ContractConfig struct {
	Symbol             string
	ExchangeSymbol     string
	Name               string
	PricePrecision     int32
	SizePrecision      int32
	MinSize            decimal.Decimal
	SizeIncrement      decimal.Decimal
	DefaultQuantity    decimal.Decimal
	StopLossPercentage decimal.Decimal
	StopLossSlippage   decimal.Decimal
	Active             bool
}

// RoundPrice 将价格按合约精度取整。
func (c ContractConfig) RoundPrice(p decimal.Decimal) decimal.Decimal {
	return p.Round(c.PricePrecision)
}

// RoundSize 将数量按合约精度向下取整，避免超过可用余额。
func (c ContractConfig) RoundSize(q decimal.Decimal) decimal.Decimal {
	return q.RoundDown(c.SizePrecision)
}

// Position 交易所持仓快照：size 为带符号数量，正数为多头。
// 每个决策点现查现用，不做跨调用缓存。
type Position struct {
	Symbol     string
	Size       decimal.Decimal
	EntryPrice decimal.Decimal
	Leverage   int
}

// IsLong reports whether the position is long (positive size).
func (p Position) IsLong() bool { return p.Size.IsPositive() }
