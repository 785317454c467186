// Package symbol 归一化各来源的交易对写法。
// TradingView 告警里可能出现 "BINANCE:BTCUSDT.P"、"BTC/USDT" 或 "btcusdt"，
// 内部与交易所统一使用无分隔符的大写形式（BTCUSDT）。
package symbol

import "strings"

var quoteCurrencies = []string{"USDT", "USDC", "BUSD", "TUSD", "BTC", "ETH", "BNB"}

type Symbol struct {
	Base  string
	Quote string
}

// Exchange 返回交易所下单使用的形式（BTCUSDT）。
func (s Symbol) Exchange() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

// Parse 解析任意来源的交易对写法。无法识别计价币种时 Quote 为空。
func Parse(raw string) Symbol {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return Symbol{}
	}

	// 去掉交易所前缀（BINANCE:BTCUSDT）
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[idx+1:]
	}
	// 去掉永续合约后缀（BTCUSDT.P）
	s = strings.TrimSuffix(s, ".P")

	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Symbol{
			Base:  strings.TrimSpace(parts[0]),
			Quote: strings.TrimSpace(parts[1]),
		}
	}

	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{
				Base:  s[:len(s)-len(quote)],
				Quote: quote,
			}
		}
	}

	return Symbol{Base: s}
}

// Normalize 归一化为交易所形式；无法识别计价币种时返回清理后的原始串。
func Normalize(raw string) string {
	sym := Parse(raw)
	if ex := sym.Exchange(); ex != "" {
		return ex
	}
	return sym.Base
}

func IsValid(raw string) bool {
	sym := Parse(raw)
	return sym.Base != "" && sym.Quote != ""
}
