package apihttp

import (
	"crypto/subtle"
	"io"
	"net/http"
	"strings"
	"time"

	"sigtrade/internal/logger"
	"sigtrade/internal/pkg/symbol"
	"sigtrade/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const maxWebhookBody = 64 << 10

// handleWebhook 接收 TradingView 告警。对字段顺序与多余字段保持宽容，
// 只要能取出必需字段即可。
func (r *Router) handleWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read body"})
		return
	}
	if !gjson.ValidBytes(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	payload := gjson.ParseBytes(body)

	if r.Secret != "" {
		got := payload.Get("secret").String()
		if subtle.ConstantTimeCompare([]byte(got), []byte(r.Secret)) != 1 {
			logger.Warnf("webhook rejected: bad secret from %s", c.ClientIP())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
	}

	sig, perr := parseSignal(payload)
	if perr != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": perr})
		return
	}

	saved, err := r.Ingest(c.Request.Context(), sig)
	if err != nil {
		logger.Errorf("webhook ingest failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": saved.ID, "status": "accepted"})
}

func parseSignal(payload gjson.Result) (*types.Signal, string) {
	// TradingView 可能发送 "BINANCE:BTCUSDT.P" 或 "BTC/USDT" 形式。
	sym := symbol.Normalize(payload.Get("symbol").String())
	if sym == "" {
		return nil, "symbol is required"
	}

	side, ok := types.ParseSide(firstString(payload, "action", "side"))
	if !ok {
		return nil, "action must be buy or sell"
	}

	priceRaw := strings.TrimSpace(payload.Get("price").String())
	price, err := decimal.NewFromString(priceRaw)
	if err != nil || !price.IsPositive() {
		return nil, "price must be a positive number"
	}

	contractType := types.ContractTypeCrypto
	if v := payload.Get("contract_type"); v.Exists() {
		contractType = types.ContractType(v.Int())
	} else if v := payload.Get("contractType"); v.Exists() {
		contractType = types.ContractType(v.Int())
	}

	strategyID := 1
	if v := payload.Get("strategy_id"); v.Exists() {
		strategyID = int(v.Int())
	}

	scode := strings.TrimSpace(payload.Get("scode").String())
	if scode == "" {
		scode = sym
	}

	return &types.Signal{
		Title:        strings.TrimSpace(firstString(payload, "title", "alert_name")),
		Symbol:       sym,
		Scode:        scode,
		ContractType: contractType,
		Price:        price,
		Side:         side,
		TimeCircle:   strings.ToLower(strings.TrimSpace(firstString(payload, "time_circle", "interval", "timeframe"))),
		StrategyID:   strategyID,
		CreatedAt:    time.Now(),
	}, ""
}

func firstString(payload gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := payload.Get(k); v.Exists() {
			if s := v.String(); s != "" {
				return s
			}
		}
	}
	return ""
}
