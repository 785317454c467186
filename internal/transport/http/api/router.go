package apihttp

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"sigtrade/internal/pkg/symbol"
	"sigtrade/internal/types"

	"github.com/gin-gonic/gin"
)

// SignalStore 信号查询依赖。
type SignalStore interface {
	ListRecent(ctx context.Context, limit int) ([]*types.Signal, error)
}

// OrderStore 订单查询依赖。
type OrderStore interface {
	FindByID(ctx context.Context, orderID string) (*types.OrderRecord, error)
	ListRecent(ctx context.Context, limit int) ([]*types.OrderRecord, error)
	ListBySymbol(ctx context.Context, symbol string, limit int) ([]*types.OrderRecord, error)
}

// IngestFunc 接收解析后的 webhook 信号，返回入库后的信号。
type IngestFunc func(ctx context.Context, sig *types.Signal) (*types.Signal, error)

// RefreshFunc 手动触发一次订单状态刷新。
type RefreshFunc func(ctx context.Context, orderID string) (*types.OrderRecord, error)

// Router 暴露信号接入与查询接口。
type Router struct {
	Secret  string
	Ingest  IngestFunc
	Refresh RefreshFunc
	Signals SignalStore
	Orders  OrderStore
}

// Register 将路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/signal/webhook", r.handleWebhook)
	group.GET("/signals", r.handleSignals)
	group.GET("/orders", r.handleOrders)
	group.GET("/orders/:id", r.handleOrderByID)
	group.POST("/orders/:id/refresh", r.handleOrderRefresh)
}

func (r *Router) handleSignals(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))
	sigs, err := r.Signals.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	views := make([]gin.H, 0, len(sigs))
	for _, s := range sigs {
		views = append(views, signalView(s))
	}
	c.JSON(http.StatusOK, gin.H{"signals": views})
}

func (r *Router) handleOrders(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))
	var (
		recs []*types.OrderRecord
		err  error
	)
	if sym := symbol.Normalize(c.Query("symbol")); sym != "" {
		recs, err = r.Orders.ListBySymbol(c.Request.Context(), sym, limit)
	} else {
		recs, err = r.Orders.ListRecent(c.Request.Context(), limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	views := make([]gin.H, 0, len(recs))
	for _, rec := range recs {
		views = append(views, orderView(rec))
	}
	c.JSON(http.StatusOK, gin.H{"orders": views})
}

func (r *Router) handleOrderByID(c *gin.Context) {
	rec, err := r.Orders.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, orderView(rec))
}

func (r *Router) handleOrderRefresh(c *gin.Context) {
	if r.Refresh == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "refresh not available"})
		return
	}
	rec, err := r.Refresh(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := http.StatusBadGateway
		if rec == nil {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, orderView(rec))
}

func parseLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 || n > 1000 {
		return 100
	}
	return n
}

func signalView(s *types.Signal) gin.H {
	return gin.H{
		"id":            s.ID,
		"title":         s.Title,
		"symbol":        s.Symbol,
		"scode":         s.Scode,
		"contract_type": int(s.ContractType),
		"price":         s.Price.String(),
		"side":          string(s.Side),
		"time_circle":   s.TimeCircle,
		"valid":         s.Valid,
		"strategy_id":   s.StrategyID,
		"created_at":    s.CreatedAt.UnixMilli(),
	}
}

func orderView(rec *types.OrderRecord) gin.H {
	view := gin.H{
		"order_id":          rec.ID,
		"exchange_order_id": rec.ExchangeOrderID,
		"symbol":            rec.Symbol,
		"side":              string(rec.Side),
		"price":             rec.Price.String(),
		"quantity":          rec.Quantity.String(),
		"filled_quantity":   rec.FilledQuantity.String(),
		"avg_price":         rec.AvgPrice.String(),
		"fee":               rec.Fee.String(),
		"reduce_only":       rec.ReduceOnly,
		"is_stop_loss":      rec.IsStopLoss,
		"role":              string(rec.Role),
		"status":            string(rec.Status),
		"leverage":          rec.Leverage,
		"create_time":       rec.CreateTime.UnixMilli(),
		"update_time":       rec.UpdateTime.UnixMilli(),
	}
	if rec.FilledTime != nil {
		view["filled_time"] = rec.FilledTime.UnixMilli()
	}
	return view
}
