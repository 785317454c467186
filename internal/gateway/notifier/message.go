package notifier

import (
	"fmt"
	"strings"
	"time"

	"sigtrade/internal/pkg/text"
	"sigtrade/internal/types"
)

const maxMessageLen = 3800

// OrderEvent 渲染订单生命周期事件的推送文本。
type OrderEvent struct {
	Icon   string
	Title  string
	Fields [][2]string
}

// Render 生成 Markdown 文本，自动裁剪长度。
func (e OrderEvent) Render() string {
	var b strings.Builder
	header := strings.TrimSpace(e.Icon + " " + e.Title)
	if header != "" {
		b.WriteString(header + "\n\n")
	}
	if len(e.Fields) > 0 {
		b.WriteString("```\n")
		for _, kv := range e.Fields {
			b.WriteString(fmt.Sprintf("%s: %s\n", kv[0], kv[1]))
		}
		b.WriteString("```\n")
	}
	b.WriteString("时间：" + time.Now().Format("2006-01-02 15:04:05 MST"))
	return text.Truncate(strings.TrimSpace(b.String()), maxMessageLen)
}

// FilledMessage 成交通知。
func FilledMessage(rec *types.OrderRecord) string {
	title := "订单成交"
	icon := "✅"
	if rec.IsStopLoss {
		title = "止损单成交"
		icon = "🛑"
	}
	return OrderEvent{
		Icon:  icon,
		Title: title,
		Fields: [][2]string{
			{"交易对", rec.Symbol},
			{"方向", string(rec.Side)},
			{"数量", rec.FilledQuantity.String()},
			{"均价", rec.AvgPrice.String()},
			{"订单号", rec.ID},
		},
	}.Render()
}

// CancelledMessage 超时撤单通知。hadFill 标记是否存在部分成交。
func CancelledMessage(rec *types.OrderRecord, hadFill bool) string {
	fields := [][2]string{
		{"交易对", rec.Symbol},
		{"方向", string(rec.Side)},
		{"委托数量", rec.Quantity.String()},
		{"订单号", rec.ID},
	}
	title := "订单超时撤销"
	if hadFill {
		title = "订单部分成交后撤销"
		fields = append(fields, [2]string{"已成交", rec.FilledQuantity.String()})
	}
	return OrderEvent{Icon: "⏱", Title: title, Fields: fields}.Render()
}

// StopLossPlacedMessage 止损挂单通知。
func StopLossPlacedMessage(rec *types.OrderRecord, trigger string) string {
	return OrderEvent{
		Icon:  "🛡",
		Title: "止损单已挂出",
		Fields: [][2]string{
			{"交易对", rec.Symbol},
			{"方向", string(rec.Side)},
			{"数量", rec.Quantity.String()},
			{"触发价", trigger},
			{"订单号", rec.ID},
		},
	}.Render()
}

// FailedMessage 订单失败通知。
func FailedMessage(rec *types.OrderRecord, reason string) string {
	return OrderEvent{
		Icon:  "❌",
		Title: "订单失败",
		Fields: [][2]string{
			{"交易对", rec.Symbol},
			{"方向", string(rec.Side)},
			{"订单号", rec.ID},
			{"原因", reason},
		},
	}.Render()
}
