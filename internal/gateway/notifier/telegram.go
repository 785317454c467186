package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// 中文说明：
// Telegram 通知器：订单成交/撤销/止损挂单等关键事件推送至指定群/频道。

const (
	telegramAPIBase    = "https://api.telegram.org"
	defaultSendTimeout = 15 * time.Second
	defaultRetryWait   = time.Second
	sendAttempts       = 3
)

type TelegramConfig struct {
	BotToken  string
	ChatID    string
	Timeout   time.Duration // 单次 HTTP 请求超时，0 取默认值
	RetryWait time.Duration // 重试间隔基数，按次数线性放大
	APIBase   string        // 留空用官方地址
}

type Telegram struct {
	cfg    TelegramConfig
	client *http.Client
	url    string
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSendTimeout
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = defaultRetryWait
	}
	base := cfg.APIBase
	if base == "" {
		base = telegramAPIBase
	}
	return &Telegram{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		url:    fmt.Sprintf("%s/bot%s/sendMessage", base, cfg.BotToken),
	}
}

// SendText 发送文本消息，失败时最多重试 sendAttempts 次。
func (t *Telegram) SendText(text string) error {
	budget := time.Duration(sendAttempts) * (t.cfg.Timeout + t.cfg.RetryWait)
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()
	return t.SendTextContext(ctx, text)
}

// SendTextContext 同 SendText，但由调用方控制生命周期。
func (t *Telegram) SendTextContext(ctx context.Context, text string) error {
	if t.cfg.BotToken == "" || t.cfg.ChatID == "" {
		return fmt.Errorf("telegram 配置不完整")
	}
	body, err := json.Marshal(map[string]any{
		"chat_id":    t.cfg.ChatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < sendAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(time.Duration(attempt) * t.cfg.RetryWait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return lastErr
			case <-timer.C:
			}
		}
		if err := t.send(ctx, body); err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return lastErr
			}
			continue
		}
		return nil
	}
	return lastErr
}

func (t *Telegram) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("telegram status=%d", resp.StatusCode)
	}
	return nil
}
