// Package app 负责应用级编排：加载配置→初始化依赖→启动接入与监控。
package app

import (
	"context"
	"fmt"

	"sigtrade/internal/admission"
	"sigtrade/internal/config"
	"sigtrade/internal/config/loader"
	"sigtrade/internal/gateway/binance"
	"sigtrade/internal/gateway/exchange"
	"sigtrade/internal/gateway/notifier"
	"sigtrade/internal/logger"
	"sigtrade/internal/persist"
	"sigtrade/internal/store/sqlite"
	"sigtrade/internal/strategy"
	"sigtrade/internal/trader"
	apihttp "sigtrade/internal/transport/http/api"
	"sigtrade/internal/types"

	"golang.org/x/sync/errgroup"
)

// App 持有全部运行组件。
type App struct {
	cfg       *config.Config
	store     *sqlite.Store
	contracts *loader.ContractLoader
	writer    *persist.Writer
	queue     *admission.Queue
	trader    *trader.Trader
	httpSrv   *apihttp.Server
}

// New 根据配置构建应用对象（不启动）。
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	store, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	contracts, err := loader.NewContractLoader(cfg.ContractsPath)
	if err != nil {
		return nil, fmt.Errorf("load contracts: %w", err)
	}

	var client exchange.TradingClient
	client, err = binance.New(binance.Config{
		APIKey:             cfg.Exchange.APIKey,
		APISecret:          cfg.Exchange.APISecret,
		Testnet:            cfg.Exchange.Testnet,
		Timeout:            cfg.Exchange.Timeout(),
		RateLimitPerSecond: cfg.Exchange.RateLimitPerSecond,
		DefaultLeverage:    cfg.Exchange.DefaultLeverage,
	})
	if err != nil {
		return nil, fmt.Errorf("exchange client: %w", err)
	}

	var notify notifier.TextNotifier = notifier.Noop{}
	if cfg.Notify.Telegram.Enabled {
		notify = notifier.NewTelegram(notifier.TelegramConfig{
			BotToken: cfg.Notify.Telegram.BotToken,
			ChatID:   cfg.Notify.Telegram.ChatID,
		})
	}

	writer := persist.NewWriter(store, cfg.Persist.QueueSize, cfg.Persist.ShutdownGrace())

	tr := trader.New(client, contracts, writer, notify, trader.Options{
		CancelTimeout:      cfg.Orders.CancelTimeout(),
		RetryInterval:      cfg.Orders.RetryInterval(),
		MaxCancelRetries:   cfg.Orders.MaxRetries,
		InitialInterval:    cfg.Monitor.InitialInterval(),
		NormalInterval:     cfg.Monitor.NormalInterval(),
		IntensiveInterval:  cfg.Monitor.IntensiveInterval(),
		IntensiveThreshold: cfg.Monitor.IntensiveThreshold(),
		MaxConcurrent:      int64(cfg.Monitor.MaxConcurrent),
		DefaultLeverage:    cfg.Exchange.DefaultLeverage,
	})

	strategies := strategy.NewRegistry(1)
	if err := strategies.Register(1, strategy.NewDedupStrategy(store.Signals)); err != nil {
		return nil, err
	}

	queue := admission.NewQueue(func(ctx context.Context, sig *types.Signal) {
		valid, err := strategies.Evaluate(ctx, sig)
		if err != nil {
			logger.Errorf("strategy evaluation for signal %d failed: %v", sig.ID, err)
			return
		}
		if err := store.Signals.SetValid(ctx, sig.ID, valid); err != nil {
			logger.Errorf("mark signal %d valid=%t failed: %v", sig.ID, valid, err)
		}
		if !valid {
			return
		}
		sig.Valid = true
		tr.HandleSignal(ctx, sig)
	}, cfg.Admission.MaxWorkers, cfg.Admission.MaxQueueSize)

	router := &apihttp.Router{
		Secret: cfg.Server.WebhookSecret,
		Ingest: func(ctx context.Context, sig *types.Signal) (*types.Signal, error) {
			// 同步入库拿到自增 ID，过滤策略依赖先后次序。
			if err := store.Signals.Save(ctx, sig); err != nil {
				return nil, err
			}
			if err := queue.Enqueue(sig); err != nil {
				return nil, err
			}
			return sig, nil
		},
		Refresh: func(ctx context.Context, orderID string) (*types.OrderRecord, error) {
			return tr.RefreshOrder(ctx, store.Orders, orderID)
		},
		Signals: store.Signals,
		Orders:  store.Orders,
	}
	httpSrv, err := apihttp.NewServer(apihttp.ServerConfig{Addr: cfg.Server.HTTPAddr, Router: router})
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:       cfg,
		store:     store,
		contracts: contracts,
		writer:    writer,
		queue:     queue,
		trader:    tr,
		httpSrv:   httpSrv,
	}, nil
}

// Run 启动全部组件并阻塞到 ctx 取消。启动时先恢复库中的在途订单。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return a.writer.Run(gctx)
	})
	group.Go(func() error {
		return a.queue.Run(gctx)
	})
	group.Go(func() error {
		if err := a.httpSrv.Start(gctx); err != nil && gctx.Err() == nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	if err := a.trader.Recover(gctx, a.store.Orders); err != nil {
		logger.Errorf("startup recovery scan failed: %v", err)
	}
	logger.Infof("sigtrade started (env=%s, addr=%s)", a.cfg.App.Env, a.httpSrv.Addr())

	err := group.Wait()
	a.trader.Wait()
	if cerr := a.store.Close(); cerr != nil {
		logger.Warnf("close store: %v", cerr)
	}
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
