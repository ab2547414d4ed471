package monitorapp

import (
	"context"
	"errors"

	"github.com/postfiat/pftscan/pkg/config"
	"github.com/postfiat/pftscan/pkg/logging"
	"github.com/postfiat/pftscan/pkg/monitor"
	"github.com/postfiat/pftscan/pkg/retry"
	"github.com/postfiat/pftscan/pkg/xrpl"
	"go.uber.org/zap"
)

type App struct {
	Cfg     config.Config
	Logger  *zap.Logger
	Monitor *monitor.Monitor
	Client  xrpl.Client
}

// Initialize initializes the monitor application. A missing watchlist or an
// unreachable RPC endpoint is fatal: the watchdog is useless without either.
func Initialize(ctx context.Context) *App {
	logger, err := logging.New()
	if err != nil {
		panic(err)
	}
	cfg := config.FromEnv()

	wl, err := monitor.LoadWatchlist(cfg.Monitor.WatchlistPath)
	if err != nil {
		logger.Fatal("unable to load watchlist", zap.Error(err))
	}

	store, err := monitor.NewStore(cfg.Monitor.StateDir)
	if err != nil {
		logger.Fatal("unable to prepare state dir", zap.Error(err))
	}

	var cli *xrpl.WSClient
	dialErr := retry.WithBackoff(ctx, retry.DefaultConfig(), logger, "rpc connect", func() error {
		var err error
		cli, err = xrpl.Dial(ctx, xrpl.Opts{URL: cfg.RPCURL, InsecureTLS: true}, logger)
		return err
	})
	if dialErr != nil {
		logger.Fatal("unable to reach ledger RPC", zap.Error(dialErr))
	}

	notifier := &monitor.LogNotifier{Logger: logger}
	return &App{
		Cfg:     cfg,
		Logger:  logger,
		Monitor: monitor.New(cfg, wl, cli, store, notifier, logger),
		Client:  cli,
	}
}

// Start runs the poll loop until the context is canceled.
func (a *App) Start(ctx context.Context) {
	if err := a.Monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error("monitor exited", zap.Error(err))
	}
	_ = a.Client.Close()
	a.Logger.Info("monitor stopped")
}
