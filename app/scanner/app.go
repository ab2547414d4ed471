package scanner

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/postfiat/pftscan/pkg/config"
	"github.com/postfiat/pftscan/pkg/logging"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RunInfo summarizes the most recent scan run for the status endpoint.
type RunInfo struct {
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	ElapsedSecs float64   `json:"elapsed_secs"`
	LedgerIndex int64     `json:"ledger_index"`
	Published   bool      `json:"published"`
	Error       string    `json:"error,omitempty"`
}

type App struct {
	Cfg    config.Config
	Logger *zap.Logger
	Cron   *cron.Cron
	Server *http.Server

	mu      sync.RWMutex
	lastRun *RunInfo
}

// Initialize initializes the scanner application.
func Initialize(_ context.Context) *App {
	logger, err := logging.New()
	if err != nil {
		panic(err)
	}
	app := &App{
		Cfg:    config.FromEnv(),
		Logger: logger,
	}
	app.setupServer()
	return app
}

// Start runs one scan immediately, then on the cron cadence, and blocks until
// the context is canceled.
func (a *App) Start(ctx context.Context) {
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	if err := a.setupScheduler(ctx); err != nil {
		a.Logger.Fatal("unable to set up scheduler", zap.Error(err))
	}
	a.Cron.Start()

	// First run right away so a fresh deployment publishes without waiting
	// for the next cron tick.
	a.runAndRecord(ctx)

	<-ctx.Done()
	a.Stop()
}

// Stop stops the scheduler and the HTTP server.
func (a *App) Stop() {
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	<-a.Cron.Stop().Done()
	_ = a.Server.Shutdown(stopCtx)
	a.Logger.Info("scanner stopped")
}

func (a *App) setupScheduler(ctx context.Context) error {
	a.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	_, err := a.Cron.AddFunc(a.Cfg.CronSpec, func() {
		a.runAndRecord(ctx)
	})
	return err
}

func (a *App) runAndRecord(ctx context.Context) {
	info := &RunInfo{StartedAt: time.Now()}
	ledger, err := a.RunOnce(ctx)
	info.FinishedAt = time.Now()
	info.ElapsedSecs = info.FinishedAt.Sub(info.StartedAt).Seconds()
	info.LedgerIndex = ledger
	if err != nil {
		info.Error = err.Error()
		a.Logger.Error("scan run failed",
			zap.Float64("elapsed_secs", info.ElapsedSecs), zap.Error(err))
	} else {
		info.Published = true
		a.Logger.Info("scan run complete",
			zap.Float64("elapsed_secs", info.ElapsedSecs),
			zap.Int64("ledger_index", ledger))
	}
	a.mu.Lock()
	a.lastRun = info
	a.mu.Unlock()
}

func (a *App) setupServer() {
	r := mux.NewRouter()
	r.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).Methods("GET")
	r.Handle("/snapshot", http.HandlerFunc(a.handleSnapshot)).Methods("GET")
	r.Handle("/status", http.HandlerFunc(a.handleStatus)).Methods("GET")
	a.Server = &http.Server{Addr: a.Cfg.HTTPAddr, Handler: r}
}

// handleSnapshot serves the latest published snapshot file. The publish step
// swaps the file atomically, so this always reads a complete document.
func (a *App) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(a.Cfg.OutputPath)
	if err != nil {
		http.Error(w, "no snapshot published yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	a.mu.RLock()
	info := a.lastRun
	a.mu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	if info == nil {
		_, _ = w.Write([]byte(`{"status":"no runs yet"}`))
		return
	}
	_ = json.NewEncoder(w).Encode(info)
}
