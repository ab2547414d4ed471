package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/postfiat/pftscan/pkg/config"
	"github.com/postfiat/pftscan/pkg/xrpl"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Monitor is the independent reset watchdog: it polls the watchlist on a
// fixed cadence, compares cycles, and drives the incident state machine. It
// shares the ledger RPC primitive with the scanner but nothing else.
type Monitor struct {
	cfg      config.Config
	wl       *Watchlist
	cli      xrpl.Client
	store    *Store
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func New(cfg config.Config, wl *Watchlist, cli xrpl.Client, store *Store, notifier Notifier, logger *zap.Logger) *Monitor {
	return &Monitor{
		cfg:      cfg,
		wl:       wl,
		cli:      cli,
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes poll cycles until the context is canceled. A failed cycle is
// logged and the loop waits for the next tick; only cancellation stops it.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		if err := m.Cycle(ctx); err != nil {
			m.logger.Error("monitor cycle failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopping")
			return ctx.Err()
		case <-time.After(m.cfg.Monitor.PollInterval):
		}
	}
}

// poll snapshots every watched wallet with bounded concurrency. Lookup
// failures become exists=false entries rather than cycle failures.
func (m *Monitor) poll(ctx context.Context) *CycleSnapshot {
	wallets := make([]WalletSnapshot, len(m.wl.Wallets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.BalanceBatchSize)
	for i, w := range m.wl.Wallets {
		g.Go(func() error {
			snap := WalletSnapshot{Address: w.Address, Role: w.Role, Label: w.Label}
			state, err := m.cli.AccountState(gctx, w.Address)
			switch {
			case err != nil:
				snap.Reason = err.Error()
			case !state.Exists:
				snap.Reason = state.Reason
			default:
				snap.Balance = state.Balance
				snap.Sequence = state.Sequence
				snap.Exists = true
			}
			wallets[i] = snap
			return nil
		})
	}
	_ = g.Wait()

	ledger, err := m.cli.LedgerCurrent(ctx)
	if err != nil {
		m.logger.Warn("ledger_current probe failed", zap.Error(err))
	}

	totals := map[Role]float64{}
	for _, w := range wallets {
		totals[w.Role] += w.Balance
	}
	return &CycleSnapshot{
		TakenAt:     m.now().Unix(),
		LedgerIndex: ledger,
		Wallets:     wallets,
		RoleTotals:  totals,
	}
}

// Cycle runs one poll-compare-persist pass.
func (m *Monitor) Cycle(ctx context.Context) error {
	cur := m.poll(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	ref, err := m.store.SaveSnapshot(cur)
	if err != nil {
		return err
	}

	st, err := m.store.LoadState()
	if err != nil {
		return err
	}

	prev, err := m.store.LoadSnapshot(st.LastRef)
	if err != nil {
		m.logger.Warn("previous cycle unavailable", zap.String("ref", st.LastRef), zap.Error(err))
	}
	if st.BaselineRef == "" {
		st.BaselineRef = ref
	}

	triggers := DetectTriggers(prev, cur, m.cfg.Monitor)

	active := st.Incident != nil && st.Incident.Status == IncidentActive
	if !active && len(triggers) > 0 {
		st.Incident = &Incident{
			ID:                  fmt.Sprintf("incident-%d", cur.TakenAt),
			Status:              IncidentActive,
			StartedAt:           cur.TakenAt,
			Reasons:             triggers,
			BaselineSnapshotRef: st.BaselineRef,
		}
		active = true
		m.logger.Error("ledger reset detected",
			zap.String("incident", st.Incident.ID),
			zap.Strings("reasons", triggers))
	}

	if active {
		if err := m.handleActive(ctx, st, cur, ref); err != nil {
			m.logger.Warn("incident handling degraded", zap.Error(err))
		}
	} else if st.Incident != nil && st.Incident.Status == IncidentResolved && st.Incident.ResolvedAlertSentAt == 0 {
		// Resolution alert failed on a previous cycle; retry until it lands.
		m.sendResolved(ctx, st.Incident)
	}

	st.LastRef = ref
	if err := m.store.SaveState(st); err != nil {
		return err
	}
	if err := m.store.WriteStatus(RenderStatus(cur, st)); err != nil {
		m.logger.Warn("status write failed", zap.Error(err))
	}

	m.logger.Info("cycle complete",
		zap.String("ref", ref),
		zap.Int64("ledger_index", cur.LedgerIndex),
		zap.Float64("reward_total", cur.RewardTotal()),
		zap.Int("triggers", len(triggers)))
	return nil
}

func (m *Monitor) handleActive(ctx context.Context, st *State, cur *CycleSnapshot, curRef string) error {
	inc := st.Incident
	base, err := m.store.LoadSnapshot(inc.BaselineSnapshotRef)
	if err != nil || base == nil {
		return fmt.Errorf("incident baseline %s unavailable: %w", inc.BaselineSnapshotRef, err)
	}

	report := RenderImpact(base, cur, inc)
	if err := m.store.WriteReport(inc, cur.TakenAt, report); err != nil {
		m.logger.Warn("report write failed", zap.Error(err))
	}

	if inc.AlertSentAt == 0 {
		if err := m.notifier.Notify(ctx, "Ledger reset detected: "+inc.ID, report); err != nil {
			m.logger.Warn("detect alert failed, will retry", zap.Error(err))
		} else {
			inc.AlertSentAt = m.now().Unix()
		}
	}

	if Resolved(base, cur, m.cfg.Monitor.RecoveryRatio) {
		inc.Status = IncidentResolved
		inc.ResolvedAt = cur.TakenAt
		// The resolving snapshot becomes the new normal.
		st.BaselineRef = curRef
		m.logger.Info("incident resolved",
			zap.String("incident", inc.ID),
			zap.Float64("reward_total", cur.RewardTotal()),
			zap.Float64("baseline_total", base.RewardTotal()))
		m.sendResolved(ctx, inc)
	}
	return nil
}

func (m *Monitor) sendResolved(ctx context.Context, inc *Incident) {
	if err := m.notifier.Notify(ctx, "Ledger reset resolved: "+inc.ID,
		fmt.Sprintf("incident %s resolved at %s", inc.ID, time.Unix(inc.ResolvedAt, 0).UTC().Format(time.RFC3339))); err != nil {
		m.logger.Warn("resolve alert failed, will retry", zap.Error(err))
		return
	}
	inc.ResolvedAlertSentAt = m.now().Unix()
}
