package scan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/postfiat/pftscan/pkg/config"
	"github.com/postfiat/pftscan/pkg/utils"
	"github.com/postfiat/pftscan/pkg/xrpl"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// Result is the output of one scan phase, before baseline reconciliation.
type Result struct {
	LedgerIndex   int64
	MemoTxCount   int
	RewardTxCount int

	// RewardSenders is the full reward-sender set for the run: configured
	// addresses plus both discovery heuristics. Behavioral carries the
	// behavior-confirmed subset separately for output metadata.
	RewardSenders []string
	Behavioral    []BehaviorMatch

	FailedCandidateScans []string
	FailedAccountFetches []string

	Rewards     *RewardStats
	Submissions *SubmissionStats
	Tasks       []InferredTask
	Lifecycle   *LifecycleStats
}

// Pipeline runs the analytics scan: memo history, relay discovery, reward and
// submission classification, and task correlation. Reconciliation with the
// frozen baseline happens downstream.
type Pipeline struct {
	cfg    config.Config
	logger *zap.Logger
	now    func() time.Time
}

func NewPipeline(cfg config.Config, logger *zap.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, logger: logger, now: time.Now}
}

// Run executes the scan phase against a connected client. The memo history
// fetch is load-bearing (discovery and submissions both derive from it) so
// its failure fails the run; a single reward address failing to fetch only
// drops that address's contribution.
func (p *Pipeline) Run(ctx context.Context, cli xrpl.Client) (*Result, error) {
	res := &Result{}

	ledger, err := cli.LedgerCurrent(ctx)
	if err != nil {
		p.logger.Warn("ledger_current probe failed", zap.Error(err))
	}
	res.LedgerIndex = ledger

	p.logger.Info("fetching memo history", zap.String("address", p.cfg.MemoAddress))
	memoTxs, err := xrpl.FetchAllAccountTx(ctx, cli, p.cfg.MemoAddress, p.cfg.MaxTxPerAccount, p.logger)
	if err != nil {
		return nil, fmt.Errorf("fetch memo history: %w", err)
	}
	res.MemoTxCount = len(memoTxs)

	disc := NewDiscoverer(p.cfg, cli, p.logger)
	relays := disc.DiscoverRelays(memoTxs)
	behavioral, failedScans := disc.DiscoverRelaysByBehavior(ctx, memoTxs)
	res.Behavioral = behavioral
	res.FailedCandidateScans = failedScans

	senders := append([]string(nil), p.cfg.RewardAddresses...)
	senders = append(senders, relays...)
	for _, m := range behavioral {
		senders = append(senders, m.Address)
	}
	senders = utils.Dedup(senders)
	res.RewardSenders = senders
	p.logger.Info("reward-sender set resolved",
		zap.Int("configured", len(p.cfg.RewardAddresses)),
		zap.Int("funding_relays", len(relays)),
		zap.Int("behavioral_relays", len(behavioral)))

	// Each sender's history is an independent paginated scan, so issue one
	// task per address and join the slots afterwards.
	txsByAddr := xsync.NewMap[string, []xrpl.TxEnvelope]()
	failed := xsync.NewMap[string, bool]()
	pool := pond.NewPool(len(senders))
	group := pool.NewGroupContext(ctx)
	for _, addr := range senders {
		group.Submit(func() {
			txs, fetchErr := xrpl.FetchAllAccountTx(ctx, cli, addr, p.cfg.MaxTxPerAccount, p.logger)
			if fetchErr != nil {
				p.logger.Warn("reward history fetch failed",
					zap.String("address", addr), zap.Error(fetchErr))
				failed.Store(addr, true)
				return
			}
			txsByAddr.Store(addr, txs)
		})
	}
	if waitErr := group.Wait(); waitErr != nil && !errors.Is(waitErr, context.Canceled) && !errors.Is(waitErr, pond.ErrGroupStopped) {
		p.logger.Warn("parallel history fetch encountered error", zap.Error(waitErr))
	}
	pool.StopAndWait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rewardTxs []xrpl.TxEnvelope
	for _, addr := range senders {
		if txs, ok := txsByAddr.Load(addr); ok {
			rewardTxs = append(rewardTxs, txs...)
		}
	}
	failed.Range(func(addr string, _ bool) bool {
		res.FailedAccountFetches = append(res.FailedAccountFetches, addr)
		return true
	})
	sort.Strings(res.FailedAccountFetches)
	res.RewardTxCount = len(rewardTxs)

	senderSet := utils.StringSet(senders)
	system := p.cfg.SystemAccounts()
	for addr := range senderSet {
		system[addr] = true
	}

	res.Rewards = ClassifyRewards(rewardTxs, senderSet, system, p.cfg.MarkerHex)
	res.Submissions = ClassifySubmissions(memoTxs, p.cfg.MemoAddress, system, p.cfg.MarkerHex)

	res.Tasks, res.Lifecycle = NewCorrelator(p.cfg.Lifecycle).Correlate(
		res.Submissions.Events, res.Rewards.Events, p.now())

	p.logger.Info("scan phase complete",
		zap.Int("memo_txs", res.MemoTxCount),
		zap.Int("reward_txs", res.RewardTxCount),
		zap.Int("reward_events", len(res.Rewards.Events)),
		zap.Int("submissions", len(res.Submissions.Events)),
		zap.Int("tasks_inferred", res.Lifecycle.TotalTasks))
	return res, nil
}
