package scanner

import (
	"context"
	"sort"
	"time"

	"github.com/postfiat/pftscan/pkg/merge"
	"github.com/postfiat/pftscan/pkg/retry"
	"github.com/postfiat/pftscan/pkg/scan"
	"github.com/postfiat/pftscan/pkg/utils"
	"github.com/postfiat/pftscan/pkg/xrpl"
	"go.uber.org/zap"
)

const (
	leaderboardLimit  = 25
	topSubmitterLimit = 25
	recentLimit       = 50
)

// RunOnce executes one full aggregation run: scan, reconcile against the
// frozen baseline, assemble and publish. Either everything succeeds and a new
// snapshot replaces the old one, or the run fails and the previous snapshot
// stays authoritative.
func (a *App) RunOnce(ctx context.Context) (int64, error) {
	var cli *xrpl.WSClient
	dialErr := retry.WithBackoff(ctx, retry.DefaultConfig(), a.Logger, "rpc connect", func() error {
		var err error
		cli, err = xrpl.Dial(ctx, xrpl.Opts{URL: a.Cfg.RPCURL, InsecureTLS: true}, a.Logger)
		return err
	})
	if dialErr != nil {
		return 0, dialErr
	}
	defer func() { _ = cli.Close() }()

	pipeline := scan.NewPipeline(a.Cfg, a.Logger)
	res, err := pipeline.Run(ctx, cli)
	if err != nil {
		return 0, err
	}

	baseline := merge.Load(a.Cfg.BaselinePath, a.Logger)
	authoritative := merge.LoadAuthoritative(a.Cfg.AuthoritativePath, a.Logger)
	engine := merge.NewEngine(baseline, authoritative, a.Logger)

	// Balances back both the leaderboard and reconciliation, so the lookup
	// set covers live recipients and every baseline address.
	balanceAddrs := make([]string, 0, len(res.Rewards.ByRecipient)+len(baseline.Entries))
	for addr := range res.Rewards.ByRecipient {
		balanceAddrs = append(balanceAddrs, addr)
	}
	for addr := range baseline.Entries {
		balanceAddrs = append(balanceAddrs, addr)
	}
	balanceAddrs = utils.Dedup(balanceAddrs)
	sort.Strings(balanceAddrs)
	a.Logger.Info("fetching balances", zap.Int("addresses", len(balanceAddrs)))
	balances, failedBalances := scan.FetchBalances(ctx, cli, balanceAddrs, a.Cfg.BalanceBatchSize, a.Logger)

	snapshot := a.assemble(res, engine, balances, failedBalances)
	if err := snapshot.Publish(a.Cfg.OutputPath); err != nil {
		return res.LedgerIndex, err
	}
	return res.LedgerIndex, nil
}

func (a *App) assemble(res *scan.Result, engine *merge.Engine, balances map[string]float64, failedBalances []string) *scan.Snapshot {
	leaderboard := engine.Leaderboard(res.Rewards.ByRecipient, balances)
	dailyActivity := engine.DailyActivity(freshDailyActivity(res.Rewards))
	dailySubs := engine.DailySubmissions(freshDailySubmissions(res.Submissions))
	uniqueEarners := engine.UniqueEarners(res.Rewards.Recipients)
	uniqueSubmitters := engine.UniqueSubmitters(res.Submissions.Submitters)

	// Lifetime totals come from the merged outputs, never from the live scan
	// alone: the live scan undercounts everything before the chain reset.
	var totalDistributed float64
	for _, row := range leaderboard {
		totalDistributed += row.TotalEarned
	}
	totalDistributed = utils.Round2(totalDistributed)
	var totalRewardsPaid int
	for _, d := range dailyActivity {
		totalRewardsPaid += d.TxCount
	}
	var totalSubmissions int
	for _, d := range dailySubs {
		totalSubmissions += d.Submissions
	}

	topSubmitters := make([]scan.TopSubmitter, 0, len(res.Submissions.BySender))
	for addr, count := range res.Submissions.BySender {
		topSubmitters = append(topSubmitters, scan.TopSubmitter{Address: addr, Submissions: count})
	}
	sort.Slice(topSubmitters, func(i, j int) bool {
		if topSubmitters[i].Submissions != topSubmitters[j].Submissions {
			return topSubmitters[i].Submissions > topSubmitters[j].Submissions
		}
		return topSubmitters[i].Address < topSubmitters[j].Address
	})

	return &scan.Snapshot{
		Metadata: scan.Metadata{
			GeneratedAt:          time.Now().UTC().Format(time.RFC3339),
			LedgerIndex:          res.LedgerIndex,
			RewardAddresses:      res.RewardSenders,
			BehavioralRelays:     res.Behavioral,
			MemoAddress:          a.Cfg.MemoAddress,
			RewardTxsFetched:     res.RewardTxCount,
			MemoTxsFetched:       res.MemoTxCount,
			FailedBalanceLookups: failedBalances,
			FailedCandidateScans: res.FailedCandidateScans,
			FailedAccountFetches: res.FailedAccountFetches,
		},
		NetworkTotals: scan.NetworkTotals{
			TotalDistributed: totalDistributed,
			UniqueEarners:    uniqueEarners,
			TotalRewardsPaid: totalRewardsPaid,
			TotalSubmissions: totalSubmissions,
			UniqueSubmitters: uniqueSubmitters,
		},
		Rewards: scan.RewardsReport{
			TotalDistributed:        totalDistributed,
			UniqueRecipients:        uniqueEarners,
			TotalRewardTransactions: totalRewardsPaid,
			Leaderboard:             capLeaderboard(leaderboard, leaderboardLimit),
			DailyActivity:           dailyActivity,
			RecentRewards:           capRewards(res.Rewards.Events, recentLimit),
			NonTaskDistributions: scan.NonTaskReport{
				Total:   utils.Round2(res.Rewards.NonTaskTotal),
				TxCount: len(res.Rewards.NonTask),
				Recent:  capRewards(res.Rewards.NonTask, recentLimit),
			},
		},
		Submissions: scan.SubmissionsReport{
			TotalSubmissions:  totalSubmissions,
			UniqueSubmitters:  uniqueSubmitters,
			TopSubmitters:     capSubmitters(topSubmitters, topSubmitterLimit),
			DailySubmissions:  dailySubs,
			RecentSubmissions: capSubmissions(res.Submissions.Events, recentLimit),
		},
		TaskLifecycle: res.Lifecycle,
	}
}

func freshDailyActivity(stats *scan.RewardStats) []scan.DailyActivity {
	out := make([]scan.DailyActivity, 0, len(stats.ByDay))
	for date, agg := range stats.ByDay {
		out = append(out, scan.DailyActivity{
			Date:    date,
			Amount:  utils.Round2(agg.Amount),
			TxCount: agg.TxCount,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func freshDailySubmissions(stats *scan.SubmissionStats) []scan.DailySubmissions {
	out := make([]scan.DailySubmissions, 0, len(stats.ByDay))
	for date, count := range stats.ByDay {
		out = append(out, scan.DailySubmissions{Date: date, Submissions: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func capLeaderboard(in []scan.LeaderboardEntry, n int) []scan.LeaderboardEntry {
	if len(in) > n {
		return in[:n]
	}
	return in
}

func capRewards(in []scan.RewardEvent, n int) []scan.RewardEvent {
	if len(in) > n {
		return in[:n]
	}
	return in
}

func capSubmissions(in []scan.SubmissionEvent, n int) []scan.SubmissionEvent {
	if len(in) > n {
		return in[:n]
	}
	return in
}

func capSubmitters(in []scan.TopSubmitter, n int) []scan.TopSubmitter {
	if len(in) > n {
		return in[:n]
	}
	return in
}
