package scan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LeaderboardEntry is one row of the published reward leaderboard. TotalEarned
// is cumulative and monotonic non-decreasing across merges; the merge engine
// is the sole writer of the final published value.
type LeaderboardEntry struct {
	Address     string  `json:"address"`
	TotalEarned float64 `json:"total_pft"`
	Balance     float64 `json:"balance"`
}

// DailyActivity is one day of reward flow.
type DailyActivity struct {
	Date    string  `json:"date"`
	Amount  float64 `json:"pft"`
	TxCount int     `json:"tx_count"`
}

// DailySubmissions is one day of submission counts.
type DailySubmissions struct {
	Date        string `json:"date"`
	Submissions int    `json:"submissions"`
}

type TopSubmitter struct {
	Address     string `json:"address"`
	Submissions int    `json:"submissions"`
}

// Metadata describes a scan run: when, against what ledger, and with which
// discovered address sets. Fields are additive-only across versions.
type Metadata struct {
	GeneratedAt          string          `json:"generated_at"`
	LedgerIndex          int64           `json:"ledger_index"`
	RewardAddresses      []string        `json:"reward_addresses"`
	BehavioralRelays     []BehaviorMatch `json:"behavioral_relays"`
	MemoAddress          string          `json:"memo_address"`
	RewardTxsFetched     int             `json:"reward_txs_fetched"`
	MemoTxsFetched       int             `json:"memo_txs_fetched"`
	FailedBalanceLookups []string        `json:"failed_balance_lookups,omitempty"`
	FailedCandidateScans []string        `json:"failed_candidate_scans,omitempty"`
	FailedAccountFetches []string        `json:"failed_account_fetches,omitempty"`
}

type NetworkTotals struct {
	TotalDistributed float64 `json:"total_pft_distributed"`
	UniqueEarners    int     `json:"unique_earners"`
	TotalRewardsPaid int     `json:"total_rewards_paid"`
	TotalSubmissions int     `json:"total_submissions"`
	UniqueSubmitters int     `json:"unique_submitters"`
}

// NonTaskReport covers qualifying reward-wallet payments that carried no
// marker memo: operational transfers, not task payouts.
type NonTaskReport struct {
	Total   float64       `json:"total_pft"`
	TxCount int           `json:"tx_count"`
	Recent  []RewardEvent `json:"recent"`
}

type RewardsReport struct {
	TotalDistributed        float64            `json:"total_pft_distributed"`
	UniqueRecipients        int                `json:"unique_recipients"`
	TotalRewardTransactions int                `json:"total_reward_transactions"`
	Leaderboard             []LeaderboardEntry `json:"leaderboard"`
	DailyActivity           []DailyActivity    `json:"daily_activity"`
	RecentRewards           []RewardEvent      `json:"recent_rewards"`
	NonTaskDistributions    NonTaskReport      `json:"non_task_distributions"`
}

type SubmissionsReport struct {
	TotalSubmissions  int                `json:"total_submissions"`
	UniqueSubmitters  int                `json:"unique_submitters"`
	TopSubmitters     []TopSubmitter     `json:"top_submitters"`
	DailySubmissions  []DailySubmissions `json:"daily_submissions"`
	RecentSubmissions []SubmissionEvent  `json:"recent_submissions"`
}

// Snapshot is the single published JSON document. Its shape is the output
// contract the dashboard and verification scripts depend on; changes must be
// additive (new optional fields only).
type Snapshot struct {
	Metadata      Metadata          `json:"metadata"`
	NetworkTotals NetworkTotals     `json:"network_totals"`
	Rewards       RewardsReport     `json:"rewards"`
	Submissions   SubmissionsReport `json:"submissions"`
	TaskLifecycle *LifecycleStats   `json:"task_lifecycle"`
}

// Publish writes the snapshot next to path and atomically swaps it in, so a
// reader never observes a partial document and a failed run leaves the
// previous snapshot authoritative.
func (s *Snapshot) Publish(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("swap snapshot: %w", err)
	}
	return nil
}
