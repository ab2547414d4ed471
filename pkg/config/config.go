package config

import (
	"strings"
	"time"

	"github.com/postfiat/pftscan/pkg/utils"
)

// Known PFT testnet accounts. These are defaults only: every component receives
// its address sets through Config so tests can inject synthetic ones.
const (
	DefaultRPCURL      = "wss://rpc.testnet.postfiat.org:6007"
	DefaultMemoAddress = "rwdm72S9YVKkZjeADKU2bbUMuY4vPnSfH7"
	BurnAddress        = "rrrrrrrrrrrrrrrrrrrrrhoLvTp"

	// MarkerHex is the hex encoding of the "pf.ptr" memo type that tags task
	// submissions and reward payouts.
	MarkerHex = "70662e707472"
)

var defaultRewardAddresses = []string{
	"rGBKxoTcavpfEso7ASRELZAMcCMqKa8oFk", // primary reward wallet
	"rKt4peDozpRW9zdYGiTZC54DSNU3Af6pQE", // secondary reward wallet
	"rJNwqDPKSkbqDPNoNxbW6C3KCS84ZaQc96", // additional reward wallet
	"rKddMw1hqMGwfgJvzjbWQHtBQT8hDcZNCP", // memo-funded reward relay
}

// Discovery holds the relay wallet discovery thresholds.
type Discovery struct {
	// Funding-threshold heuristic: candidates whose cumulative memo funding
	// falls in [FundingMin, FundingMax) are treated as relays. The upper bound
	// keeps bulk treasury allocations out.
	FundingMin float64
	FundingMax float64

	// Behavioral heuristic. BehaviorMinFunding is the anti-spam floor on memo
	// funding before a candidate's own history is even fetched.
	BehaviorMinFunding float64
	ScanLimit          int
	Lookback           time.Duration
	MinMarkerTxs       int
	MinRecipients      int
	MinTotalAmount     float64
}

// Lifecycle holds the task correlation windows. These are policy constants,
// not derived invariants; tune with care.
type Lifecycle struct {
	SubmissionWindow   time.Duration
	VerificationWindow time.Duration
	RewardWindow       time.Duration
	ExpiryWindow       time.Duration
}

// Monitor holds the reset watchdog thresholds.
type Monitor struct {
	WatchlistPath string
	StateDir      string
	PollInterval  time.Duration

	// A ledger index regression larger than RollbackLedgers flags a reset.
	RollbackLedgers int64

	// Balance collapse: at least MinCollapsed reward-role wallets each dropping
	// to <= DropFraction of their previous balance, counting only wallets whose
	// previous balance exceeded MinPriorBalance.
	DropFraction    float64
	MinPriorBalance float64
	MinCollapsed    int

	// At least MinMissing reward-role wallets newly failing account lookup.
	MinMissing int

	// Incident resolves once the reward-role aggregate recovers to
	// RecoveryRatio of its pre-incident baseline.
	RecoveryRatio float64
}

// Config is the full scanner configuration, passed explicitly to each
// component at construction time.
type Config struct {
	RPCURL string

	RewardAddresses   []string
	MemoAddress       string
	TreasuryAddresses []string
	MarkerHex         string

	MaxTxPerAccount  int
	BalanceBatchSize int

	Discovery Discovery
	Lifecycle Lifecycle
	Monitor   Monitor

	// BaselinePath is the frozen pre-incident snapshot; AuthoritativePath an
	// optional address -> lifetime-reward override map. Either may be absent.
	BaselinePath      string
	AuthoritativePath string
	OutputPath        string

	CronSpec string
	HTTPAddr string
}

// Default returns the production configuration for the PFT testnet.
func Default() Config {
	return Config{
		RPCURL:           DefaultRPCURL,
		RewardAddresses:  append([]string(nil), defaultRewardAddresses...),
		MemoAddress:      DefaultMemoAddress,
		MarkerHex:        MarkerHex,
		MaxTxPerAccount:  5000,
		BalanceBatchSize: 10,
		Discovery: Discovery{
			FundingMin:         50,
			FundingMax:         100000,
			BehaviorMinFunding: 100,
			ScanLimit:          20,
			Lookback:           30 * 24 * time.Hour,
			MinMarkerTxs:       3,
			MinRecipients:      2,
			MinTotalAmount:     100,
		},
		Lifecycle: Lifecycle{
			SubmissionWindow:   30 * time.Minute,
			VerificationWindow: 10 * time.Minute,
			RewardWindow:       30 * time.Minute,
			ExpiryWindow:       24 * time.Hour,
		},
		Monitor: Monitor{
			WatchlistPath:   "monitor/watchlist.yaml",
			StateDir:        "monitor/state",
			PollInterval:    5 * time.Minute,
			RollbackLedgers: 100,
			DropFraction:    0.1,
			MinPriorBalance: 100,
			MinCollapsed:    2,
			MinMissing:      2,
			RecoveryRatio:   0.9,
		},
		BaselinePath:      "data/baseline.json",
		AuthoritativePath: "",
		OutputPath:        "data/analytics.json",
		CronSpec:          "0 */15 * * * *",
		HTTPAddr:          ":3004",
	}
}

// FromEnv layers environment overrides on top of Default.
func FromEnv() Config {
	cfg := Default()
	cfg.RPCURL = utils.Env("PFT_RPC_URL", cfg.RPCURL)
	cfg.MemoAddress = utils.Env("PFT_MEMO_ADDRESS", cfg.MemoAddress)
	if v := utils.Env("PFT_REWARD_ADDRESSES", ""); v != "" {
		cfg.RewardAddresses = utils.Dedup(strings.Split(v, ","))
	}
	if v := utils.Env("PFT_TREASURY_ADDRESSES", ""); v != "" {
		cfg.TreasuryAddresses = utils.Dedup(strings.Split(v, ","))
	}
	cfg.MaxTxPerAccount = utils.EnvInt("PFT_MAX_TXS", cfg.MaxTxPerAccount)
	cfg.BalanceBatchSize = utils.EnvInt("PFT_BALANCE_BATCH", cfg.BalanceBatchSize)
	cfg.BaselinePath = utils.Env("PFT_BASELINE_PATH", cfg.BaselinePath)
	cfg.AuthoritativePath = utils.Env("PFT_AUTHORITATIVE_PATH", cfg.AuthoritativePath)
	cfg.OutputPath = utils.Env("PFT_OUTPUT_PATH", cfg.OutputPath)
	cfg.CronSpec = utils.Env("SCAN_CRON", cfg.CronSpec)
	cfg.HTTPAddr = utils.Env("ADDR", cfg.HTTPAddr)

	cfg.Discovery.FundingMin = utils.EnvFloat("DISCOVERY_FUNDING_MIN", cfg.Discovery.FundingMin)
	cfg.Discovery.FundingMax = utils.EnvFloat("DISCOVERY_FUNDING_MAX", cfg.Discovery.FundingMax)
	cfg.Discovery.Lookback = utils.EnvDuration("DISCOVERY_LOOKBACK", cfg.Discovery.Lookback)

	cfg.Lifecycle.SubmissionWindow = utils.EnvDuration("TASK_SUBMISSION_WINDOW", cfg.Lifecycle.SubmissionWindow)
	cfg.Lifecycle.VerificationWindow = utils.EnvDuration("TASK_VERIFICATION_WINDOW", cfg.Lifecycle.VerificationWindow)
	cfg.Lifecycle.RewardWindow = utils.EnvDuration("TASK_REWARD_WINDOW", cfg.Lifecycle.RewardWindow)
	cfg.Lifecycle.ExpiryWindow = utils.EnvDuration("TASK_EXPIRY_WINDOW", cfg.Lifecycle.ExpiryWindow)

	cfg.Monitor.WatchlistPath = utils.Env("MONITOR_WATCHLIST", cfg.Monitor.WatchlistPath)
	cfg.Monitor.StateDir = utils.Env("MONITOR_STATE_DIR", cfg.Monitor.StateDir)
	cfg.Monitor.PollInterval = utils.EnvDuration("MONITOR_POLL_INTERVAL", cfg.Monitor.PollInterval)
	cfg.Monitor.MinCollapsed = utils.EnvInt("MONITOR_MIN_COLLAPSED", cfg.Monitor.MinCollapsed)
	cfg.Monitor.MinMissing = utils.EnvInt("MONITOR_MIN_MISSING", cfg.Monitor.MinMissing)
	cfg.Monitor.RecoveryRatio = utils.EnvFloat("MONITOR_RECOVERY_RATIO", cfg.Monitor.RecoveryRatio)
	return cfg
}

// SystemAccounts returns the set of addresses excluded from participant
// classification: reward senders, the memo address, treasuries, and burn.
func (c Config) SystemAccounts() map[string]bool {
	set := utils.StringSet(c.RewardAddresses, c.TreasuryAddresses, []string{c.MemoAddress, BurnAddress})
	return set
}
