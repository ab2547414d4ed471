package monitor

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Role classifies a watched wallet. Reward-role wallets (primary and relay)
// drive reset detection and incident resolution; the rest are observed for
// context.
type Role string

const (
	RolePrimary  Role = "primary"
	RoleRelay    Role = "relay"
	RoleMemo     Role = "memo"
	RoleTreasury Role = "treasury"
	RoleExtra    Role = "extra"
)

// IsReward reports whether the role counts toward the reward aggregate.
func (r Role) IsReward() bool {
	return r == RolePrimary || r == RoleRelay
}

// Wallet is one watchlist entry.
type Wallet struct {
	Address string `yaml:"address"`
	Role    Role   `yaml:"role"`
	Label   string `yaml:"label,omitempty"`
}

// Watchlist is the YAML-configured wallet list the monitor polls.
type Watchlist struct {
	Wallets []Wallet `yaml:"wallets"`
}

// LoadWatchlist reads the watchlist file.
func LoadWatchlist(path string) (*Watchlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read watchlist: %w", err)
	}
	var wl Watchlist
	if err := yaml.Unmarshal(data, &wl); err != nil {
		return nil, fmt.Errorf("parse watchlist: %w", err)
	}
	if len(wl.Wallets) == 0 {
		return nil, fmt.Errorf("watchlist %s has no wallets", path)
	}
	for i, w := range wl.Wallets {
		if w.Address == "" {
			return nil, fmt.Errorf("watchlist entry %d has no address", i)
		}
		if w.Role == "" {
			wl.Wallets[i].Role = RoleExtra
		}
	}
	return &wl, nil
}

// WalletSnapshot is one wallet's state in a poll cycle. Exists is false when
// the account lookup failed, with the failure captured in Reason.
type WalletSnapshot struct {
	Address  string  `json:"address"`
	Role     Role    `json:"role"`
	Label    string  `json:"label,omitempty"`
	Balance  float64 `json:"balance"`
	Sequence uint32  `json:"sequence"`
	Exists   bool    `json:"exists"`
	Reason   string  `json:"reason,omitempty"`
}

// CycleSnapshot is the full state of one poll cycle. Snapshots are append-only
// history, one file per cycle.
type CycleSnapshot struct {
	TakenAt     int64            `json:"taken_at"`
	LedgerIndex int64            `json:"ledger_index"`
	Wallets     []WalletSnapshot `json:"wallets"`
	RoleTotals  map[Role]float64 `json:"role_totals"`
}

// RewardTotal is the aggregate balance of reward-role wallets.
func (c *CycleSnapshot) RewardTotal() float64 {
	var total float64
	for _, w := range c.Wallets {
		if w.Role.IsReward() {
			total += w.Balance
		}
	}
	return total
}

// IncidentStatus is the incident lifecycle state.
type IncidentStatus string

const (
	IncidentActive   IncidentStatus = "active"
	IncidentResolved IncidentStatus = "resolved"
)

// Incident is one detected anomaly episode. Alert timestamps gate re-sending
// so each phase transition notifies exactly once.
type Incident struct {
	ID                  string         `json:"id"`
	Status              IncidentStatus `json:"status"`
	StartedAt           int64          `json:"started_at"`
	ResolvedAt          int64          `json:"resolved_at,omitempty"`
	Reasons             []string       `json:"reasons"`
	BaselineSnapshotRef string         `json:"baseline_snapshot_ref"`
	AlertSentAt         int64          `json:"alert_sent_at,omitempty"`
	ResolvedAlertSentAt int64          `json:"resolved_alert_sent_at,omitempty"`
}

// State is the monitor's running state file: the baseline pointer (the "known
// normal" cycle), the last cycle pointer, and the active incident if any.
type State struct {
	BaselineRef string    `json:"baseline_ref"`
	LastRef     string    `json:"last_ref"`
	Incident    *Incident `json:"incident,omitempty"`
}
