package monitor

import (
	"fmt"

	"github.com/postfiat/pftscan/pkg/config"
)

// DetectTriggers compares a cycle against the immediately preceding one and
// returns the reasons that flag a ledger reset. Conditions are independent;
// any single one is enough to open an incident. A nil previous cycle (first
// run) never triggers.
func DetectTriggers(prev, cur *CycleSnapshot, cfg config.Monitor) []string {
	if prev == nil || cur == nil {
		return nil
	}
	var reasons []string

	if prev.LedgerIndex > 0 && cur.LedgerIndex > 0 {
		if regress := prev.LedgerIndex - cur.LedgerIndex; regress > cfg.RollbackLedgers {
			reasons = append(reasons, fmt.Sprintf(
				"ledger index regressed by %d (from %d to %d)", regress, prev.LedgerIndex, cur.LedgerIndex))
		}
	}

	prevByAddr := map[string]WalletSnapshot{}
	for _, w := range prev.Wallets {
		prevByAddr[w.Address] = w
	}

	collapsed := 0
	missing := 0
	for _, w := range cur.Wallets {
		if !w.Role.IsReward() {
			continue
		}
		before, ok := prevByAddr[w.Address]
		if !ok {
			continue
		}
		if before.Exists && !w.Exists {
			missing++
			continue
		}
		// Near-empty wallets are noise; only count drops from a real balance.
		if before.Balance > cfg.MinPriorBalance && w.Balance <= before.Balance*cfg.DropFraction {
			collapsed++
		}
	}

	if collapsed >= cfg.MinCollapsed {
		reasons = append(reasons, fmt.Sprintf(
			"%d reward wallets collapsed to <=%.0f%% of prior balance", collapsed, cfg.DropFraction*100))
	}
	if missing >= cfg.MinMissing {
		reasons = append(reasons, fmt.Sprintf("%d reward wallets newly missing", missing))
	}
	return reasons
}

// Resolved reports whether the reward aggregate has recovered to the
// configured fraction of its pre-incident baseline.
func Resolved(baseline, cur *CycleSnapshot, recoveryRatio float64) bool {
	if baseline == nil || cur == nil {
		return false
	}
	return cur.RewardTotal() >= baseline.RewardTotal()*recoveryRatio
}
