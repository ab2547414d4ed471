package monitor

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// RenderImpact produces the human-readable incident impact report: reward
// totals now versus the pre-incident baseline, and per-wallet deltas sorted
// by absolute change.
func RenderImpact(baseline, cur *CycleSnapshot, inc *Incident) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INCIDENT %s (%s)\n", inc.ID, inc.Status)
	fmt.Fprintf(&b, "started: %s\n", time.Unix(inc.StartedAt, 0).UTC().Format(time.RFC3339))
	for _, r := range inc.Reasons {
		fmt.Fprintf(&b, "reason: %s\n", r)
	}
	b.WriteString("\n")

	baseTotal := baseline.RewardTotal()
	curTotal := cur.RewardTotal()
	fmt.Fprintf(&b, "reward wallet aggregate: %.2f (baseline %.2f, delta %+.2f)\n\n",
		curTotal, baseTotal, curTotal-baseTotal)

	baseByAddr := map[string]WalletSnapshot{}
	for _, w := range baseline.Wallets {
		baseByAddr[w.Address] = w
	}

	type impact struct {
		w     WalletSnapshot
		delta float64
	}
	var impacts []impact
	for _, w := range cur.Wallets {
		before := baseByAddr[w.Address]
		impacts = append(impacts, impact{w: w, delta: w.Balance - before.Balance})
	}
	sort.Slice(impacts, func(i, j int) bool {
		di, dj := math.Abs(impacts[i].delta), math.Abs(impacts[j].delta)
		if di != dj {
			return di > dj
		}
		return impacts[i].w.Address < impacts[j].w.Address
	})

	b.WriteString("wallet deltas (by absolute change):\n")
	for _, im := range impacts {
		status := ""
		if !im.w.Exists {
			status = " MISSING"
			if im.w.Reason != "" {
				status += " (" + im.w.Reason + ")"
			}
		}
		fmt.Fprintf(&b, "  %-36s %-9s %12.2f  %+12.2f%s\n",
			im.w.Address, im.w.Role, im.w.Balance, im.delta, status)
	}
	return b.String()
}

// RenderStatus produces the running status file contents.
func RenderStatus(cur *CycleSnapshot, st *State) string {
	var b strings.Builder
	b.WriteString("PFT reset monitor\n")
	fmt.Fprintf(&b, "cycle: %s\n", time.Unix(cur.TakenAt, 0).UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "ledger_index: %d\n", cur.LedgerIndex)

	missing := 0
	for _, w := range cur.Wallets {
		if !w.Exists {
			missing++
		}
	}
	fmt.Fprintf(&b, "wallets: %d (%d missing)\n", len(cur.Wallets), missing)
	fmt.Fprintf(&b, "reward_total: %.2f\n", cur.RewardTotal())

	roles := make([]string, 0, len(cur.RoleTotals))
	for role := range cur.RoleTotals {
		roles = append(roles, string(role))
	}
	sort.Strings(roles)
	for _, role := range roles {
		fmt.Fprintf(&b, "total[%s]: %.2f\n", role, cur.RoleTotals[Role(role)])
	}

	if st.Incident != nil && st.Incident.Status == IncidentActive {
		fmt.Fprintf(&b, "incident: %s active since %s\n",
			st.Incident.ID, time.Unix(st.Incident.StartedAt, 0).UTC().Format(time.RFC3339))
		for _, r := range st.Incident.Reasons {
			fmt.Fprintf(&b, "  reason: %s\n", r)
		}
	} else {
		b.WriteString("incident: none\n")
	}
	return b.String()
}
