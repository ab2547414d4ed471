package scan

import (
	"sort"

	"github.com/postfiat/pftscan/pkg/xrpl"
)

// RewardStats is the reward classifier's output for one run.
type RewardStats struct {
	// Events holds marker-tagged payouts, newest first.
	Events []RewardEvent

	// NonTask holds qualifying payments that lack the marker memo: legitimate
	// transfers from reward wallets that are not task payouts. Reported, but
	// excluded from distribution totals and earnings.
	NonTask      []RewardEvent
	NonTaskTotal float64

	TotalDistributed float64
	ByRecipient      map[string]float64
	ByDay            map[string]*DayAgg
	Recipients       map[string]bool
}

// ClassifyRewards turns raw payment transactions into reward events. Only
// outbound payments from the reward-sender set count; non-positive or
// unparsable amounts and payments to system accounts are dropped, and events
// are deduplicated by transaction hash (synthetic identity when the ledger
// omitted one).
func ClassifyRewards(txs []xrpl.TxEnvelope, senders, system map[string]bool, markerHex string) *RewardStats {
	stats := &RewardStats{
		ByRecipient: map[string]float64{},
		ByDay:       map[string]*DayAgg{},
		Recipients:  map[string]bool{},
	}
	seen := map[string]bool{}

	for i := range txs {
		tx := &txs[i].Tx
		if !tx.IsPayment() || !senders[tx.Account] {
			continue
		}
		amount := tx.Amount.Units()
		if amount <= 0 {
			continue
		}
		recipient := tx.Destination
		if recipient == "" || system[recipient] {
			continue
		}

		ts := tx.UnixDate()
		hash := tx.Hash
		if hash == "" {
			hash = EventIdentity(tx.Account, recipient, ts, amount)
		}
		if seen[hash] {
			continue
		}
		seen[hash] = true

		ev := RewardEvent{
			Hash:      hash,
			Recipient: recipient,
			Amount:    amount,
			Timestamp: ts,
			Date:      xrpl.DayUTC(ts),
		}

		if !tx.HasMarker(markerHex) {
			stats.NonTask = append(stats.NonTask, ev)
			stats.NonTaskTotal += amount
			continue
		}

		stats.Events = append(stats.Events, ev)
		stats.TotalDistributed += amount
		stats.ByRecipient[recipient] += amount
		stats.Recipients[recipient] = true
		day := stats.ByDay[ev.Date]
		if day == nil {
			day = &DayAgg{}
			stats.ByDay[ev.Date] = day
		}
		day.Amount += amount
		day.TxCount++
	}

	sort.SliceStable(stats.Events, func(i, j int) bool {
		return stats.Events[i].Timestamp > stats.Events[j].Timestamp
	})
	sort.SliceStable(stats.NonTask, func(i, j int) bool {
		return stats.NonTask[i].Timestamp > stats.NonTask[j].Timestamp
	})
	return stats
}
