package scan

import (
	"sort"

	"github.com/postfiat/pftscan/pkg/xrpl"
)

// SubmissionStats is the submission classifier's output for one run.
type SubmissionStats struct {
	// Events holds marker-tagged submissions, newest first.
	Events     []SubmissionEvent
	BySender   map[string]int
	ByDay      map[string]int
	Submitters map[string]bool
}

// ClassifySubmissions turns payments into the memo address into submission
// events. The marker memo is required; system accounts never count as
// submitters; duplicates are dropped by hash.
func ClassifySubmissions(txs []xrpl.TxEnvelope, memoAddress string, system map[string]bool, markerHex string) *SubmissionStats {
	stats := &SubmissionStats{
		BySender:   map[string]int{},
		ByDay:      map[string]int{},
		Submitters: map[string]bool{},
	}
	seen := map[string]bool{}

	for i := range txs {
		tx := &txs[i].Tx
		if tx.TransactionType != "Payment" || tx.Destination != memoAddress {
			continue
		}
		sender := tx.Account
		if sender == "" || system[sender] {
			continue
		}
		if !tx.HasMarker(markerHex) {
			continue
		}

		ts := tx.UnixDate()
		hash := tx.Hash
		if hash == "" {
			hash = EventIdentity(sender, memoAddress, ts, tx.Amount.Units())
		}
		if seen[hash] {
			continue
		}
		seen[hash] = true

		ev := SubmissionEvent{
			Hash:      hash,
			Sender:    sender,
			Timestamp: ts,
			Date:      xrpl.DayUTC(ts),
		}
		stats.Events = append(stats.Events, ev)
		stats.BySender[sender]++
		stats.ByDay[ev.Date]++
		stats.Submitters[sender] = true
	}

	sort.SliceStable(stats.Events, func(i, j int) bool {
		return stats.Events[i].Timestamp > stats.Events[j].Timestamp
	})
	return stats
}
