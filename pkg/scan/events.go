package scan

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// RewardEvent is one marker-tagged payout from a reward-sender wallet.
// Immutable once created; deduplicated by Hash.
type RewardEvent struct {
	Hash      string  `json:"hash"`
	Recipient string  `json:"recipient"`
	Amount    float64 `json:"pft"`
	Timestamp int64   `json:"timestamp"`
	Date      string  `json:"date"`
}

// SubmissionEvent is one marker-tagged payment into the memo address.
type SubmissionEvent struct {
	Hash      string `json:"hash"`
	Sender    string `json:"sender"`
	Timestamp int64  `json:"timestamp"`
	Date      string `json:"date"`
}

// EventIdentity derives a synthetic dedup id for transactions the ledger
// returned without a hash. The real ledger hash is always preferred; this is
// a fallback only.
func EventIdentity(sender, recipient string, timestamp int64, amount float64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%.6f", sender, recipient, timestamp, amount)))
	return "synthetic:" + hex.EncodeToString(sum[:16])
}

// DayAgg is a per-day amount/count pair used by daily activity series.
type DayAgg struct {
	Amount  float64
	TxCount int
}
