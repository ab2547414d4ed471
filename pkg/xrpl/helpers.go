package xrpl

import (
	"strings"
	"time"
)

// UnixFromRipple converts a ledger-native timestamp to Unix seconds. A zero
// input stays zero so missing close times remain recognizable.
func UnixFromRipple(rippleTS int64) int64 {
	if rippleTS == 0 {
		return 0
	}
	return rippleTS + RippleEpoch
}

// DayUTC buckets a Unix timestamp into a UTC calendar day.
func DayUTC(unixTS int64) string {
	if unixTS == 0 {
		return "unknown"
	}
	return time.Unix(unixTS, 0).UTC().Format("2006-01-02")
}

// HasMarker reports whether any memo's type contains the given hex marker.
func (t *Transaction) HasMarker(markerHex string) bool {
	for _, m := range t.Memos {
		if strings.Contains(strings.ToLower(m.Memo.MemoType), markerHex) {
			return true
		}
	}
	return false
}

// IsPayment reports whether the transaction is a payment with a usable native
// amount.
func (t *Transaction) IsPayment() bool {
	return t.TransactionType == "Payment" && t.Amount.Valid
}

// UnixDate returns the transaction close time as Unix seconds.
func (t *Transaction) UnixDate() int64 {
	return UnixFromRipple(t.Date)
}
