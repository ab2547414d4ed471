package xrpl

import (
	"encoding/json"
	"strconv"
)

// RippleEpoch is the offset between the ledger's native timestamps and Unix
// time (seconds since 2000-01-01 UTC).
const RippleEpoch = 946684800

// DropsPerUnit converts drops-denominated amounts to display units.
const DropsPerUnit = 1_000_000

// Amount is a drops-denominated payment amount. The ledger encodes native
// amounts as integer strings; some responses carry a bare number. Anything
// else (issued-currency objects, junk) unmarshals as not-valid rather than
// failing the surrounding transaction.
type Amount struct {
	Drops int64
	Valid bool
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	a.Drops, a.Valid = 0, false
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if d, perr := strconv.ParseInt(s, 10, 64); perr == nil {
			a.Drops, a.Valid = d, true
		}
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		a.Drops, a.Valid = int64(n), true
	}
	return nil
}

// Units returns the amount in display units.
func (a Amount) Units() float64 {
	return float64(a.Drops) / DropsPerUnit
}

// Memo is one entry of a transaction's Memos array. Fields are hex-encoded.
type Memo struct {
	MemoType   string `json:"MemoType"`
	MemoData   string `json:"MemoData"`
	MemoFormat string `json:"MemoFormat"`
}

type MemoWrapper struct {
	Memo Memo `json:"Memo"`
}

// Transaction is the subset of ledger transaction fields the scanner reads.
type Transaction struct {
	Hash            string        `json:"hash"`
	TransactionType string        `json:"TransactionType"`
	Account         string        `json:"Account"`
	Destination     string        `json:"Destination"`
	Amount          Amount        `json:"Amount"`
	Date            int64         `json:"date"` // ledger-native seconds
	Memos           []MemoWrapper `json:"Memos"`
}

// TxEnvelope is one account_tx result entry.
type TxEnvelope struct {
	Tx        Transaction     `json:"tx"`
	Meta      json.RawMessage `json:"meta"`
	Validated bool            `json:"validated"`
}

// AccountTxPage is one page of an account's transaction history. Marker is an
// opaque continuation cursor; nil means the history is exhausted.
type AccountTxPage struct {
	Account      string          `json:"account"`
	Transactions []TxEnvelope    `json:"transactions"`
	Marker       json.RawMessage `json:"marker"`
}

// AccountState is the balance/sequence view of an account at the validated
// ledger. Exists is false when the account lookup failed (typically
// actNotFound after a chain reset).
type AccountState struct {
	Address  string
	Drops    int64
	Balance  float64
	Sequence uint32
	Exists   bool
	Reason   string
}
