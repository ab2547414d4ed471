package xrpl

import (
	"context"
	"encoding/json"
)

// Client captures the two ledger RPC request shapes the scanner consumes:
// paginated account history and current account state. Implementations are
// safe for use from multiple goroutines.
type Client interface {
	// AccountTx returns one page of the account's history, newest first.
	// Pass the previous page's Marker to continue; nil starts from the top.
	AccountTx(ctx context.Context, account string, limit int, marker json.RawMessage) (*AccountTxPage, error)

	// AccountState returns the account's balance and sequence at the
	// validated ledger. A missing account is not an error: Exists is false.
	AccountState(ctx context.Context, address string) (*AccountState, error)

	// LedgerCurrent returns the current ledger index, used as a liveness
	// indicator and for rollback detection.
	LedgerCurrent(ctx context.Context) (int64, error)

	Close() error
}
