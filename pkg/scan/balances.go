package scan

import (
	"context"
	"sort"

	"github.com/alitto/pond/v2"
	"github.com/postfiat/pftscan/pkg/xrpl"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// FetchBalances looks up validated-ledger balances for the given addresses
// with bounded concurrency, so a large recipient set does not hammer the RPC
// endpoint. A failed or missing lookup contributes a zero balance and lands
// in the failed list; it never aborts the batch.
func FetchBalances(ctx context.Context, cli xrpl.Client, addrs []string, batchSize int, logger *zap.Logger) (map[string]float64, []string) {
	if batchSize <= 0 {
		batchSize = 10
	}
	results := xsync.NewMap[string, float64]()
	failures := xsync.NewMap[string, bool]()

	pool := pond.NewPool(batchSize)
	for _, addr := range addrs {
		pool.Submit(func() {
			if ctx.Err() != nil {
				failures.Store(addr, true)
				results.Store(addr, 0)
				return
			}
			state, err := cli.AccountState(ctx, addr)
			if err != nil {
				logger.Warn("balance lookup failed", zap.String("address", addr), zap.Error(err))
				failures.Store(addr, true)
				results.Store(addr, 0)
				return
			}
			results.Store(addr, state.Balance)
		})
	}
	pool.StopAndWait()

	balances := make(map[string]float64, len(addrs))
	results.Range(func(addr string, balance float64) bool {
		balances[addr] = balance
		return true
	})
	var failed []string
	failures.Range(func(addr string, _ bool) bool {
		failed = append(failed, addr)
		return true
	})
	sort.Strings(failed)
	return balances, failed
}
