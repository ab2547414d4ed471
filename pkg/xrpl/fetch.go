package xrpl

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

const pageLimit = 400

// FetchAllAccountTx walks the full paginated history of an account, newest
// first, following the opaque marker until it is exhausted or maxTxs is
// reached. An account with no history returns an empty slice, not an error.
func FetchAllAccountTx(ctx context.Context, cli Client, account string, maxTxs int, logger *zap.Logger) ([]TxEnvelope, error) {
	var all []TxEnvelope
	var marker json.RawMessage

	for len(all) < maxTxs {
		page, err := cli.AccountTx(ctx, account, pageLimit, marker)
		if err != nil {
			if IsNotFound(err) {
				return all, nil
			}
			return nil, err
		}
		if len(page.Transactions) == 0 {
			break
		}
		all = append(all, page.Transactions...)
		marker = page.Marker
		if marker == nil {
			break
		}
		logger.Debug("fetched transaction page",
			zap.String("account", account),
			zap.Int("total", len(all)))
	}

	return all, nil
}
