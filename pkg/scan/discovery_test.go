package scan

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/postfiat/pftscan/pkg/config"
	"github.com/postfiat/pftscan/pkg/xrpl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeClient serves canned histories and balances for scan-level tests.
type fakeClient struct {
	txs      map[string][]xrpl.TxEnvelope
	balances map[string]float64
	failing  map[string]bool
}

func (f *fakeClient) AccountTx(_ context.Context, account string, _ int, marker json.RawMessage) (*xrpl.AccountTxPage, error) {
	if f.failing[account] {
		return nil, &xrpl.RPCError{Code: "tooBusy"}
	}
	if marker != nil {
		return &xrpl.AccountTxPage{Account: account}, nil
	}
	return &xrpl.AccountTxPage{Account: account, Transactions: f.txs[account]}, nil
}

func (f *fakeClient) AccountState(_ context.Context, address string) (*xrpl.AccountState, error) {
	if f.failing[address] {
		return nil, &xrpl.RPCError{Code: "tooBusy"}
	}
	balance, ok := f.balances[address]
	if !ok {
		return &xrpl.AccountState{Address: address, Reason: "actNotFound"}, nil
	}
	return &xrpl.AccountState{Address: address, Balance: balance, Exists: true}, nil
}

func (f *fakeClient) LedgerCurrent(context.Context) (int64, error) { return 1000, nil }
func (f *fakeClient) Close() error                                 { return nil }

func testConfig() config.Config {
	cfg := config.Default()
	cfg.RewardAddresses = []string{"rReward1", "rReward2"}
	cfg.MemoAddress = "rMemo"
	cfg.TreasuryAddresses = []string{"rTreasury"}
	return cfg
}

func markerPayment(hash, from, to string, units float64, unixTS int64) xrpl.TxEnvelope {
	env := plainPayment(hash, from, to, units, unixTS)
	env.Tx.Memos = []xrpl.MemoWrapper{{Memo: xrpl.Memo{MemoType: config.MarkerHex}}}
	return env
}

func plainPayment(hash, from, to string, units float64, unixTS int64) xrpl.TxEnvelope {
	return xrpl.TxEnvelope{Tx: xrpl.Transaction{
		Hash:            hash,
		TransactionType: "Payment",
		Account:         from,
		Destination:     to,
		Amount:          xrpl.Amount{Drops: int64(units * xrpl.DropsPerUnit), Valid: true},
		Date:            unixTS - xrpl.RippleEpoch,
	}}
}

func TestDiscoverRelaysFundingBand(t *testing.T) {
	cfg := testConfig()
	cfg.Discovery.FundingMin = 50
	cfg.Discovery.FundingMax = 1000
	ts := int64(1_750_000_000)

	memoTxs := []xrpl.TxEnvelope{
		plainPayment("F1", "rMemo", "rInBand", 100, ts),       // qualifies
		plainPayment("F2", "rMemo", "rBelow", 49, ts),         // under the band
		plainPayment("F3", "rMemo", "rTreasuryish", 1000, ts), // at the open upper bound
		plainPayment("F4", "rMemo", "rTreasury", 500, ts),     // excluded system account
		plainPayment("F5", "rMemo", "rReward1", 200, ts),      // excluded reward address
		plainPayment("F6", "rOther", "rStranger", 300, ts),    // not a memo outbound
		// Two transfers summing into the band.
		plainPayment("F7", "rMemo", "rSummed", 30, ts),
		plainPayment("F8", "rMemo", "rSummed", 30, ts-60),
	}

	disc := NewDiscoverer(cfg, &fakeClient{}, zaptest.NewLogger(t))
	relays := disc.DiscoverRelays(memoTxs)
	assert.Equal(t, []string{"rInBand", "rSummed"}, relays)
}

func TestDiscoverRelaysByBehaviorTripleConjunction(t *testing.T) {
	cfg := testConfig()
	cfg.Discovery.BehaviorMinFunding = 100
	cfg.Discovery.MinMarkerTxs = 3
	cfg.Discovery.MinRecipients = 2
	cfg.Discovery.MinTotalAmount = 100

	now := time.Unix(1_750_000_000, 0)
	ts := now.Unix() - 3600

	memoTxs := []xrpl.TxEnvelope{
		plainPayment("F1", "rMemo", "rOneBig", 500, ts),
		plainPayment("F2", "rMemo", "rOneRecipient", 500, ts),
		plainPayment("F3", "rMemo", "rGenuine", 500, ts),
	}

	cli := &fakeClient{txs: map[string][]xrpl.TxEnvelope{
		// One marker tx to 5 recipients' worth of value in a single transfer:
		// passes amount, fails the tx-count minimum.
		"rOneBig": {markerPayment("B1", "rOneBig", "rU1", 500, ts)},
		// Five marker txs to a single recipient: passes count and amount,
		// fails the distinct-recipient minimum.
		"rOneRecipient": {
			markerPayment("C1", "rOneRecipient", "rU1", 200, ts),
			markerPayment("C2", "rOneRecipient", "rU1", 200, ts-10),
			markerPayment("C3", "rOneRecipient", "rU1", 200, ts-20),
			markerPayment("C4", "rOneRecipient", "rU1", 200, ts-30),
			markerPayment("C5", "rOneRecipient", "rU1", 200, ts-40),
		},
		// Four marker txs, three recipients, 150 total: clears all three.
		"rGenuine": {
			markerPayment("D1", "rGenuine", "rU1", 40, ts),
			markerPayment("D2", "rGenuine", "rU2", 40, ts-10),
			markerPayment("D3", "rGenuine", "rU3", 40, ts-20),
			markerPayment("D4", "rGenuine", "rU1", 30, ts-30),
		},
	}}

	disc := NewDiscoverer(cfg, cli, zaptest.NewLogger(t))
	disc.now = func() time.Time { return now }

	matches, failed := disc.DiscoverRelaysByBehavior(context.Background(), memoTxs)
	assert.Empty(t, failed)
	require.Len(t, matches, 1)
	m := matches[0]
	assert.Equal(t, "rGenuine", m.Address)
	assert.Equal(t, 4, m.MarkerTxCount)
	assert.Equal(t, 3, m.UniqueRecipients)
	assert.InDelta(t, 150, m.TotalAmount, 1e-9)
	assert.Equal(t, 500.0, m.MemoFundingTotal)
}

func TestDiscoverRelaysByBehaviorFilters(t *testing.T) {
	cfg := testConfig()
	cfg.Discovery.BehaviorMinFunding = 100
	cfg.Discovery.MinMarkerTxs = 2
	cfg.Discovery.MinRecipients = 2
	cfg.Discovery.MinTotalAmount = 10
	cfg.Discovery.Lookback = 24 * time.Hour

	now := time.Unix(1_750_000_000, 0)
	recent := now.Unix() - 3600
	stale := now.Unix() - 48*3600

	memoTxs := []xrpl.TxEnvelope{
		plainPayment("F1", "rMemo", "rStale", 500, recent),
		plainPayment("F2", "rMemo", "rUnfunded", 50, recent),
		plainPayment("F3", "rMemo", "rUnmarked", 500, recent),
	}
	cli := &fakeClient{txs: map[string][]xrpl.TxEnvelope{
		// Everything outside the lookback window.
		"rStale": {
			markerPayment("S1", "rStale", "rU1", 50, stale),
			markerPayment("S2", "rStale", "rU2", 50, stale-10),
		},
		// No marker memos at all.
		"rUnmarked": {
			plainPayment("U1", "rUnmarked", "rU1", 50, recent),
			plainPayment("U2", "rUnmarked", "rU2", 50, recent-10),
		},
	}}

	disc := NewDiscoverer(cfg, cli, zaptest.NewLogger(t))
	disc.now = func() time.Time { return now }

	matches, failed := disc.DiscoverRelaysByBehavior(context.Background(), memoTxs)
	assert.Empty(t, failed)
	assert.Empty(t, matches, "stale, unfunded and unmarked candidates all fail")
}

func TestDiscoverRelaysByBehaviorFailedScan(t *testing.T) {
	cfg := testConfig()
	cfg.Discovery.BehaviorMinFunding = 100
	ts := int64(1_750_000_000)

	memoTxs := []xrpl.TxEnvelope{
		plainPayment("F1", "rMemo", "rBroken", 500, ts),
	}
	cli := &fakeClient{failing: map[string]bool{"rBroken": true}}

	disc := NewDiscoverer(cfg, cli, zaptest.NewLogger(t))
	disc.now = func() time.Time { return time.Unix(ts+60, 0) }

	matches, failed := disc.DiscoverRelaysByBehavior(context.Background(), memoTxs)
	assert.Empty(t, matches)
	assert.Equal(t, []string{"rBroken"}, failed)
}
