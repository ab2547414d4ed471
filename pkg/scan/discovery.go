package scan

import (
	"context"
	"sort"
	"time"

	"github.com/postfiat/pftscan/pkg/config"
	"github.com/postfiat/pftscan/pkg/xrpl"
	"go.uber.org/zap"
)

// BehaviorMatch is the evidence that a memo-funded wallet is behaving like a
// reward relay. Recomputed on every run, reported as metadata only.
type BehaviorMatch struct {
	Address          string  `json:"address"`
	MarkerTxCount    int     `json:"ptr_tx_count"`
	UniqueRecipients int     `json:"unique_recipients"`
	TotalAmount      float64 `json:"total_amount"`
	LastRewardDate   string  `json:"last_reward_date"`
	MemoFundingTotal float64 `json:"memo_funding_total"`
}

// Discoverer expands the configured reward addresses into the full set of
// wallets acting as reward senders, using the memo treasury flow as the
// candidate pool.
type Discoverer struct {
	cfg    config.Config
	cli    xrpl.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewDiscoverer(cfg config.Config, cli xrpl.Client, logger *zap.Logger) *Discoverer {
	return &Discoverer{cfg: cfg, cli: cli, logger: logger, now: time.Now}
}

type funding struct {
	total  float64
	lastTS int64
}

// fundingByRecipient sums the memo address's outbound transfers per recipient.
// Reward relays are typically first funded through this flow.
func (d *Discoverer) fundingByRecipient(memoTxs []xrpl.TxEnvelope) map[string]*funding {
	system := d.cfg.SystemAccounts()
	out := map[string]*funding{}
	for i := range memoTxs {
		tx := &memoTxs[i].Tx
		if !tx.IsPayment() || tx.Account != d.cfg.MemoAddress {
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
		f := out[recipient]
		if f == nil {
			f = &funding{}
			out[recipient] = f
		}
		f.total += amount
		if ts := tx.UnixDate(); ts > f.lastTS {
			f.lastTS = ts
		}
	}
	return out
}

// DiscoverRelays applies the funding-threshold heuristic: a recipient whose
// cumulative memo funding lands in [FundingMin, FundingMax) is classified as
// a relay. The band excludes incidental transfers below and bulk treasury
// allocations above.
func (d *Discoverer) DiscoverRelays(memoTxs []xrpl.TxEnvelope) []string {
	var relays []string
	for addr, f := range d.fundingByRecipient(memoTxs) {
		if f.total >= d.cfg.Discovery.FundingMin && f.total < d.cfg.Discovery.FundingMax {
			relays = append(relays, addr)
		}
	}
	sort.Strings(relays)
	return relays
}

// DiscoverRelaysByBehavior applies the behavioral heuristic: candidates funded
// above the anti-spam floor are scanned (newest-funded first, capped) and
// confirmed only when they clear all three minimums at once: marker-tagged tx
// count, distinct recipients, and cumulative amount. Any single threshold
// alone is defeated by one large spam transfer or by many tiny ones.
//
// A failed candidate scan drops that candidate and is reported in failed; it
// never aborts discovery.
func (d *Discoverer) DiscoverRelaysByBehavior(ctx context.Context, memoTxs []xrpl.TxEnvelope) (matches []BehaviorMatch, failed []string) {
	dcfg := d.cfg.Discovery
	system := d.cfg.SystemAccounts()

	type candidate struct {
		addr string
		f    *funding
	}
	var candidates []candidate
	for addr, f := range d.fundingByRecipient(memoTxs) {
		if f.total >= dcfg.BehaviorMinFunding {
			candidates = append(candidates, candidate{addr, f})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].f.lastTS != candidates[j].f.lastTS {
			return candidates[i].f.lastTS > candidates[j].f.lastTS
		}
		return candidates[i].addr < candidates[j].addr
	})
	if len(candidates) > dcfg.ScanLimit {
		candidates = candidates[:dcfg.ScanLimit]
	}

	cutoff := d.now().Add(-dcfg.Lookback).Unix()

	for _, cand := range candidates {
		txs, err := xrpl.FetchAllAccountTx(ctx, d.cli, cand.addr, d.cfg.MaxTxPerAccount, d.logger)
		if err != nil {
			d.logger.Warn("behavioral candidate scan failed",
				zap.String("address", cand.addr), zap.Error(err))
			failed = append(failed, cand.addr)
			continue
		}

		markerTxs := 0
		total := 0.0
		var lastTS int64
		recipients := map[string]bool{}
		for i := range txs {
			tx := &txs[i].Tx
			if !tx.IsPayment() || tx.Account != cand.addr {
				continue
			}
			ts := tx.UnixDate()
			if ts < cutoff {
				continue
			}
			if !tx.HasMarker(d.cfg.MarkerHex) {
				continue
			}
			recipient := tx.Destination
			if recipient == "" || recipient == cand.addr || system[recipient] {
				continue
			}
			amount := tx.Amount.Units()
			if amount <= 0 {
				continue
			}
			markerTxs++
			total += amount
			recipients[recipient] = true
			if ts > lastTS {
				lastTS = ts
			}
		}

		if markerTxs >= dcfg.MinMarkerTxs && len(recipients) >= dcfg.MinRecipients && total >= dcfg.MinTotalAmount {
			matches = append(matches, BehaviorMatch{
				Address:          cand.addr,
				MarkerTxCount:    markerTxs,
				UniqueRecipients: len(recipients),
				TotalAmount:      total,
				LastRewardDate:   xrpl.DayUTC(lastTS),
				MemoFundingTotal: cand.f.total,
			})
		}
	}
	return matches, failed
}
