package merge

import (
	"sort"

	"github.com/postfiat/pftscan/pkg/scan"
	"github.com/postfiat/pftscan/pkg/utils"
	"go.uber.org/zap"
)

// Engine reconciles a live scan with the frozen baseline so that cumulative
// totals stay monotonic despite the ledger having been wiped and restarted
// mid-operation. The engine never mutates the baseline; given identical
// inputs its output is identical.
type Engine struct {
	baseline      *Baseline
	authoritative map[string]float64
	logger        *zap.Logger
}

func NewEngine(baseline *Baseline, authoritative map[string]float64, logger *zap.Logger) *Engine {
	if baseline == nil {
		baseline = Empty()
	}
	return &Engine{baseline: baseline, authoritative: authoritative, logger: logger}
}

// Leaderboard computes lifetime-earned per address from the baseline, the
// scanner-detected totals, and current balances.
//
// Baseline addresses use baseline earnings plus the positive balance delta
// since the freeze. The delta form survives fee leakage and classifier gaps,
// at the documented cost of not netting out post-freeze spending: an earner
// who spent after the freeze keeps their full recorded earnings. That
// approximation is deliberate; do not "fix" it here.
func (e *Engine) Leaderboard(scanned map[string]float64, balances map[string]float64) []scan.LeaderboardEntry {
	addrs := map[string]bool{}
	for addr := range e.baseline.Entries {
		addrs[addr] = true
	}
	for addr := range scanned {
		addrs[addr] = true
	}

	entries := make([]scan.LeaderboardEntry, 0, len(addrs))
	for addr := range addrs {
		balance := balances[addr]
		var total float64
		if base, ok := e.baseline.Entries[addr]; ok {
			growth := balance - base.Balance
			if growth < 0 {
				growth = 0
			}
			total = base.TotalEarned + growth
		} else {
			// New participant since the freeze: whichever of the scan total
			// and the live balance is larger.
			total = scanned[addr]
			if balance > total {
				total = balance
			}
		}
		if override, ok := e.authoritative[addr]; ok {
			total = override
		}
		entries = append(entries, scan.LeaderboardEntry{
			Address:     addr,
			TotalEarned: utils.Round2(total),
			Balance:     utils.Round2(balance),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.TotalEarned != b.TotalEarned {
			return a.TotalEarned > b.TotalEarned
		}
		if a.Balance != b.Balance {
			return a.Balance > b.Balance
		}
		return a.Address < b.Address
	})
	return entries
}

// DailyActivity merges the fresh reward series with the baseline series by
// date key, taking the per-field maximum. Max, not sum: a partially re-run
// day must correct toward whichever scan saw more, never double-count. The
// result is gap-filled into a gapless daily timeline.
func (e *Engine) DailyActivity(fresh []scan.DailyActivity) []scan.DailyActivity {
	byDate := map[string]scan.DailyActivity{}
	for _, d := range e.baseline.DailyActivity {
		byDate[d.Date] = d
	}
	for _, d := range fresh {
		merged, ok := byDate[d.Date]
		if !ok {
			byDate[d.Date] = d
			continue
		}
		if d.Amount > merged.Amount {
			merged.Amount = d.Amount
		}
		if d.TxCount > merged.TxCount {
			merged.TxCount = d.TxCount
		}
		byDate[d.Date] = merged
	}

	series := make([]scan.DailyActivity, 0, len(byDate))
	for _, d := range byDate {
		series = append(series, d)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date < series[j].Date })
	return fillActivityGaps(series)
}

// DailySubmissions merges the submission series the same way.
func (e *Engine) DailySubmissions(fresh []scan.DailySubmissions) []scan.DailySubmissions {
	byDate := map[string]scan.DailySubmissions{}
	for _, d := range e.baseline.DailySubmissions {
		byDate[d.Date] = d
	}
	for _, d := range fresh {
		merged, ok := byDate[d.Date]
		if !ok {
			byDate[d.Date] = d
			continue
		}
		if d.Submissions > merged.Submissions {
			merged.Submissions = d.Submissions
		}
		byDate[d.Date] = merged
	}

	series := make([]scan.DailySubmissions, 0, len(byDate))
	for _, d := range byDate {
		series = append(series, d)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date < series[j].Date })
	return fillSubmissionGaps(series)
}

// UniqueEarners counts distinct earners across baseline and fresh data by
// inclusion-exclusion over the address sets; a naive sum would double-count
// anyone active in both periods.
func (e *Engine) UniqueEarners(fresh map[string]bool) int {
	return unionCount(e.baseline.Earners, fresh)
}

// UniqueSubmitters is the submitter-side counterpart of UniqueEarners.
func (e *Engine) UniqueSubmitters(fresh map[string]bool) int {
	return unionCount(e.baseline.Submitters, fresh)
}

func unionCount(base, fresh map[string]bool) int {
	intersection := 0
	for addr := range fresh {
		if base[addr] {
			intersection++
		}
	}
	return len(base) + len(fresh) - intersection
}
