package merge

import (
	"encoding/json"
	"os"

	"github.com/postfiat/pftscan/pkg/scan"
	"go.uber.org/zap"
)

// Entry is one address's frozen aggregates at the reconciliation point.
type Entry struct {
	TotalEarned float64
	Balance     float64
}

// Baseline is the immutable pre-incident snapshot the merge engine reconciles
// against. It is read once at startup and never rewritten.
type Baseline struct {
	Entries          map[string]Entry
	DailyActivity    []scan.DailyActivity
	DailySubmissions []scan.DailySubmissions
	Earners          map[string]bool
	Submitters       map[string]bool
}

// Empty returns a baseline with no prior data, used when the baseline file is
// absent or unreadable so the pipeline degrades to live-only aggregates.
func Empty() *Baseline {
	return &Baseline{
		Entries:    map[string]Entry{},
		Earners:    map[string]bool{},
		Submitters: map[string]bool{},
	}
}

// Load reads a snapshot-shaped baseline file. Any failure degrades to an
// empty baseline; losing reconciliation is preferable to failing the run.
func Load(path string, logger *zap.Logger) *Baseline {
	if path == "" {
		return Empty()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("baseline unavailable, merging against empty baseline",
			zap.String("path", path), zap.Error(err))
		return Empty()
	}
	var snap scan.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.Warn("baseline unparsable, merging against empty baseline",
			zap.String("path", path), zap.Error(err))
		return Empty()
	}

	b := Empty()
	for _, row := range snap.Rewards.Leaderboard {
		b.Entries[row.Address] = Entry{TotalEarned: row.TotalEarned, Balance: row.Balance}
		b.Earners[row.Address] = true
	}
	for _, row := range snap.Submissions.TopSubmitters {
		b.Submitters[row.Address] = true
	}
	b.DailyActivity = snap.Rewards.DailyActivity
	b.DailySubmissions = snap.Submissions.DailySubmissions
	logger.Info("baseline loaded",
		zap.String("path", path),
		zap.Int("addresses", len(b.Entries)),
		zap.Int("daily_entries", len(b.DailyActivity)))
	return b
}

// LoadAuthoritative reads the optional external leaderboard override, an
// address -> cumulative-reward map treated as ground truth over the heuristic
// merge formula. Missing file means no overrides.
func LoadAuthoritative(path string, logger *zap.Logger) map[string]float64 {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("authoritative leaderboard unavailable", zap.String("path", path), zap.Error(err))
		return nil
	}
	overrides := map[string]float64{}
	if err := json.Unmarshal(data, &overrides); err != nil {
		logger.Warn("authoritative leaderboard unparsable", zap.String("path", path), zap.Error(err))
		return nil
	}
	return overrides
}
