package scan

import (
	"sort"
	"time"

	"github.com/postfiat/pftscan/pkg/config"
	"github.com/postfiat/pftscan/pkg/utils"
	"github.com/postfiat/pftscan/pkg/xrpl"
)

// TaskStatus is the lifecycle verdict of an inferred task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskExpired   TaskStatus = "expired"
)

// InferredTask is one reconstructed task episode. No explicit task record
// exists on-chain; tasks are inferred purely from submission/reward timing.
type InferredTask struct {
	Submitter       string     `json:"submitter"`
	FirstSubmission int64      `json:"first_submission_ts"`
	Verification    int64      `json:"verification_ts,omitempty"`
	RewardTS        int64      `json:"reward_ts,omitempty"`
	RewardAmount    float64    `json:"reward_amount,omitempty"`
	Status          TaskStatus `json:"status"`
}

// DailyLifecycle is one day of the submitted/completed/expired funnel.
type DailyLifecycle struct {
	Date      string `json:"date"`
	Submitted int    `json:"submitted"`
	Completed int    `json:"completed"`
	Expired   int    `json:"expired"`
}

// LifecycleStats is the published task-lifecycle rollup.
type LifecycleStats struct {
	TotalTasks           int              `json:"total_tasks_inferred"`
	Completed            int              `json:"tasks_completed"`
	Pending              int              `json:"tasks_pending"`
	Expired              int              `json:"tasks_expired"`
	CompletionRate       float64          `json:"completion_rate"`
	AvgTimeToRewardHours float64          `json:"avg_time_to_reward_hours"`
	Daily                []DailyLifecycle `json:"daily_lifecycle"`
}

// Correlator groups each submitter's temporally-close submissions into
// episodes and matches them against that submitter's rewards.
//
// The two-tier window models the expected pattern on this network: an initial
// task submission followed shortly by a verification submission. Both collapse
// into one logical task instead of counting as two.
type Correlator struct {
	cfg config.Lifecycle
}

func NewCorrelator(cfg config.Lifecycle) *Correlator {
	return &Correlator{cfg: cfg}
}

type episode struct {
	anchor       int64 // first submission
	verification int64 // 0 when no verification was seen
}

// matchAnchor is the reward-search anchor: the verification timestamp when
// present, else the first submission.
func (e episode) matchAnchor() int64 {
	if e.verification != 0 {
		return e.verification
	}
	return e.anchor
}

// fold walks one submitter's submissions in timestamp order, keeping at most
// one episode open at a time.
func (c *Correlator) fold(timestamps []int64) []episode {
	subWindow := int64(c.cfg.SubmissionWindow / time.Second)
	verWindow := int64(c.cfg.VerificationWindow / time.Second)

	var episodes []episode
	var open *episode

	for _, ts := range timestamps {
		switch {
		case open == nil:
			open = &episode{anchor: ts}
		case ts-open.anchor <= subWindow && open.verification == 0 && ts-open.anchor <= verWindow:
			open.verification = ts
		default:
			// Inside the submission window but not verification-eligible, or
			// beyond the window entirely: either way the episode closes and a
			// fresh one starts at this submission.
			episodes = append(episodes, *open)
			open = &episode{anchor: ts}
		}
	}
	if open != nil {
		episodes = append(episodes, *open)
	}
	return episodes
}

// Correlate reconstructs tasks for all submitters and produces the lifecycle
// rollup. now decides whether an unmatched episode is still pending or has
// expired.
func (c *Correlator) Correlate(subs []SubmissionEvent, rewards []RewardEvent, now time.Time) ([]InferredTask, *LifecycleStats) {
	rewardWindow := int64(c.cfg.RewardWindow / time.Second)
	expiryWindow := int64(c.cfg.ExpiryWindow / time.Second)

	bySubmitter := map[string][]int64{}
	for _, s := range subs {
		bySubmitter[s.Sender] = append(bySubmitter[s.Sender], s.Timestamp)
	}
	submitters := make([]string, 0, len(bySubmitter))
	for addr, timestamps := range bySubmitter {
		sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })
		submitters = append(submitters, addr)
	}
	sort.Strings(submitters)

	type claimable struct {
		ev      RewardEvent
		claimed bool
	}
	byRecipient := map[string][]*claimable{}
	for _, r := range rewards {
		byRecipient[r.Recipient] = append(byRecipient[r.Recipient], &claimable{ev: r})
	}
	for _, list := range byRecipient {
		sort.SliceStable(list, func(i, j int) bool { return list[i].ev.Timestamp < list[j].ev.Timestamp })
	}

	var tasks []InferredTask
	daily := map[string]*DailyLifecycle{}
	bucket := func(date string) *DailyLifecycle {
		d := daily[date]
		if d == nil {
			d = &DailyLifecycle{Date: date}
			daily[date] = d
		}
		return d
	}

	stats := &LifecycleStats{}
	var rewardHours float64

	for _, submitter := range submitters {
		for _, ep := range c.fold(bySubmitter[submitter]) {
			task := InferredTask{
				Submitter:       submitter,
				FirstSubmission: ep.anchor,
				Verification:    ep.verification,
				Status:          TaskPending,
			}
			anchor := ep.matchAnchor()

			// First unclaimed reward in the window wins; a reward satisfies
			// at most one task.
			for _, cl := range byRecipient[submitter] {
				if cl.claimed || cl.ev.Timestamp < anchor {
					continue
				}
				if cl.ev.Timestamp > anchor+rewardWindow {
					break
				}
				cl.claimed = true
				task.Status = TaskCompleted
				task.RewardTS = cl.ev.Timestamp
				task.RewardAmount = cl.ev.Amount
				break
			}

			if task.Status != TaskCompleted && now.Unix() > anchor+expiryWindow {
				task.Status = TaskExpired
			}

			bucket(xrpl.DayUTC(ep.anchor)).Submitted++
			stats.TotalTasks++
			switch task.Status {
			case TaskCompleted:
				stats.Completed++
				bucket(xrpl.DayUTC(task.RewardTS)).Completed++
				rewardHours += float64(task.RewardTS-task.FirstSubmission) / 3600
			case TaskExpired:
				stats.Expired++
				bucket(xrpl.DayUTC(anchor + expiryWindow)).Expired++
			default:
				stats.Pending++
			}
			tasks = append(tasks, task)
		}
	}

	if stats.TotalTasks > 0 {
		stats.CompletionRate = utils.Round2(float64(stats.Completed) / float64(stats.TotalTasks))
	}
	if stats.Completed > 0 {
		stats.AvgTimeToRewardHours = utils.Round2(rewardHours / float64(stats.Completed))
	}

	stats.Daily = make([]DailyLifecycle, 0, len(daily))
	for _, d := range daily {
		stats.Daily = append(stats.Daily, *d)
	}
	sort.Slice(stats.Daily, func(i, j int) bool { return stats.Daily[i].Date < stats.Daily[j].Date })

	return tasks, stats
}
