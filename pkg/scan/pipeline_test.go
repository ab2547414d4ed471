package scan

import (
	"context"
	"testing"
	"time"

	"github.com/postfiat/pftscan/pkg/xrpl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestPipelineRun(t *testing.T) {
	cfg := testConfig()
	cfg.Discovery.FundingMin = 50
	cfg.Discovery.FundingMax = 1000
	cfg.Discovery.BehaviorMinFunding = 100
	ts := int64(1_750_000_000)

	cli := &fakeClient{
		txs: map[string][]xrpl.TxEnvelope{
			"rMemo": {
				markerPayment("S1", "rAlice", "rMemo", 1, ts),
				plainPayment("F1", "rMemo", "rRelay", 100, ts-3600),
			},
			"rReward1": {markerPayment("R1", "rReward1", "rAlice", 10, ts+600)},
			"rRelay":   {markerPayment("R2", "rRelay", "rBob", 5, ts+60)},
		},
		failing: map[string]bool{"rReward2": true},
	}

	p := NewPipeline(cfg, zaptest.NewLogger(t))
	p.now = func() time.Time { return time.Unix(ts+3600, 0) }

	res, err := p.Run(context.Background(), cli)
	require.NoError(t, err)

	assert.Equal(t, int64(1000), res.LedgerIndex)
	assert.Equal(t, 2, res.MemoTxCount)

	// Configured addresses plus the funding-band relay.
	assert.ElementsMatch(t, []string{"rReward1", "rReward2", "rRelay"}, res.RewardSenders)
	assert.Equal(t, []string{"rReward2"}, res.FailedAccountFetches)
	assert.Empty(t, res.FailedCandidateScans)

	require.Len(t, res.Rewards.Events, 2)
	assert.InDelta(t, 15, res.Rewards.TotalDistributed, 1e-9)
	require.Len(t, res.Submissions.Events, 1)
	assert.Equal(t, "rAlice", res.Submissions.Events[0].Sender)

	// rAlice's submission matches the reward ten minutes later.
	require.NotNil(t, res.Lifecycle)
	assert.Equal(t, 1, res.Lifecycle.TotalTasks)
	assert.Equal(t, 1, res.Lifecycle.Completed)
	require.Len(t, res.Tasks, 1)
	assert.Equal(t, TaskCompleted, res.Tasks[0].Status)
}

func TestPipelineRunMemoFetchFailureIsFatal(t *testing.T) {
	cfg := testConfig()
	cli := &fakeClient{failing: map[string]bool{"rMemo": true}}

	p := NewPipeline(cfg, zaptest.NewLogger(t))
	_, err := p.Run(context.Background(), cli)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memo history")
}
