package scan

import (
	"testing"

	"github.com/postfiat/pftscan/pkg/utils"
	"github.com/postfiat/pftscan/pkg/xrpl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const marker = "70662e707472"

func TestClassifyRewards(t *testing.T) {
	ts := int64(1_750_000_000)
	senders := utils.StringSet([]string{"rReward1", "rReward2"})
	system := utils.StringSet([]string{"rReward1", "rReward2", "rMemo", "rBurn"})

	txs := []xrpl.TxEnvelope{
		markerPayment("R1", "rReward1", "rAlice", 10, ts),
		markerPayment("R2", "rReward2", "rBob", 5, ts-60),
		markerPayment("R2", "rReward2", "rBob", 5, ts-60),       // duplicate hash
		markerPayment("R3", "rReward1", "rMemo", 7, ts),         // system recipient
		markerPayment("R4", "rStranger", "rCarol", 3, ts),       // not a reward sender
		plainPayment("R5", "rReward1", "rVendor", 20, ts-120),   // no marker: non-task
		markerPayment("R6", "rReward1", "rAlice", 2.5, ts-3600), // second reward to same addr
	}
	// Zero and invalid amounts never classify.
	zero := markerPayment("R7", "rReward1", "rDave", 0, ts)
	invalid := markerPayment("R8", "rReward1", "rDave", 1, ts)
	invalid.Tx.Amount = xrpl.Amount{}
	txs = append(txs, zero, invalid)

	stats := ClassifyRewards(txs, senders, system, marker)

	require.Len(t, stats.Events, 3)
	assert.InDelta(t, 17.5, stats.TotalDistributed, 1e-9)
	assert.InDelta(t, 12.5, stats.ByRecipient["rAlice"], 1e-9)
	assert.InDelta(t, 5, stats.ByRecipient["rBob"], 1e-9)
	assert.True(t, stats.Recipients["rAlice"])
	assert.False(t, stats.Recipients["rMemo"])

	// Events come out newest first.
	assert.Equal(t, "R1", stats.Events[0].Hash)

	require.Len(t, stats.NonTask, 1)
	assert.Equal(t, "R5", stats.NonTask[0].Hash)
	assert.InDelta(t, 20, stats.NonTaskTotal, 1e-9)

	day := xrpl.DayUTC(ts)
	require.NotNil(t, stats.ByDay[day])
	assert.Equal(t, 3, stats.ByDay[day].TxCount, "all three rewards land on the same UTC day")
	assert.InDelta(t, 17.5, stats.ByDay[day].Amount, 1e-9)
}

func TestClassifyRewardsSyntheticHash(t *testing.T) {
	ts := int64(1_750_000_000)
	senders := utils.StringSet([]string{"rReward1"})
	system := utils.StringSet([]string{"rReward1"})

	hashless := markerPayment("", "rReward1", "rAlice", 10, ts)
	txs := []xrpl.TxEnvelope{hashless, hashless} // identical, both without hash

	stats := ClassifyRewards(txs, senders, system, marker)
	require.Len(t, stats.Events, 1, "synthetic identity deduplicates hashless duplicates")
	assert.Contains(t, stats.Events[0].Hash, "synthetic:")
}

func TestClassifySubmissions(t *testing.T) {
	ts := int64(1_750_000_000)
	system := utils.StringSet([]string{"rReward1", "rMemo"})

	txs := []xrpl.TxEnvelope{
		markerPayment("S1", "rAlice", "rMemo", 1, ts),
		markerPayment("S2", "rAlice", "rMemo", 1, ts-300),
		markerPayment("S3", "rBob", "rMemo", 1, ts-600),
		markerPayment("S3", "rBob", "rMemo", 1, ts-600),   // duplicate hash
		plainPayment("S4", "rCarol", "rMemo", 1, ts),      // missing marker
		markerPayment("S5", "rReward1", "rMemo", 1, ts),   // system sender
		markerPayment("S6", "rDave", "rElse", 1, ts),      // wrong destination
	}

	stats := ClassifySubmissions(txs, "rMemo", system, marker)

	require.Len(t, stats.Events, 3)
	assert.Equal(t, 2, stats.BySender["rAlice"])
	assert.Equal(t, 1, stats.BySender["rBob"])
	assert.True(t, stats.Submitters["rAlice"])
	assert.False(t, stats.Submitters["rCarol"])
	assert.Equal(t, 3, stats.ByDay[xrpl.DayUTC(ts)])
	assert.Equal(t, "S1", stats.Events[0].Hash, "newest first")
}

func TestEventIdentityStability(t *testing.T) {
	a := EventIdentity("rA", "rB", 100, 1.5)
	b := EventIdentity("rA", "rB", 100, 1.5)
	c := EventIdentity("rA", "rB", 101, 1.5)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
