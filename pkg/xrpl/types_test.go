package xrpl

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountUnmarshal(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		drops int64
		valid bool
	}{
		{"integer string", `"2500000"`, 2500000, true},
		{"bare number", `1000000`, 1000000, true},
		{"zero", `"0"`, 0, true},
		{"junk string", `"not-a-number"`, 0, false},
		{"issued currency object", `{"currency":"USD","issuer":"rX","value":"5"}`, 0, false},
		{"null", `null`, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var a Amount
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &a))
			assert.Equal(t, tc.valid, a.Valid)
			assert.Equal(t, tc.drops, a.Drops)
		})
	}
}

func TestAmountUnits(t *testing.T) {
	a := Amount{Drops: 2_500_000, Valid: true}
	assert.Equal(t, 2.5, a.Units())
}

func TestUnixFromRipple(t *testing.T) {
	assert.Equal(t, int64(0), UnixFromRipple(0))
	assert.Equal(t, int64(RippleEpoch+100), UnixFromRipple(100))
}

func TestDayUTC(t *testing.T) {
	assert.Equal(t, "unknown", DayUTC(0))
	// 2026-02-10T12:00:00Z
	assert.Equal(t, "2026-02-10", DayUTC(1770724800))
}

func TestHasMarker(t *testing.T) {
	marker := "70662e707472"
	tx := Transaction{Memos: []MemoWrapper{
		{Memo: Memo{MemoType: "70662E707472AABB"}},
	}}
	assert.True(t, tx.HasMarker(marker), "marker match is case-insensitive")

	tx = Transaction{Memos: []MemoWrapper{
		{Memo: Memo{MemoType: "deadbeef"}},
	}}
	assert.False(t, tx.HasMarker(marker))

	tx = Transaction{}
	assert.False(t, tx.HasMarker(marker), "no memos means no marker")
}

func TestTransactionDecoding(t *testing.T) {
	raw := `{
		"tx": {
			"hash": "ABC123",
			"TransactionType": "Payment",
			"Account": "rSender",
			"Destination": "rDest",
			"Amount": "1500000",
			"date": 800000000,
			"Memos": [{"Memo": {"MemoType": "70662e707472"}}]
		},
		"validated": true
	}`
	var env TxEnvelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	assert.True(t, env.Tx.IsPayment())
	assert.Equal(t, 1.5, env.Tx.Amount.Units())
	assert.Equal(t, int64(800000000+RippleEpoch), env.Tx.UnixDate())
	assert.True(t, env.Tx.HasMarker("70662e707472"))
}
