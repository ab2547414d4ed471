package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/postfiat/pftscan/pkg/config"
	"github.com/postfiat/pftscan/pkg/xrpl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// ledgerStub serves canned balances so cycles can be driven through the full
// incident lifecycle without a server.
type ledgerStub struct {
	mu       sync.Mutex
	ledger   int64
	balances map[string]float64
	missing  map[string]bool
	failing  map[string]bool
}

func (f *ledgerStub) set(ledger int64, balances map[string]float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ledger = ledger
	f.balances = balances
}

func (f *ledgerStub) AccountTx(context.Context, string, int, json.RawMessage) (*xrpl.AccountTxPage, error) {
	return &xrpl.AccountTxPage{}, nil
}

func (f *ledgerStub) AccountState(_ context.Context, address string) (*xrpl.AccountState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[address] {
		return nil, errors.New("connection reset")
	}
	if f.missing[address] {
		return &xrpl.AccountState{Address: address, Reason: "actNotFound"}, nil
	}
	return &xrpl.AccountState{Address: address, Balance: f.balances[address], Exists: true}, nil
}

func (f *ledgerStub) LedgerCurrent(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ledger, nil
}

func (f *ledgerStub) Close() error { return nil }

type recordingNotifier struct {
	subjects []string
	fail     bool
}

func (n *recordingNotifier) Notify(_ context.Context, subject, _ string) error {
	if n.fail {
		return errors.New("webhook down")
	}
	n.subjects = append(n.subjects, subject)
	return nil
}

func testMonitor(t *testing.T, stub *ledgerStub, notifier Notifier) (*Monitor, *Store, *time.Time) {
	t.Helper()
	cfg := config.Default()
	cfg.BalanceBatchSize = 2
	cfg.Monitor = detectConfig()
	cfg.Monitor.StateDir = t.TempDir()

	store, err := NewStore(cfg.Monitor.StateDir)
	require.NoError(t, err)

	wl := &Watchlist{Wallets: []Wallet{
		{Address: "r1", Role: RolePrimary},
		{Address: "r2", Role: RoleRelay},
		{Address: "rMemo", Role: RoleMemo},
	}}

	m := New(cfg, wl, stub, store, notifier, zaptest.NewLogger(t))
	clock := time.Unix(1_750_000_000, 0)
	m.now = func() time.Time { return clock }
	return m, store, &clock
}

func TestIncidentLifecycle(t *testing.T) {
	ctx := context.Background()
	stub := &ledgerStub{}
	notifier := &recordingNotifier{}
	m, store, clock := testMonitor(t, stub, notifier)

	// Normal cycle: becomes the baseline, no incident.
	stub.set(1000, map[string]float64{"r1": 6000, "r2": 4000, "rMemo": 50})
	require.NoError(t, m.Cycle(ctx))

	st, err := store.LoadState()
	require.NoError(t, err)
	assert.NotEmpty(t, st.BaselineRef)
	assert.Equal(t, st.BaselineRef, st.LastRef)
	assert.Nil(t, st.Incident)
	assert.Empty(t, notifier.subjects)

	// Both reward wallets collapse: incident opens, one detect alert.
	*clock = clock.Add(5 * time.Minute)
	stub.set(1010, map[string]float64{"r1": 100, "r2": 50, "rMemo": 50})
	require.NoError(t, m.Cycle(ctx))

	st, err = store.LoadState()
	require.NoError(t, err)
	require.NotNil(t, st.Incident)
	assert.Equal(t, IncidentActive, st.Incident.Status)
	assert.NotZero(t, st.Incident.AlertSentAt)
	require.Len(t, notifier.subjects, 1)
	assert.Contains(t, notifier.subjects[0], "reset detected")

	// Still down: no duplicate detect alert.
	*clock = clock.Add(5 * time.Minute)
	stub.set(1020, map[string]float64{"r1": 100, "r2": 50, "rMemo": 50})
	require.NoError(t, m.Cycle(ctx))
	assert.Len(t, notifier.subjects, 1)

	// Recovered to 9500 of the 10000 baseline: resolves at ratio 0.9 and the
	// resolving cycle becomes the new baseline.
	*clock = clock.Add(5 * time.Minute)
	stub.set(1030, map[string]float64{"r1": 5500, "r2": 4000, "rMemo": 50})
	require.NoError(t, m.Cycle(ctx))

	st, err = store.LoadState()
	require.NoError(t, err)
	require.NotNil(t, st.Incident)
	assert.Equal(t, IncidentResolved, st.Incident.Status)
	assert.NotZero(t, st.Incident.ResolvedAlertSentAt)
	assert.Equal(t, st.LastRef, st.BaselineRef)
	require.Len(t, notifier.subjects, 2)
	assert.Contains(t, notifier.subjects[1], "resolved")

	// Status and report artifacts exist.
	status, err := os.ReadFile(filepath.Join(m.cfg.Monitor.StateDir, "status.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(status), "incident: none")

	reports, err := os.ReadDir(filepath.Join(m.cfg.Monitor.StateDir, "reports"))
	require.NoError(t, err)
	assert.NotEmpty(t, reports)
}

func TestResolvedAlertRetries(t *testing.T) {
	ctx := context.Background()
	stub := &ledgerStub{}
	notifier := &recordingNotifier{}
	m, store, clock := testMonitor(t, stub, notifier)

	stub.set(1000, map[string]float64{"r1": 6000, "r2": 4000})
	require.NoError(t, m.Cycle(ctx))

	*clock = clock.Add(5 * time.Minute)
	stub.set(1010, map[string]float64{"r1": 10, "r2": 10})
	require.NoError(t, m.Cycle(ctx))

	// Notifier goes dark before the recovery cycle: resolution is recorded
	// but the alert is not.
	notifier.fail = true
	*clock = clock.Add(5 * time.Minute)
	stub.set(1020, map[string]float64{"r1": 6000, "r2": 4000})
	require.NoError(t, m.Cycle(ctx))

	st, err := store.LoadState()
	require.NoError(t, err)
	require.NotNil(t, st.Incident)
	assert.Equal(t, IncidentResolved, st.Incident.Status)
	assert.Zero(t, st.Incident.ResolvedAlertSentAt)

	// Next cycle retries the resolution alert until it lands.
	notifier.fail = false
	*clock = clock.Add(5 * time.Minute)
	require.NoError(t, m.Cycle(ctx))

	st, err = store.LoadState()
	require.NoError(t, err)
	assert.NotZero(t, st.Incident.ResolvedAlertSentAt)
	assert.Contains(t, notifier.subjects[len(notifier.subjects)-1], "resolved")
}

func TestPollMarksFailedLookups(t *testing.T) {
	stub := &ledgerStub{
		failing: map[string]bool{"r2": true},
		missing: map[string]bool{"rMemo": true},
	}
	stub.set(1000, map[string]float64{"r1": 500})
	m, _, _ := testMonitor(t, stub, &recordingNotifier{})

	cur := m.poll(context.Background())
	require.Len(t, cur.Wallets, 3)

	byAddr := map[string]WalletSnapshot{}
	for _, w := range cur.Wallets {
		byAddr[w.Address] = w
	}
	assert.True(t, byAddr["r1"].Exists)
	assert.False(t, byAddr["r2"].Exists)
	assert.Contains(t, byAddr["r2"].Reason, "connection reset")
	assert.False(t, byAddr["rMemo"].Exists)
	assert.Equal(t, "actNotFound", byAddr["rMemo"].Reason)
	assert.InDelta(t, 500, cur.RewardTotal(), 1e-9)
}

func TestLoadWatchlist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watchlist.yaml")
	payload := `wallets:
  - address: rGBKxoTcavpfEso7ASRELZAMcCMqKa8oFk
    role: primary
    label: primary reward wallet
  - address: rwdm72S9YVKkZjeADKU2bbUMuY4vPnSfH7
    role: memo
  - address: rSomebodyElse
`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	wl, err := LoadWatchlist(path)
	require.NoError(t, err)
	require.Len(t, wl.Wallets, 3)
	assert.Equal(t, RolePrimary, wl.Wallets[0].Role)
	assert.Equal(t, "primary reward wallet", wl.Wallets[0].Label)
	assert.Equal(t, RoleExtra, wl.Wallets[2].Role, "missing role defaults to extra")

	_, err = LoadWatchlist(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("wallets: []\n"), 0o644))
	_, err = LoadWatchlist(empty)
	assert.Error(t, err)
}
