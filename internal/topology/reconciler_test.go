package topology

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topomap/internal/models"
	"topomap/internal/snapshot"
)

type fakeResolver struct {
	mu    sync.Mutex
	names map[string]string
	err   error
	calls int
}

func (f *fakeResolver) ReverseLookup(_ context.Context, ip string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if name, ok := f.names[ip]; ok {
		return name, nil
	}
	return "", errors.New("no PTR record")
}

func newTestReconciler(t *testing.T, st *memStore, clock clockwork.Clock, resolver *fakeResolver) *Reconciler {
	t.Helper()
	cfg := Config{Store: st, Clock: clock, Logger: zerolog.Nop()}
	if resolver != nil {
		cfg.Resolver = resolver
	}
	rec, err := New(cfg)
	require.NoError(t, err)
	return rec
}

func testSnapshot(host string, ts int64) *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Misc: snapshot.Misc{Host: host, Timestamp: ts},
		System: snapshot.System{
			SysName:        host,
			SysDescription: "lab switch",
			SysObjectID:    "1.3.6.1.4.1.9.1.1208",
			SysUptime:      123456,
		},
		Layer1: map[int]snapshot.Interface{
			1: {
				IfAdminStatus: 1, IfOperStatus: 1, IfSpeed: 1000000000,
				IfDescr: "GigabitEthernet1/0/1", Ethernet: true,
				Vlans: []int{100},
				Macs:  []string{"AA:BB:CC:DD:EE:FF"},
			},
			2: {
				IfAdminStatus: 1, IfOperStatus: 1, IfSpeed: 1000000000,
				IfDescr: "GigabitEthernet1/0/2", Ethernet: true,
				Vlans: []int{100},
				Macs:  []string{"aa:bb:cc:dd:ee:01"},
			},
			3: {
				IfAdminStatus: 1, IfOperStatus: 1, IfSpeed: 1000000000,
				IfDescr: "GigabitEthernet1/0/3", Ethernet: true,
				Vlans: []int{100},
			},
		},
	}
}

func TestReconcileMalformedSnapshot(t *testing.T) {
	st := newMemStore()
	rec := newTestReconciler(t, st, clockwork.NewFakeClock(), nil)

	snap := testSnapshot("", 0)
	err := rec.Reconcile(context.Background(), snap, false)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedSnapshot)
	for table, count := range st.counts() {
		assert.Zero(t, count, "table %s written before validation", table)
	}
}

func TestReconcileCreatesAllTables(t *testing.T) {
	st := newMemStore()
	clock := clockwork.NewFakeClockAt(time.Unix(1700000000, 0))
	rec := newTestReconciler(t, st, clock, nil)

	snap := testSnapshot("sw-lab-01", 1700000000)
	snap.Layer3 = &snapshot.Layer3{
		IPv4: map[string]string{"10.0.0.5": "aa:bb:cc:dd:ee:ff"},
	}
	require.NoError(t, rec.Reconcile(context.Background(), snap, false))

	counts := st.counts()
	assert.Equal(t, 1, counts["devices"])
	assert.Equal(t, 3, counts["interfaces"])
	assert.Equal(t, 1, counts["vlans"], "vlan 100 deduplicated across interfaces")
	assert.Equal(t, 3, counts["vlanPorts"], "one vlan link per interface")
	assert.Equal(t, 2, counts["macs"])
	assert.Equal(t, 2, counts["macPorts"])
	assert.Equal(t, 1, counts["macIPs"])
}

func TestReconcileIdempotent(t *testing.T) {
	st := newMemStore()
	clock := clockwork.NewFakeClockAt(time.Unix(1700000000, 0))
	rec := newTestReconciler(t, st, clock, nil)

	snap := testSnapshot("sw-lab-01", 1700000000)
	snap.Layer3 = &snapshot.Layer3{
		IPv4: map[string]string{"10.0.0.5": "aa:bb:cc:dd:ee:ff"},
	}

	require.NoError(t, rec.Reconcile(context.Background(), snap, false))
	first := st.counts()

	require.NoError(t, rec.Reconcile(context.Background(), testSnapshotWithLayer3(), false))
	assert.Equal(t, first, st.counts(), "second identical cycle must not grow any table")
}

func testSnapshotWithLayer3() *snapshot.Snapshot {
	snap := testSnapshot("sw-lab-01", 1700000000)
	snap.Layer3 = &snapshot.Layer3{
		IPv4: map[string]string{"10.0.0.5": "aa:bb:cc:dd:ee:ff"},
	}
	return snap
}

func TestDependencyGating(t *testing.T) {
	st := newMemStore()
	st.failOn["InsertInterfaces"] = errors.New("disk full")
	rec := newTestReconciler(t, st, clockwork.NewFakeClock(), nil)

	err := rec.Reconcile(context.Background(), testSnapshot("sw-lab-01", 1700000000), false)
	require.Error(t, err)

	counts := st.counts()
	assert.Equal(t, 1, counts["devices"], "device stage completed before the failure")
	assert.Zero(t, counts["vlans"])
	assert.Zero(t, counts["vlanPorts"])
	assert.Zero(t, counts["macs"])
	assert.Zero(t, counts["macPorts"])
	assert.Zero(t, counts["macIPs"])
}

func TestStageSkipsWhenNotReady(t *testing.T) {
	st := newMemStore()
	rec := newTestReconciler(t, st, clockwork.NewFakeClock(), nil)

	p := &run{
		r:      rec,
		snap:   testSnapshot("sw-lab-01", 1700000000),
		device: &models.Device{ID: 1, Hostname: "sw-lab-01"},
		done:   StageDevice, // interfaces never ran
	}
	require.NoError(t, p.syncVlans(context.Background()))
	assert.Zero(t, st.counts()["vlans"], "skipped stage must not write")
	assert.Equal(t, StageDevice, p.done)
}

func TestIdleStateMachine(t *testing.T) {
	st := newMemStore()
	t1 := time.Unix(1700000000, 0)
	clock := clockwork.NewFakeClockAt(t1)
	rec := newTestReconciler(t, st, clock, nil)
	ctx := context.Background()

	cycle := func(admin, oper int) {
		snap := testSnapshot("sw-lab-01", clock.Now().Unix())
		iface := snap.Layer1[1]
		iface.IfAdminStatus = admin
		iface.IfOperStatus = oper
		snap.Layer1[1] = iface
		require.NoError(t, rec.Reconcile(ctx, snap, false))
	}

	// First observation inserts fresh, never idle.
	cycle(1, 2)
	row := st.interfaceByIndex(1, 1)
	require.NotNil(t, row)
	assert.Zero(t, row.TsIdle, "new interfaces start not-idle")

	// Existing row, admin up / oper down: idle episode starts now.
	cycle(1, 2)
	row = st.interfaceByIndex(1, 1)
	assert.Equal(t, t1.Unix(), row.TsIdle)

	// Still down at a later cycle: timestamp is sticky.
	clock.Advance(10 * time.Minute)
	cycle(1, 2)
	row = st.interfaceByIndex(1, 1)
	assert.Equal(t, t1.Unix(), row.TsIdle, "idle-since must not move during an episode")

	// Link returns: reset.
	clock.Advance(10 * time.Minute)
	cycle(1, 1)
	row = st.interfaceByIndex(1, 1)
	assert.Zero(t, row.TsIdle)

	// Down again, then administratively disabled: reset too.
	clock.Advance(10 * time.Minute)
	cycle(1, 2)
	row = st.interfaceByIndex(1, 1)
	assert.NotZero(t, row.TsIdle)

	cycle(2, 2)
	row = st.interfaceByIndex(1, 1)
	assert.Zero(t, row.TsIdle, "administratively down is not idle")
}

func TestNextTsIdle(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Unix(5000, 0))

	tests := []struct {
		name    string
		current int64
		admin   int
		oper    int
		want    int64
	}{
		{"up with link clears", 4000, 1, 1, 0},
		{"admin down clears", 4000, 2, 2, 0},
		{"idle episode starts", 0, 1, 2, 5000},
		{"idle episode sticky", 4000, 1, 2, 4000},
		{"lower layer down counts as idle", 0, 1, 7, 5000},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, nextTsIdle(clock, tc.current, tc.admin, tc.oper))
		})
	}
}

func TestCrossDeviceMacUniqueness(t *testing.T) {
	st := newMemStore()
	clock := clockwork.NewFakeClockAt(time.Unix(1700000000, 0))
	rec := newTestReconciler(t, st, clock, nil)

	var wg sync.WaitGroup
	for _, host := range []string{"sw-lab-01", "sw-lab-02"} {
		wg.Add(1)
		go func(host string) {
			defer wg.Done()
			snap := testSnapshot(host, 1700000000)
			assert.NoError(t, rec.Reconcile(context.Background(), snap, false))
		}(host)
	}
	wg.Wait()

	mac := st.macByAddress("aabbccddeeff")
	require.NotNil(t, mac)

	var refs int
	for _, mp := range st.allMacPorts() {
		if mp.MacID == mac.ID {
			refs++
		}
	}
	assert.Equal(t, 2, counts(st)["macs"], "one row per unique address across both devices")
	assert.Equal(t, 2, refs, "both devices reference the single shared row")
}

func counts(st *memStore) map[string]int { return st.counts() }

func TestMacVendorResolution(t *testing.T) {
	st := newMemStore()
	require.NoError(t, st.InsertOuis(context.Background(), []models.Oui{
		{ID: models.UnknownOuiID, Prefix: "unknown", Vendor: "unknown"},
		{Prefix: "aabbcc", Vendor: "Example Corp"},
	}))
	rec := newTestReconciler(t, st, clockwork.NewFakeClock(), nil)

	snap := testSnapshot("sw-lab-01", 1700000000)
	iface := snap.Layer1[1]
	iface.Macs = []string{"aa:bb:cc:00:00:01", "11:22:33:00:00:01"}
	snap.Layer1[1] = iface
	require.NoError(t, rec.Reconcile(context.Background(), snap, false))

	matched := st.macByAddress("aabbcc000001")
	require.NotNil(t, matched)
	assert.NotEqual(t, models.UnknownOuiID, matched.OuiID)

	unmatched := st.macByAddress("112233000001")
	require.NotNil(t, unmatched)
	assert.Equal(t, models.UnknownOuiID, unmatched.OuiID, "unmatched prefix falls back to sentinel")
}

func TestMacPortDropsUnparseableMac(t *testing.T) {
	st := newMemStore()
	rec := newTestReconciler(t, st, clockwork.NewFakeClock(), nil)

	snap := testSnapshot("sw-lab-01", 1700000000)
	iface := snap.Layer1[1]
	iface.Macs = []string{"not-a-mac", "aa:bb:cc:dd:ee:02"}
	snap.Layer1[1] = iface
	require.NoError(t, rec.Reconcile(context.Background(), snap, false))

	assert.NotNil(t, st.macByAddress("aabbccddee02"))
	assert.Nil(t, st.macByAddress("not-a-mac"))
}

func TestMacIPEnrichment(t *testing.T) {
	newSnap := func() *snapshot.Snapshot {
		snap := testSnapshot("sw-lab-01", 1700000000)
		snap.Layer3 = &snapshot.Layer3{
			IPv4: map[string]string{"10.0.0.5": "aa:bb:cc:dd:ee:ff"},
		}
		return snap
	}

	t.Run("dns disabled yields null hostname", func(t *testing.T) {
		st := newMemStore()
		resolver := &fakeResolver{names: map[string]string{"10.0.0.5": "host.example.net"}}
		rec := newTestReconciler(t, st, clockwork.NewFakeClock(), resolver)

		require.NoError(t, rec.Reconcile(context.Background(), newSnap(), false))

		rows := st.allMacIPs()
		require.Len(t, rows, 1)
		assert.Nil(t, rows[0].Hostname)
		assert.Zero(t, resolver.calls, "disabled dns must not touch the resolver")
	})

	t.Run("lookup failure yields null hostname without aborting", func(t *testing.T) {
		st := newMemStore()
		resolver := &fakeResolver{err: errors.New("timeout")}
		rec := newTestReconciler(t, st, clockwork.NewFakeClock(), resolver)

		require.NoError(t, rec.Reconcile(context.Background(), newSnap(), true))

		rows := st.allMacIPs()
		require.Len(t, rows, 1)
		assert.Nil(t, rows[0].Hostname)
	})

	t.Run("successful lookup records hostname", func(t *testing.T) {
		st := newMemStore()
		resolver := &fakeResolver{names: map[string]string{"10.0.0.5": "host.example.net"}}
		rec := newTestReconciler(t, st, clockwork.NewFakeClock(), resolver)

		require.NoError(t, rec.Reconcile(context.Background(), newSnap(), true))

		rows := st.allMacIPs()
		require.Len(t, rows, 1)
		require.NotNil(t, rows[0].Hostname)
		assert.Equal(t, "host.example.net", *rows[0].Hostname)
		assert.Equal(t, 4, rows[0].Version)
	})
}

func TestMacIPDropsBadEntries(t *testing.T) {
	st := newMemStore()
	rec := newTestReconciler(t, st, clockwork.NewFakeClock(), nil)

	snap := testSnapshot("sw-lab-01", 1700000000)
	snap.Layer3 = &snapshot.Layer3{
		IPv4: map[string]string{
			"10.0.0.5":   "aa:bb:cc:dd:ee:ff", // learned on interface 1
			"10.0.0.6":   "00:00:00:00:00:99", // never learned on any interface
			"not-an-ip":  "aa:bb:cc:dd:ee:ff",
			"10.0.0.300": "aa:bb:cc:dd:ee:ff",
		},
		IPv6: map[string]string{
			"2001:db8::5": "aa:bb:cc:dd:ee:01", // learned on interface 2
		},
	}
	require.NoError(t, rec.Reconcile(context.Background(), snap, false))

	rows := st.allMacIPs()
	require.Len(t, rows, 2, "bad entries dropped, good entries kept")

	byIP := make(map[string]models.MacIP)
	for _, row := range rows {
		byIP[row.IP] = row
	}
	require.Contains(t, byIP, "10.0.0.5")
	assert.Equal(t, 4, byIP["10.0.0.5"].Version)
	require.Contains(t, byIP, "2001:db8::5")
	assert.Equal(t, 6, byIP["2001:db8::5"].Version)
}

func TestMacIPDedupesNormalizedAddresses(t *testing.T) {
	st := newMemStore()
	rec := newTestReconciler(t, st, clockwork.NewFakeClock(), nil)

	snap := testSnapshot("sw-lab-01", 1700000000)
	snap.Layer3 = &snapshot.Layer3{
		IPv4: map[string]string{"10.0.0.5": "aa:bb:cc:dd:ee:ff"},
		IPv6: map[string]string{
			"2001:db8::5":     "aa:bb:cc:dd:ee:ff",
			"2001:0db8::5":    "aa:bb:cc:dd:ee:ff", // same address, different spelling
			"::ffff:10.0.0.5": "aa:bb:cc:dd:ee:ff", // unmaps to the IPv4 entry
		},
	}
	require.NoError(t, rec.Reconcile(context.Background(), snap, false))

	rows := st.allMacIPs()
	require.Len(t, rows, 2, "one row per normalized (device, mac, ip) triple")

	ips := make([]string, 0, len(rows))
	for _, row := range rows {
		ips = append(ips, row.IP)
	}
	assert.ElementsMatch(t, []string{"10.0.0.5", "2001:db8::5"}, ips)
}

func TestReconcileDumpHookFailureIsNonFatal(t *testing.T) {
	st := newMemStore()
	dumped := 0
	rec, err := New(Config{
		Store:  st,
		Clock:  clockwork.NewFakeClock(),
		Logger: zerolog.Nop(),
		Dump: func(*snapshot.Snapshot) error {
			dumped++
			return errors.New("read-only filesystem")
		},
	})
	require.NoError(t, err)

	require.NoError(t, rec.Reconcile(context.Background(), testSnapshot("sw-lab-01", 1700000000), false))
	assert.Equal(t, 1, dumped)
	assert.Equal(t, 1, st.counts()["devices"], "dump failure must not abort the cycle")
}

func TestStoreFailurePropagates(t *testing.T) {
	st := newMemStore()
	storeErr := errors.New("connection reset")
	st.failOn["UpsertMacs"] = storeErr
	rec := newTestReconciler(t, st, clockwork.NewFakeClock(), nil)

	err := rec.Reconcile(context.Background(), testSnapshot("sw-lab-01", 1700000000), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
	assert.Zero(t, st.counts()["macPorts"], "later stages must not run after a store failure")
}
