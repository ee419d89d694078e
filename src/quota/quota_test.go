package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/illustory/gallery/src/auditlog"
	"github.com/illustory/gallery/src/clock"
	"github.com/illustory/gallery/src/config"
	"github.com/illustory/gallery/src/illustrations"
	"github.com/illustory/gallery/src/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledgerFixture struct {
	ledger *MemoryLedger
	log    *auditlog.MemoryStore
	ills   *illustrations.Memory
	clock  *clock.FakeClock
	otter  *models.Illustration
}

func newFixture(policy Policy) *ledgerFixture {
	log := auditlog.NewMemoryStore()
	ills := illustrations.NewMemory()
	otter := ills.Add(models.Illustration{ID: 42, Title: "Otter", ImagePath: "a/otter.svg", Visible: true})
	ills.Add(models.Illustration{ID: 43, Title: "Hidden", ImagePath: "a/hidden.svg"})
	clk := clock.NewFake(time.Date(2026, 10, 15, 9, 30, 0, 0, time.Local))

	return &ledgerFixture{
		ledger: NewMemoryLedger(log, ills, clk, Settings{DailyLimit: 10, Policy: policy}),
		log:    log,
		ills:   ills,
		clock:  clk,
		otter:  otter,
	}
}

func request(identifier, ip string) GrantRequest {
	return GrantRequest{
		IllustrationID: 42,
		Identifier:     identifier,
		NetworkAddress: ip,
		Format:         models.FormatSVG,
	}
}

func grant(t *testing.T, l Ledger, req GrantRequest) Decision {
	t.Helper()
	d, err := l.CheckAndGrant(context.Background(), req)
	require.Nil(t, err)
	return d
}

func TestNetworkLimit(t *testing.T) {
	f := newFixture(PolicyUnion)

	// Fresh identifiers every time, so only the network axis can fill up.
	for i := 0; i < 10; i++ {
		d := grant(t, f.ledger, request(fmt.Sprintf("visitor-%d", i), "203.0.113.7"))
		assert.True(t, d.Granted, "request %d", i+1)
	}

	d := grant(t, f.ledger, request("visitor-new", "203.0.113.7"))
	assert.False(t, d.Granted)
	assert.Equal(t, ReasonNetworkLimit, d.Reason)
	assert.Nil(t, d.Entry)
	assert.Equal(t, 10, f.log.Len())

	// Someone else is unaffected.
	assert.True(t, grant(t, f.ledger, request("visitor-new", "198.51.100.1")).Granted)
}

func TestIdentifierLimit(t *testing.T) {
	f := newFixture(PolicyUnion)

	for i := 0; i < 10; i++ {
		d := grant(t, f.ledger, request("alice", fmt.Sprintf("192.0.2.%d", i+1)))
		assert.True(t, d.Granted)
	}

	d := grant(t, f.ledger, request("alice", "192.0.2.200"))
	assert.False(t, d.Granted)
	assert.Equal(t, ReasonIdentifierLimit, d.Reason)
	assert.Equal(t, 10, f.log.Len())
}

func TestNetworkReasonWinsWhenBothExhausted(t *testing.T) {
	f := newFixture(PolicyUnion)
	for i := 0; i < 10; i++ {
		grant(t, f.ledger, request("alice", "203.0.113.7"))
	}
	d := grant(t, f.ledger, request("alice", "203.0.113.7"))
	assert.Equal(t, ReasonNetworkLimit, d.Reason)
}

func TestPolicies(t *testing.T) {
	t.Run("network only ignores identifier", func(t *testing.T) {
		f := newFixture(PolicyNetwork)
		for i := 0; i < 15; i++ {
			d := grant(t, f.ledger, request("alice", fmt.Sprintf("192.0.2.%d", i+1)))
			assert.True(t, d.Granted)
		}
	})
	t.Run("identifier only ignores network", func(t *testing.T) {
		f := newFixture(PolicyIdentifier)
		for i := 0; i < 15; i++ {
			d := grant(t, f.ledger, request(fmt.Sprintf("visitor-%d", i), "203.0.113.7"))
			assert.True(t, d.Granted)
		}
	})
	t.Run("no identifier falls back to network", func(t *testing.T) {
		f := newFixture(PolicyIdentifier)
		for i := 0; i < 10; i++ {
			assert.True(t, grant(t, f.ledger, request("", "203.0.113.7")).Granted)
		}
		d := grant(t, f.ledger, request("", "203.0.113.7"))
		assert.Equal(t, ReasonNetworkLimit, d.Reason)
	})
}

func TestDayRollover(t *testing.T) {
	f := newFixture(PolicyUnion)
	for i := 0; i < 10; i++ {
		grant(t, f.ledger, request("alice", "203.0.113.7"))
	}
	assert.False(t, grant(t, f.ledger, request("alice", "203.0.113.7")).Granted)

	// Still the same day a minute before midnight.
	f.clock.Advance(14*time.Hour + 29*time.Minute)
	assert.False(t, grant(t, f.ledger, request("alice", "203.0.113.7")).Granted)

	f.clock.Advance(2 * time.Minute)
	d := grant(t, f.ledger, request("alice", "203.0.113.7"))
	assert.True(t, d.Granted)
	assert.Equal(t, 11, f.log.Len())
}

func TestGrantRecordsEverything(t *testing.T) {
	f := newFixture(PolicyUnion)
	req := request("alice", "203.0.113.7")
	req.Format = models.FormatPNG

	d := grant(t, f.ledger, req)
	require.True(t, d.Granted)
	require.NotNil(t, d.Entry)

	entries := f.log.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, *d.Entry, entries[0])
	assert.Equal(t, int64(42), entries[0].IllustrationID)
	assert.Equal(t, "alice", entries[0].Identifier())
	assert.Equal(t, "203.0.113.7", entries[0].IPAddress)
	assert.Equal(t, models.FormatPNG, entries[0].DownloadType)
	assert.Equal(t, f.clock.Now(), entries[0].CreatedAt)

	ill, err := f.ills.FetchVisible(context.Background(), 42)
	require.Nil(t, err)
	assert.Equal(t, 1, ill.DownloadCountPNG)
	assert.Equal(t, 0, ill.DownloadCountSVG)
}

func TestUnknownIllustration(t *testing.T) {
	f := newFixture(PolicyUnion)

	for _, id := range []int64{43, 999999} {
		req := request("alice", "203.0.113.7")
		req.IllustrationID = id
		_, err := f.ledger.CheckAndGrant(context.Background(), req)
		assert.ErrorIs(t, err, ErrUnknownIllustration)
	}
	assert.Equal(t, 0, f.log.Len())

	usage, err := f.ledger.Remaining(context.Background(), "alice", "203.0.113.7")
	require.Nil(t, err)
	assert.Equal(t, 10, usage.Remaining)
}

type failingLog struct {
	auditlog.Store
}

func (failingLog) CountSince(axis auditlog.Axis, value string, since time.Time) (int, error) {
	return 0, errors.New("connection reset")
}

func TestFailsClosed(t *testing.T) {
	f := newFixture(PolicyUnion)
	f.ledger.Log = failingLog{Store: f.log}

	d, err := f.ledger.CheckAndGrant(context.Background(), request("alice", "203.0.113.7"))
	assert.NotNil(t, err)
	assert.False(t, d.Granted)
	assert.Equal(t, 0, f.log.Len())

	ill, _ := f.ills.FetchVisible(context.Background(), 42)
	assert.Equal(t, 0, ill.DownloadCountSVG)
}

type failingCounter struct {
	illustrations.Store
}

func (failingCounter) IncrementDownloadCount(ctx context.Context, id int64, format models.Format) error {
	return errors.New("disk full")
}

func TestFailedIncrementLeavesNoLogRow(t *testing.T) {
	f := newFixture(PolicyUnion)
	f.ledger.Illustrations = failingCounter{Store: f.ills}

	d, err := f.ledger.CheckAndGrant(context.Background(), request("alice", "203.0.113.7"))
	assert.NotNil(t, err)
	assert.False(t, d.Granted)
	assert.Equal(t, 0, f.log.Len())

	usage, err := f.ledger.Remaining(context.Background(), "alice", "203.0.113.7")
	require.Nil(t, err)
	assert.Equal(t, 10, usage.Remaining)
}

func TestInvalidRequests(t *testing.T) {
	f := newFixture(PolicyUnion)
	bad := []GrantRequest{
		{IllustrationID: 0, NetworkAddress: "203.0.113.7", Format: models.FormatSVG},
		{IllustrationID: 42, NetworkAddress: "203.0.113.7", Format: "gif"},
		{IllustrationID: 42, NetworkAddress: "", Format: models.FormatSVG},
	}
	for _, req := range bad {
		_, err := f.ledger.CheckAndGrant(context.Background(), req)
		assert.NotNil(t, err)
	}
	assert.Equal(t, 0, f.log.Len())
}

func TestConcurrentGrantsNeverExceedLimit(t *testing.T) {
	f := newFixture(PolicyUnion)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := f.ledger.CheckAndGrant(context.Background(), request(fmt.Sprintf("visitor-%d", i), "203.0.113.7"))
			if err == nil && d.Granted {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, granted)
	assert.Equal(t, 10, f.log.Len())
}

func TestRemaining(t *testing.T) {
	f := newFixture(PolicyUnion)
	for i := 0; i < 3; i++ {
		grant(t, f.ledger, request("alice", "203.0.113.7"))
	}
	grant(t, f.ledger, request("bob", "203.0.113.7"))

	usage, err := f.ledger.Remaining(context.Background(), "alice", "203.0.113.7")
	require.Nil(t, err)
	assert.Equal(t, Usage{Limit: 10, Used: 4, Remaining: 6}, usage)

	usage, err = f.ledger.Remaining(context.Background(), "alice", "198.51.100.1")
	require.Nil(t, err)
	assert.Equal(t, Usage{Limit: 10, Used: 3, Remaining: 7}, usage)

	assert.Equal(t, Usage{Limit: 10, Used: 12, Remaining: 0}, newUsage(10, 12))
}

func TestWindowStart(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	now := time.Date(2026, 10, 15, 3, 4, 5, 6, tokyo)
	assert.Equal(t, time.Date(2026, 10, 15, 0, 0, 0, 0, tokyo), WindowStart(now))
	assert.Equal(t, time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), Day(now))

	// Same instant, different calendar day in UTC.
	assert.Equal(t, time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC), Day(now.UTC()))
}

func TestParsePolicy(t *testing.T) {
	for in, expected := range map[string]Policy{
		"":           PolicyUnion,
		"union":      PolicyUnion,
		" Network ":  PolicyNetwork,
		"identifier": PolicyIdentifier,
	} {
		p, ok := ParsePolicy(in)
		assert.True(t, ok, in)
		assert.Equal(t, expected, p, in)
	}
	_, ok := ParsePolicy("cookie")
	assert.False(t, ok)
}

func TestPolicyAxes(t *testing.T) {
	assert.Equal(t, []auditlog.Axis{auditlog.AxisNetwork, auditlog.AxisIdentifier}, PolicyUnion.Axes("alice"))
	assert.Equal(t, []auditlog.Axis{auditlog.AxisNetwork}, PolicyUnion.Axes(""))
	assert.Equal(t, []auditlog.Axis{auditlog.AxisNetwork}, PolicyNetwork.Axes("alice"))
	assert.Equal(t, []auditlog.Axis{auditlog.AxisIdentifier}, PolicyIdentifier.Axes("alice"))
}

func TestSettingsFromConfig(t *testing.T) {
	s := SettingsFromConfig(config.QuotaConfig{DailyLimit: 3, Policy: "network"})
	assert.Equal(t, Settings{DailyLimit: 3, Policy: PolicyNetwork}, s)

	s = SettingsFromConfig(config.QuotaConfig{DailyLimit: 0, Policy: "bogus"})
	assert.Equal(t, Settings{DailyLimit: config.DefaultDailyLimit, Policy: PolicyUnion}, s)
}
