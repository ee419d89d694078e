package quota

import (
	"context"
	"errors"
	"sync"

	"github.com/illustory/gallery/src/auditlog"
	"github.com/illustory/gallery/src/clock"
	"github.com/illustory/gallery/src/illustrations"
	"github.com/illustory/gallery/src/oops"
	"github.com/illustory/gallery/src/utils"
)

// A ledger that keeps everything in process. It counts straight from the
// audit log, under one lock, so check and record can't interleave.
type MemoryLedger struct {
	Log           auditlog.Store
	Illustrations illustrations.Store
	Clock         clock.Clock
	Settings      Settings

	mu sync.Mutex
}

var _ Ledger = &MemoryLedger{}

func NewMemoryLedger(log auditlog.Store, ills illustrations.Store, clk clock.Clock, settings Settings) *MemoryLedger {
	return &MemoryLedger{
		Log:           log,
		Illustrations: ills,
		Clock:         clk,
		Settings:      settings,
	}
}

func (l *MemoryLedger) CheckAndGrant(ctx context.Context, req GrantRequest) (Decision, error) {
	if err := req.validate(); err != nil {
		return Decision{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.Clock.Now()
	since := WindowStart(now)
	for _, axis := range l.Settings.Policy.Axes(req.Identifier) {
		count, err := l.Log.CountSince(axis, req.axisValue(axis), since)
		if err != nil {
			return Decision{}, oops.New(err, "failed to count downloads on %s", axis)
		}
		if count >= l.Settings.DailyLimit {
			return denied(reasonFor(axis)), nil
		}
	}

	if _, err := l.Illustrations.FetchVisible(ctx, req.IllustrationID); err != nil {
		if errors.Is(err, illustrations.ErrNotFound) {
			return Decision{}, ErrUnknownIllustration
		}
		return Decision{}, err
	}

	// The counter goes first so a failed increment leaves no log row behind.
	if err := l.Illustrations.IncrementDownloadCount(ctx, req.IllustrationID, req.Format); err != nil {
		if errors.Is(err, illustrations.ErrNotFound) {
			return Decision{}, ErrUnknownIllustration
		}
		return Decision{}, err
	}
	entry, err := l.Log.Insert(req.logEntry(now))
	if err != nil {
		return Decision{}, oops.New(err, "failed to record download")
	}

	return Decision{Granted: true, Entry: &entry}, nil
}

func (l *MemoryLedger) Remaining(ctx context.Context, identifier, networkAddress string) (Usage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	since := WindowStart(l.Clock.Now())
	req := GrantRequest{Identifier: identifier, NetworkAddress: networkAddress}

	used := 0
	for _, axis := range l.Settings.Policy.Axes(identifier) {
		count, err := l.Log.CountSince(axis, req.axisValue(axis), since)
		if err != nil {
			return Usage{}, oops.New(err, "failed to count downloads on %s", axis)
		}
		used = utils.IntMax(used, count)
	}
	return newUsage(l.Settings.DailyLimit, used), nil
}
