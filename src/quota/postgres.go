package quota

import (
	"context"
	"errors"
	"time"

	"github.com/illustory/gallery/src/auditlog"
	"github.com/illustory/gallery/src/clock"
	"github.com/illustory/gallery/src/db"
	"github.com/illustory/gallery/src/illustrations"
	"github.com/illustory/gallery/src/jobs"
	"github.com/illustory/gallery/src/logging"
	"github.com/illustory/gallery/src/oops"
	"github.com/illustory/gallery/src/utils"
)

type PostgresLedger struct {
	Conn     db.ConnOrTx
	Clock    clock.Clock
	Settings Settings
}

var _ Ledger = &PostgresLedger{}

func NewPostgresLedger(conn db.ConnOrTx, settings Settings) *PostgresLedger {
	return &PostgresLedger{
		Conn:     conn,
		Clock:    clock.RealClock{},
		Settings: settings,
	}
}

func (l *PostgresLedger) CheckAndGrant(ctx context.Context, req GrantRequest) (Decision, error) {
	if err := req.validate(); err != nil {
		return Decision{}, err
	}
	if l.Settings.DailyLimit <= 0 {
		return denied(reasonFor(l.Settings.Policy.Axes(req.Identifier)[0])), nil
	}

	now := l.Clock.Now()
	day := Day(now)

	tx, err := l.Conn.Begin(ctx)
	if err != nil {
		return Decision{}, oops.New(err, "failed to start grant transaction")
	}
	defer tx.Rollback(ctx)

	for _, axis := range l.Settings.Policy.Axes(req.Identifier) {
		ok, err := claim(ctx, tx, axis, req.axisValue(axis), day, l.Settings.DailyLimit)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			// Rolling back releases any claim already made on an earlier axis.
			return denied(reasonFor(axis)), nil
		}
	}

	err = illustrations.IncrementDownloadCount(ctx, tx, req.IllustrationID, req.Format)
	if err != nil {
		if errors.Is(err, illustrations.ErrNotFound) {
			return Decision{}, ErrUnknownIllustration
		}
		return Decision{}, err
	}

	entry, err := auditlog.Insert(ctx, tx, req.logEntry(now))
	if err != nil {
		return Decision{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Decision{}, oops.New(err, "failed to commit download grant")
	}

	return Decision{Granted: true, Entry: entry}, nil
}

// Takes one unit of today's quota on an axis. The counter only moves if it is
// still below the limit; if it isn't, no row comes back and the claim fails.
func claim(ctx context.Context, conn db.ConnOrTx, axis auditlog.Axis, value string, day time.Time, limit int) (bool, error) {
	_, err := db.QueryOneScalar[int](ctx, conn,
		`
		---- Claim download quota
		INSERT INTO download_quota (axis, axis_value, day, count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (axis, axis_value, day) DO UPDATE
			SET count = download_quota.count + 1
			WHERE download_quota.count < $4
		RETURNING count
		`,
		axis.String(),
		value,
		day,
		limit,
	)
	if err != nil {
		if errors.Is(err, db.NotFound) {
			return false, nil
		}
		return false, oops.New(err, "failed to claim quota on %s", axis)
	}
	return true, nil
}

func (l *PostgresLedger) Remaining(ctx context.Context, identifier, networkAddress string) (Usage, error) {
	day := Day(l.Clock.Now())
	req := GrantRequest{Identifier: identifier, NetworkAddress: networkAddress}

	used := 0
	for _, axis := range l.Settings.Policy.Axes(identifier) {
		count, err := db.QueryOneScalar[int](ctx, l.Conn,
			`
			---- Read download quota
			SELECT count
			FROM download_quota
			WHERE
				axis = $1
				AND axis_value = $2
				AND day = $3
			`,
			axis.String(),
			req.axisValue(axis),
			day,
		)
		if err != nil {
			if errors.Is(err, db.NotFound) {
				continue
			}
			return Usage{}, oops.New(err, "failed to read quota on %s", axis)
		}
		used = utils.IntMax(used, count)
	}
	return newUsage(l.Settings.DailyLimit, used), nil
}

// Deletes counters for days before the cutoff. Old days can never be claimed
// against again, so this only reclaims space.
func Prune(ctx context.Context, conn db.ConnOrTx, before time.Time) (int64, error) {
	tag, err := conn.Exec(ctx,
		`
		---- Prune download quota
		DELETE FROM download_quota
		WHERE day < $1
		`,
		Day(before),
	)
	if err != nil {
		return 0, oops.New(err, "failed to prune download quota")
	}
	return tag.RowsAffected(), nil
}

func PruneJob(conn db.ConnOrTx, clk clock.Clock, retentionDays int) *jobs.Job {
	if retentionDays <= 0 {
		logging.Info().Msg("Quota counter pruning disabled")
		return jobs.Noop("quota pruning")
	}
	return jobs.RunEvery("quota pruning", time.Hour, func(ctx context.Context) error {
		cutoff := WindowStart(clk.Now()).AddDate(0, 0, -retentionDays)
		n, err := Prune(ctx, conn, cutoff)
		if err != nil {
			return err
		}
		if n > 0 {
			logging.ExtractLogger(ctx).Info().Int64("rows", n).Time("cutoff", cutoff).Msg("Pruned quota counters")
		}
		return nil
	})
}
