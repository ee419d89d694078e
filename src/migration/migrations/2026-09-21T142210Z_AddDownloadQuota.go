package migrations

import (
	"context"
	"time"

	"github.com/illustory/gallery/src/migration/types"
	"github.com/jackc/pgx/v5"
)

func init() {
	registerMigration(AddDownloadQuota{})
}

type AddDownloadQuota struct{}

func (m AddDownloadQuota) Version() types.MigrationVersion {
	return types.MigrationVersion(time.Date(2026, 9, 21, 14, 22, 10, 0, time.UTC))
}

func (m AddDownloadQuota) Name() string {
	return "AddDownloadQuota"
}

func (m AddDownloadQuota) Description() string {
	return "Add per-day quota counters so grants can be gated atomically"
}

func (m AddDownloadQuota) Up(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx,
		`
		CREATE TABLE download_quota (
			axis TEXT NOT NULL CHECK (axis IN ('ip_address', 'user_identifier')),
			axis_value TEXT NOT NULL,
			day DATE NOT NULL,
			count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (axis, axis_value, day)
		);

		CREATE INDEX download_quota_day ON download_quota (day);
		`,
	)
	if err != nil {
		return err
	}

	// Seed today's counters from the log so the new gate agrees with
	// whatever was already granted.
	_, err = tx.Exec(ctx,
		`
		INSERT INTO download_quota (axis, axis_value, day, count)
		SELECT 'ip_address', ip_address, created_at::date, COUNT(*)
		FROM download_log
		WHERE created_at >= CURRENT_DATE
		GROUP BY ip_address, created_at::date;

		INSERT INTO download_quota (axis, axis_value, day, count)
		SELECT 'user_identifier', user_identifier, created_at::date, COUNT(*)
		FROM download_log
		WHERE created_at >= CURRENT_DATE AND user_identifier IS NOT NULL
		GROUP BY user_identifier, created_at::date;
		`,
	)
	return err
}

func (m AddDownloadQuota) Down(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `DROP TABLE download_quota;`)
	return err
}
