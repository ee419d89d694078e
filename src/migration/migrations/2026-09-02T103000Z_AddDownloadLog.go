package migrations

import (
	"context"
	"time"

	"github.com/illustory/gallery/src/migration/types"
	"github.com/jackc/pgx/v5"
)

func init() {
	registerMigration(AddDownloadLog{})
}

type AddDownloadLog struct{}

func (m AddDownloadLog) Version() types.MigrationVersion {
	return types.MigrationVersion(time.Date(2026, 9, 2, 10, 30, 0, 0, time.UTC))
}

func (m AddDownloadLog) Name() string {
	return "AddDownloadLog"
}

func (m AddDownloadLog) Description() string {
	return "Add the append-only download log"
}

func (m AddDownloadLog) Up(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx,
		`
		CREATE TABLE download_log (
			id BIGSERIAL PRIMARY KEY,
			illustration_id BIGINT NOT NULL REFERENCES illustration (id) ON DELETE CASCADE,
			user_identifier TEXT,
			ip_address TEXT NOT NULL,
			download_type TEXT NOT NULL CHECK (download_type IN ('svg', 'png')),
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE INDEX download_log_ip_address ON download_log (ip_address, created_at);
		CREATE INDEX download_log_user_identifier ON download_log (user_identifier, created_at);
		CREATE INDEX download_log_illustration ON download_log (illustration_id);
		`,
	)
	return err
}

func (m AddDownloadLog) Down(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `DROP TABLE download_log;`)
	return err
}
