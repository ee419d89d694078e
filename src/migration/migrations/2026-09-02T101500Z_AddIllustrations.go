package migrations

import (
	"context"
	"time"

	"github.com/illustory/gallery/src/migration/types"
	"github.com/jackc/pgx/v5"
)

func init() {
	registerMigration(AddIllustrations{})
}

type AddIllustrations struct{}

func (m AddIllustrations) Version() types.MigrationVersion {
	return types.MigrationVersion(time.Date(2026, 9, 2, 10, 15, 0, 0, time.UTC))
}

func (m AddIllustrations) Name() string {
	return "AddIllustrations"
}

func (m AddIllustrations) Description() string {
	return "Add the illustration table"
}

func (m AddIllustrations) Up(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx,
		`
		CREATE TABLE illustration (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			image_path TEXT NOT NULL,
			visible BOOLEAN NOT NULL DEFAULT TRUE,
			download_count_svg INTEGER NOT NULL DEFAULT 0,
			download_count_png INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE UNIQUE INDEX illustration_image_path ON illustration (image_path);
		`,
	)
	return err
}

func (m AddIllustrations) Down(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `DROP TABLE illustration;`)
	return err
}
