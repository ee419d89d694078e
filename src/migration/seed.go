package migration

import (
	"context"
	"fmt"

	"github.com/illustory/gallery/src/config"
	"github.com/illustory/gallery/src/db"
	"github.com/illustory/gallery/src/illustrations"
	"github.com/illustory/gallery/src/storage"
	"github.com/jackc/pgx/v5/tracelog"
)

// Migrates to the latest version and fills the gallery with sample
// illustrations. The object store in the config must be reachable; running
// `gallery localstore` is enough for local dev.
func SampleSeed(ctx context.Context, count int) {
	Migrate(LatestVersion())

	conn := db.NewConnWithConfig(config.PostgresConfig{
		LogLevel: tracelog.LogLevelWarn,
	})
	defer conn.Close(ctx)

	store, err := storage.NewS3(ctx, config.Config.Backend)
	if err != nil {
		panic(err)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		panic(err)
	}
	defer tx.Rollback(ctx)

	fmt.Printf("Creating %d sample illustrations...\n", count)
	created, err := illustrations.Seed(ctx, tx, store, count)
	if err != nil {
		panic(err)
	}

	if err := tx.Commit(ctx); err != nil {
		panic(err)
	}
	for _, ill := range created {
		visibility := ""
		if !ill.Visible {
			visibility = " (hidden)"
		}
		fmt.Printf("  %d: %s%s\n", ill.ID, ill.Title, visibility)
	}
	fmt.Println("Done!")
}
