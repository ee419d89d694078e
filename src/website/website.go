package website

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/illustory/gallery/src/auditlog"
	"github.com/illustory/gallery/src/clock"
	"github.com/illustory/gallery/src/config"
	"github.com/illustory/gallery/src/db"
	"github.com/illustory/gallery/src/galleryurl"
	"github.com/illustory/gallery/src/illustrations"
	"github.com/illustory/gallery/src/jobs"
	"github.com/illustory/gallery/src/logging"
	"github.com/illustory/gallery/src/quota"
	"github.com/illustory/gallery/src/storage"
	"github.com/spf13/cobra"
)

var runInMemory bool

var WebsiteCommand = &cobra.Command{
	Use:   "gallery",
	Short: "Run the illustration gallery download service",
	Run: func(cmd *cobra.Command, args []string) {
		defer logging.LogPanics(nil)
		logging.Info().Msg("Hello, gallery!")

		var wg sync.WaitGroup

		settings := quota.SettingsFromConfig(config.Config.Quota)
		limiter := NewAddressLimiter(config.Config.Quota.BurstPerSecond, config.Config.Quota.Burst)

		deps := Deps{
			Downloads: config.Config.Downloads,
			Limiter:   limiter,
		}
		var pruneJob *jobs.Job

		if runInMemory {
			logging.Warn().Msg("Running with in-memory storage; nothing will survive a restart")

			objects := storage.NewMemory(galleryurl.BuildLocalObjectsBase())
			ills := illustrations.NewMemory()
			if err := illustrations.SeedMemory(context.Background(), ills, objects, 12); err != nil {
				logging.Fatal().Err(err).Msg("failed to create sample illustrations")
			}

			deps.Storage = objects
			deps.LocalObjects = objects
			deps.Illustrations = ills
			deps.Ledger = quota.NewMemoryLedger(auditlog.NewMemoryStore(), ills, clock.RealClock{}, settings)
			pruneJob = jobs.Noop("quota pruning")
		} else {
			conn := db.NewConnPool()
			defer conn.Close()

			objects, err := storage.NewS3(context.Background(), config.Config.Backend)
			if err != nil {
				logging.Fatal().Err(err).Msg("failed to set up object storage")
			}

			deps.Storage = objects
			deps.Illustrations = illustrations.PgStore{Conn: conn}
			deps.Ledger = quota.NewPostgresLedger(conn, settings)
			pruneJob = quota.PruneJob(conn, clock.RealClock{}, config.Config.Quota.RetentionDays)
		}

		// Start background jobs
		wg.Add(1)
		backgroundJobs := jobs.Jobs{
			pruneJob,
			limiter.CleanupJob(),
		}

		// Create HTTP server
		wg.Add(1)
		server := http.Server{
			Addr:    config.Config.Addr,
			Handler: NewWebsiteRoutes(deps),
		}
		go func() {
			logging.Info().
				Str("addr", config.Config.Addr).
				Int("dailyLimit", settings.DailyLimit).
				Str("policy", string(settings.Policy)).
				Msg("Serving downloads")
			serverErr := server.ListenAndServe()
			if !errors.Is(serverErr, http.ErrServerClosed) {
				logging.Error().Err(serverErr).Msg("Server shut down unexpectedly")
			}
			// The wg.Done() happens in the shutdown logic below.
		}()

		// Wait for SIGINT in the background and trigger graceful shutdown
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt)
		go func() {
			<-signals // First SIGINT (start shutdown)
			logging.Info().Msg("Shutting down the gallery")

			const timeout = 10 * time.Second

			go func() {
				logging.Info().Msg("Shutting down background jobs...")
				unfinished := backgroundJobs.CancelAndWait(timeout)
				if len(unfinished) == 0 {
					logging.Info().Msg("Background jobs closed gracefully")
				} else {
					logging.Warn().Strs("Unfinished", unfinished).Msg("Background jobs did not finish by the deadline")
				}
				wg.Done()
			}()

			// Gracefully shut down the HTTP server
			go func() {
				timeoutCtx, cancel := context.WithTimeout(context.Background(), timeout)
				defer cancel()
				err := server.Shutdown(timeoutCtx)
				if err != nil {
					logging.Warn().Err(err).Msg("Server did not shut down gracefully")
				}
				wg.Done()
			}()

			<-signals // Second SIGINT (force quit)
			logging.Warn().Strs("Unfinished background jobs", backgroundJobs.ListUnfinished()).Msg("Forcibly killed the gallery")
			os.Exit(1)
		}()

		// Wait for all of the above to finish, then exit
		wg.Wait()
	},
}

func init() {
	WebsiteCommand.Flags().BoolVar(&runInMemory, "memory", false, "Keep everything in memory and serve sample illustrations; no database or object store needed")
}
