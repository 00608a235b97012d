package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/badgerwatch/internal/catalog"
	"github.com/example/badgerwatch/internal/config"
	"github.com/example/badgerwatch/internal/db"
	"github.com/example/badgerwatch/internal/events"
	"github.com/example/badgerwatch/internal/grades"
	"github.com/example/badgerwatch/internal/liveness"
	"github.com/example/badgerwatch/internal/logging"
	"github.com/example/badgerwatch/internal/migrate"
	"github.com/example/badgerwatch/internal/notify"
	"github.com/example/badgerwatch/internal/scheduler"
	"github.com/example/badgerwatch/internal/store"
	"github.com/example/badgerwatch/internal/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the watch engine and the local control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Environment)
			defer logger.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			backend, closeBackend, err := openBackend(ctx, cfg, migrateUp, logger)
			if err != nil {
				return err
			}
			defer closeBackend()
			st := store.Open(ctx, backend, logger.Named("store"))

			hub := events.NewHub()
			live := liveness.New()
			live.OnChange(func(s liveness.State) {
				hub.Publish(events.Event{Kind: events.LiveStatus, Data: s})
			})

			sinks, err := buildSinks(cfg)
			if err != nil {
				return err
			}
			dispatcher := notify.New(sinks, st, logger.Named("notify"))

			cat := catalog.New(cfg.CatalogBaseURL, live)
			sched := scheduler.New(cat, st, dispatcher, hub, scheduler.Options{
				Interval:     cfg.PollInterval,
				StartupDelay: cfg.StartupDelay,
				StaleAfter:   cfg.StaleAfter,
			}, logger)
			if err := sched.Start(ctx); err != nil {
				return err
			}

			ws := &web.Server{
				Watcher:  sched,
				Settings: st,
				Catalog:  cat,
				Courses:  cat,
				Messages: dispatcher,
				Grades:   grades.New(cfg.GradesBaseURL, st),
				Live:     live,
				Events:   hub,
				Logger:   logger.Named("web"),
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return web.Start(gctx, cfg.ListenAddr, ws.Routes(), logger.Named("web"))
			})
			g.Go(func() error {
				<-gctx.Done()
				sched.Stop()
				dispatcher.Wait()
				return nil
			})
			err = g.Wait()
			logger.Info("shut down")
			return err
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", false, "apply database migrations on startup (Postgres store only)")
	return cmd
}

// openBackend picks Postgres when DATABASE_URL is set and the JSON file
// otherwise.
func openBackend(ctx context.Context, cfg config.Config, migrateUp bool, logger *zap.Logger) (store.Backend, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Info("using file store", zap.String("path", cfg.DataPath))
		return store.NewFileBackend(cfg.DataPath), func() {}, nil
	}

	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, nil, fmt.Errorf("db ping: %w", err)
	}
	if migrateUp {
		if err := migrate.Up(ctx, d, logger.Named("migrate")); err != nil {
			d.Close()
			return nil, nil, err
		}
	}
	logger.Info("using postgres store")
	return store.NewPostgresBackend(d), d.Close, nil
}

func buildSinks(cfg config.Config) (notify.Sinks, error) {
	sinks := notify.Sinks{
		Relay: notify.NewCommandRelay(cfg.RelayBin, cfg.RelayScript),
	}
	if cfg.DesktopNotify {
		sinks.Desktop = notify.BeeepDesktop{}
	}
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegramRelay(cfg.TelegramToken, cfg.TelegramChatIDs)
		if err != nil {
			return notify.Sinks{}, err
		}
		sinks.Broadcast = tg
	}
	return sinks, nil
}
