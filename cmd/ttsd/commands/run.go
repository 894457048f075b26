package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haivivi/ttsd/pkg/engine"
	"github.com/haivivi/ttsd/pkg/engine/doubaoengine"
	"github.com/haivivi/ttsd/pkg/engine/refengine"
	"github.com/haivivi/ttsd/pkg/enginedrv"
	"github.com/haivivi/ttsd/pkg/kv"
	"github.com/haivivi/ttsd/pkg/logging"
	"github.com/haivivi/ttsd/pkg/metrics"
	"github.com/haivivi/ttsd/pkg/player/localmixer"
	"github.com/haivivi/ttsd/pkg/rpc"
	"github.com/haivivi/ttsd/pkg/rpc/wsbus"
	"github.com/haivivi/ttsd/pkg/scheduler"
	"github.com/haivivi/ttsd/pkg/session"
	"github.com/haivivi/ttsd/pkg/settings"
	"github.com/haivivi/ttsd/pkg/ttsdconfig"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the ttsd daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(ctx context.Context) error {
	cfg, err := ttsdconfig.Load([]string{configPath})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.Default("ttsd")

	db, err := kv.NewBadger(kv.BadgerOptions{Dir: cfg.SettingsDir})
	if err != nil {
		return fmt.Errorf("open settings store: %w", err)
	}
	store := settings.NewKVStore(db)
	defer store.Close()

	srv := wsbus.New(cfg.ListenAddr, logger)
	notifier := rpc.NewNotifier(srv)

	reg := session.New(notifier, logger)
	drv := enginedrv.New(logger)
	backend := localmixer.New(logger)

	var metricsHandle *metrics.Scheduler
	var opts []scheduler.Option
	opts = append(opts, scheduler.WithLogger(logger), scheduler.WithCleanupDeadline(cfg.CleanupDeadline))
	if cfg.MetricsAddr != "" {
		metricsHandle, err = metrics.NewScheduler()
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		opts = append(opts, scheduler.WithMetrics(metricsHandle))
	}

	loadEngine := newEngineLoader(cfg, store, logger)
	sched := scheduler.New(reg, drv, backend, notifier, loadEngine, opts...)
	srv.SetHandler(sched)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go sched.Run(runCtx)

	errCh := make(chan error, 2)
	go func() {
		errCh <- srv.Serve(runCtx)
	}()

	if metricsHandle != nil {
		metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsHandle.Handler()}
		go func() {
			errCh <- metricsSrv.ListenAndServe()
		}()
		defer metricsSrv.Close()
		defer metricsHandle.Shutdown(context.Background())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.InfoPrintf("ttsd: received shutdown signal")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	cancel()
	return srv.Close()
}

// newEngineLoader resolves the configured default engine into a
// scheduler.EngineLoader, choosing between the in-tree reference engine and
// the Doubao network engine per cfg.DefaultEngine. A stored override in
// settings takes priority over the config file's default.
func newEngineLoader(cfg ttsdconfig.Config, store *settings.KVStore, logger logging.Logger) func(ctx context.Context) (engine.Plugin, error) {
	return func(ctx context.Context) (engine.Plugin, error) {
		id := cfg.DefaultEngine
		if stored, err := store.DefaultEngine(ctx); err == nil && stored != "" {
			id = stored
		}
		switch id {
		case "doubao":
			return doubaoengine.New(doubaoengine.Options{
				AppID:      cfg.Doubao.AppID,
				AccessKey:  cfg.Doubao.AccessKey,
				AppKey:     cfg.Doubao.AppKey,
				ResourceID: cfg.Doubao.ResourceID,
				Logger:     logger,
			}), nil
		default:
			return refengine.New(refengine.Options{}), nil
		}
	}
}
