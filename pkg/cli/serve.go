package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shubapp/devproxy/internal/matching"
	"github.com/shubapp/devproxy/pkg/admin"
	"github.com/shubapp/devproxy/pkg/config"
	"github.com/shubapp/devproxy/pkg/events"
	"github.com/shubapp/devproxy/pkg/logging"
	"github.com/shubapp/devproxy/pkg/metrics"
	"github.com/shubapp/devproxy/pkg/proxy"
	"github.com/shubapp/devproxy/pkg/recording"
	"github.com/shubapp/devproxy/pkg/requestlog"
	"github.com/shubapp/devproxy/pkg/routing"
	"github.com/shubapp/devproxy/pkg/scenario"
	"github.com/shubapp/devproxy/pkg/session"
	"github.com/shubapp/devproxy/pkg/store"
	"github.com/shubapp/devproxy/pkg/store/file"
)

const (
	requestLogCapacity = 1000
	metricsInterval    = 10 * time.Second
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the proxy and the admin API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(serveConfigPath)
		if err != nil {
			if serveConfigPath == "" && errors.Is(err, config.ErrFileNotFound) {
				cfg = config.Default()
			} else {
				return err
			}
		}
		cfg.ApplyEnv()
		return runServe(cmd.Context(), cfg, configBaseDir(serveConfigPath))
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Path to devproxy.yaml (default: discover in cwd)")
	rootCmd.AddCommand(serveCmd)
}

func configBaseDir(path string) string {
	if path == "" {
		if cwd, err := os.Getwd(); err == nil {
			return cwd
		}
		return "."
	}
	return filepath.Dir(path)
}

func runServe(ctx context.Context, cfg *config.Config, baseDir string) error {
	log := logging.FromStrings(cfg.Server.LogLevel, cfg.Server.LogFormat)

	// Store: file-backed when a data dir is configured, otherwise in-memory.
	var st store.Store
	var fileStore *file.FileStore
	if cfg.Server.DataDir != "" {
		fileStore = file.New(file.Config{DataDir: cfg.Server.DataDir}, log)
		if err := fileStore.Open(ctx); err != nil {
			return fmt.Errorf("opening data store: %w", err)
		}
		defer func() { _ = fileStore.Close() }()
		st = fileStore
	} else {
		st = store.NewMemoryStore()
	}

	if err := applySeed(cfg, baseDir, st, log); err != nil {
		return err
	}

	broadcaster := events.NewBroadcaster(log)
	switcher := scenario.New(st, broadcaster, log)
	if err := switcher.Initialize(); err != nil {
		return fmt.Errorf("initializing scenarios: %w", err)
	}
	if cfg.Server.DefaultScenario != "" && switcher.ActiveScenarioID() == "" {
		if err := switcher.Activate(cfg.Server.DefaultScenario); err != nil {
			return fmt.Errorf("activating default scenario: %w", err)
		}
	}

	router := routing.NewRouter(cfg.Projects)
	reqlog := requestlog.NewInMemoryStore(requestLogCapacity)
	collector := metrics.NewCollector()
	recorder := recording.NewRecorder(st, broadcaster, log)

	dispatcher := proxy.NewDispatcher(
		router,
		matching.New(log),
		switcher,
		recorder,
		session.Default(),
		reqlog,
		collector,
		broadcaster,
		log,
		proxy.Options{
			UpstreamOverride: cfg.Server.UpstreamOverride,
			RecordMode:       cfg.Server.RecordMode,
		},
	)

	proxyServer := proxy.NewServer(dispatcher, router, log)
	if cfg.Server.MaxConns > 0 {
		proxyServer.MaxConns = cfg.Server.MaxConns
	}
	if err := proxyServer.Start(); err != nil {
		return fmt.Errorf("starting proxy listeners: %w", err)
	}

	adminAPI := admin.New(cfg.AdminPort(), admin.Options{
		Store:      st,
		Switcher:   switcher,
		Dispatcher: dispatcher,
		Router:     router,
		RequestLog: reqlog,
		Metrics:    collector,
		Events:     broadcaster,
		Version:    Version,
		Log:        log,
	})
	if err := adminAPI.Start(); err != nil {
		return fmt.Errorf("starting admin API: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go collector.PublishLoop(runCtx, broadcaster, metricsInterval)

	log.Info("devproxy running",
		"adminPort", cfg.AdminPort(),
		"projects", len(cfg.Projects),
		"recordMode", dispatcher.RecordMode())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := proxyServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("proxy shutdown error", "error", err)
	}
	if err := adminAPI.Stop(); err != nil {
		log.Warn("admin shutdown error", "error", err)
	}
	if fileStore != nil {
		if err := fileStore.ForceSave(); err != nil && !errors.Is(err, store.ErrReadOnly) {
			log.Warn("final save failed", "error", err)
		}
	}
	return nil
}

// applySeed loads the config's referenced mock and scenario files into the
// store, skipping ids that already exist so restarts stay idempotent.
func applySeed(cfg *config.Config, baseDir string, st store.Store, log *slog.Logger) error {
	seed, err := config.LoadSeed(cfg, baseDir)
	if err != nil {
		return fmt.Errorf("loading seed files: %w", err)
	}

	created := 0
	for _, m := range seed.Mocks {
		if _, err := st.CreateMock(m); err != nil {
			if errors.Is(err, store.ErrDuplicateID) {
				continue
			}
			return fmt.Errorf("seeding mock %s: %w", m.ID, err)
		}
		created++
	}
	for _, s := range seed.Scenarios {
		if _, err := st.CreateScenario(s); err != nil {
			if errors.Is(err, store.ErrDuplicateID) {
				continue
			}
			return fmt.Errorf("seeding scenario %s: %w", s.ID, err)
		}
		created++
	}
	if created > 0 {
		log.Info("seeded store from config", "created", created)
	}
	return nil
}
