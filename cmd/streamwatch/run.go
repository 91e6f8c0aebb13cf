package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"streamwatch/internal/config"
	"streamwatch/internal/control"
	"streamwatch/internal/logging"
	"streamwatch/internal/monitor"
	"streamwatch/internal/notifications"
	"streamwatch/internal/sessionlog"
	"streamwatch/internal/tiktok"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		watchlistPath string
		sessionID     string
		dataCenter    string
		checkInterval int
		outputDir     string
		maxConcurrent int
		verbose       bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the monitoring loop in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := monitor.Overrides{
				SessionID:     sessionID,
				TargetIDC:     dataCenter,
				CheckInterval: checkInterval,
				MaxConcurrent: maxConcurrent,
				OutputDir:     outputDir,
			}
			return runMonitor(cmd, ctx, watchlistPath, overrides, verbose)
		},
	}

	cmd.Flags().StringVarP(&watchlistPath, "watchlist", "w", "", "Watchlist JSON path, overrides the config file")
	cmd.Flags().StringVarP(&sessionID, "session-id", "s", "", "TikTok session credential, overrides the watchlist")
	cmd.Flags().StringVarP(&dataCenter, "data-center", "d", "", "Routing hint (tt_target_idc), overrides the watchlist")
	cmd.Flags().IntVarP(&checkInterval, "check-interval", "i", 0, "Seconds between liveness checks, overrides the watchlist")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Recording output directory, overrides the watchlist")
	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "Maximum simultaneous recordings, overrides the watchlist")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}

func runMonitor(cmd *cobra.Command, ctx *commandContext, watchlistPath string, overrides monitor.Overrides, verbose bool) error {
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if watchlistPath != "" {
		expanded, err := config.ExpandPath(watchlistPath)
		if err != nil {
			return fmt.Errorf("resolve watchlist path: %w", err)
		}
		cfg.Paths.Watchlist = expanded
	}

	runID := time.Now().UTC().Format("20060102T150405Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("streamwatch-%s.log", runID))
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	lockPath := filepath.Join(cfg.Paths.StateDir, "streamwatch.lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return errors.New("another streamwatch instance is already running")
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release instance lock", logging.Error(err))
		}
	}()

	store, err := sessionlog.OpenStore(cfg.Paths.StateDir)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer store.Close()

	client, err := tiktok.NewBridgeClient(tiktok.BridgeOptions{
		URL:            cfg.Bridge.URL,
		RequestTimeout: time.Duration(cfg.Bridge.RequestTimeout) * time.Second,
		SignServer:     cfg.Bridge.SignServer,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("bridge client: %w", err)
	}

	channel := control.NewChannel(
		cfg.Paths.ControlDir,
		time.Duration(cfg.Monitor.PauseDefaultSeconds)*time.Second,
		logger,
	)
	journal := sessionlog.NewJournal(
		sessionlog.NewCSVJournal(cfg.Paths.LogDir),
		store,
		logger,
	)

	mon, err := monitor.New(monitor.Options{
		Config:    cfg,
		Client:    client,
		Control:   channel,
		Journal:   journal,
		Notifier:  notifications.NewService(cfg),
		Logger:    logger,
		Overrides: overrides,
	})
	if err != nil {
		return fmt.Errorf("create monitor: %w", err)
	}

	logger.Info("streamwatch starting",
		logging.String("log_file", logPath),
		logging.String("watchlist", cfg.Paths.Watchlist),
		logging.String("control_dir", cfg.Paths.ControlDir),
		logging.Int("pid", os.Getpid()),
	)

	if err := mon.Run(signalCtx); err != nil {
		logger.Error("monitor exited with error", logging.Error(err))
		return err
	}
	return nil
}
