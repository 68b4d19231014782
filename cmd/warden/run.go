package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/infrastructure/config"
	"github.com/wardenhq/warden/internal/infrastructure/logging"
	"github.com/wardenhq/warden/internal/infrastructure/notify"
	"github.com/wardenhq/warden/internal/infrastructure/process"
	"github.com/wardenhq/warden/internal/usecases"
)

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Supervise the configured server until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupervisor(*configPath)
		},
	}
}

func runSupervisor(configPath string) error {
	// Values from .env feed the WARDEN_* environment overrides. A missing
	// file is fine.
	_ = godotenv.Load()

	fs := afero.NewOsFs()
	cfg, err := config.Load(fs, configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	settings, err := superviseSettings(cfg)
	if err != nil {
		return err
	}

	var notifier domain.Notifier = notify.Nop{}
	if cfg.Notify.DiscordWebhookURL != "" {
		notifier = notify.NewDiscord(cfg.Notify.DiscordWebhookURL, logger)
	}

	sup := usecases.NewSupervisorService(usecases.SupervisorConfig{
		Settings: settings,
		Launcher: process.NewLauncher(logger),
		Notifier: notifier,
		Logger:   logger,
	})

	// Cancel the run context on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := config.NewWatcher(fs, configPath, logger, func(next *config.Config) {
		updated, err := superviseSettings(next)
		if err != nil {
			logger.Error("ignoring reloaded configuration", logging.Fields{"error": err.Error()})
			return
		}
		sup.UpdateSettings(updated)
	})
	if err != nil {
		return fmt.Errorf("failed to set up config watcher: %w", err)
	}
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("failed to watch config file: %w", err)
	}
	defer watcher.Stop()

	logger.Info("warden starting", logging.Fields{
		"version": version,
		"config":  configPath,
		"window":  settings.Window.String(),
	})

	return sup.Run(ctx)
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	logCfg := logging.DefaultConfig()
	if cfg.Logging.Development {
		logCfg = logging.DevelopmentConfig()
	}
	if cfg.Logging.Level != "" {
		logCfg.Level = logging.LogLevel(cfg.Logging.Level)
	}
	return logging.New(logCfg)
}

// superviseSettings maps the file configuration onto supervisor settings.
func superviseSettings(cfg *config.Config) (usecases.Settings, error) {
	window, err := cfg.Schedule.Window()
	if err != nil {
		return usecases.Settings{}, err
	}
	return usecases.Settings{
		Launch: domain.LaunchSpec{
			Command:     cfg.Server.Command,
			Args:        cfg.Server.Args,
			Dir:         cfg.Server.Workdir,
			StopCommand: cfg.Server.StopCommand,
		},
		Window:       window,
		PollInterval: cfg.Schedule.PollInterval,
		WarnMinutes:  cfg.Schedule.WarnMinutes,
		StopTimeout:  cfg.Server.StopTimeout,
		MaxStarts:    cfg.Watchdog.MaxStarts,
		CrashWindow:  cfg.Watchdog.Window,
		Backoff:      cfg.Watchdog.Backoff,
	}, nil
}
