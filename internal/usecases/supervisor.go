// Package usecases implements the supervision logic for warden.
package usecases

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/infrastructure/logging"
)

// Settings is the reloadable part of the supervisor's behavior. The launch
// spec of an already-running server is unaffected until the next launch.
type Settings struct {
	Launch       domain.LaunchSpec
	Window       domain.Window
	PollInterval time.Duration
	WarnMinutes  []int
	StopTimeout  time.Duration
	MaxStarts    int
	CrashWindow  time.Duration
	Backoff      time.Duration
}

// SupervisorService keeps the server process in line with its daily window:
// it launches the server when the window opens, warns players before close,
// stops the server outside the window, and throttles crash loops.
type SupervisorService struct {
	launcher domain.Launcher
	notifier domain.Notifier
	log      *logging.Logger
	now      func() time.Time

	mu           sync.Mutex
	settings     Settings
	proc         domain.Process
	tracker      *domain.RestartTracker
	warned       map[int]bool
	inBackoff    bool
	backoffUntil time.Time
}

// SupervisorConfig contains the dependencies for a SupervisorService.
type SupervisorConfig struct {
	Settings Settings
	Launcher domain.Launcher
	Notifier domain.Notifier
	Logger   *logging.Logger
}

// NewSupervisorService creates a supervisor with the given dependencies.
func NewSupervisorService(config SupervisorConfig) *SupervisorService {
	return &SupervisorService{
		launcher: config.Launcher,
		notifier: config.Notifier,
		log:      config.Logger,
		now:      time.Now,
		settings: config.Settings,
		tracker:  domain.NewRestartTracker(config.Settings.MaxStarts, config.Settings.CrashWindow),
	}
}

// UpdateSettings swaps the supervisor's settings. Used by the config reload
// path; the restart history survives the swap.
func (s *SupervisorService) UpdateSettings(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	s.tracker.SetPolicy(settings.MaxStarts, settings.CrashWindow)
	s.log.Info("supervisor settings updated", logging.Fields{
		"window":        settings.Window.String(),
		"poll_interval": settings.PollInterval.String(),
	})
}

// Run reconciles immediately and then on every poll tick until ctx is
// canceled. A still-running server is stopped gracefully on the way out.
func (s *SupervisorService) Run(ctx context.Context) error {
	settings := s.currentSettings()
	s.log.Info("supervisor started", logging.Fields{
		"window":        settings.Window.String(),
		"poll_interval": settings.PollInterval.String(),
	})
	s.notify(ctx, "Warden supervisor started.")

	s.ReconcileOnce(ctx, s.now())

	ticker := time.NewTicker(settings.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case <-ticker.C:
			s.ReconcileOnce(ctx, s.now())
			ticker.Reset(s.currentSettings().PollInterval)
		}
	}
}

// ReconcileOnce drives the process toward the schedule at the given instant.
// Exported so tests can step the supervisor without the poll loop.
func (s *SupervisorService) ReconcileOnce(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A process that died since the last tick is cleared first so the window
	// logic below sees it as stopped.
	if s.proc != nil && !s.proc.Alive() {
		fields := logging.Fields{"run_id": s.proc.Run().ID}
		if err := s.proc.ExitError(); err != nil {
			fields["error"] = err.Error()
		}
		s.log.Warn("server process exited unexpectedly", fields)
		s.proc = nil
		s.warned = nil
	}

	inWindow := s.settings.Window.Contains(now)

	switch {
	case s.proc == nil && inWindow:
		s.startServer(ctx, now)
	case s.proc != nil && !inWindow:
		s.stopServer(ctx)
	case s.proc != nil && inWindow:
		s.maybeWarn(now)
	}
}

// startServer launches the server unless the restart tracker forbids it.
// Callers hold s.mu.
func (s *SupervisorService) startServer(ctx context.Context, now time.Time) {
	if s.tracker.Throttled(now) || now.Before(s.backoffUntil) {
		if !s.inBackoff {
			s.inBackoff = true
			s.backoffUntil = now.Add(s.settings.Backoff)
			s.log.Warn("restart limit reached, backing off", logging.Fields{
				"attempts": s.tracker.Attempts(now),
				"until":    s.backoffUntil.Format(time.RFC3339),
			})
			s.notify(ctx, "Server keeps crashing, holding off on restarts.")
		}
		return
	}
	s.inBackoff = false

	// The attempt counts even if the launch fails.
	s.tracker.Record(now)
	s.notify(ctx, "Starting server...")

	proc, err := s.launcher.Launch(s.settings.Launch)
	if err != nil {
		s.log.Error("failed to launch server", logging.Fields{"error": err.Error()})
		return
	}
	s.proc = proc
	s.warned = make(map[int]bool)
	s.log.Info("server launched", logging.Fields{"run_id": proc.Run().ID})
}

// stopServer winds the server down because the window has closed.
// Callers hold s.mu.
func (s *SupervisorService) stopServer(ctx context.Context) {
	runID := s.proc.Run().ID
	s.log.Info("window closed, stopping server", logging.Fields{"run_id": runID})
	s.notify(ctx, "Stopping server on schedule.")

	stopCtx, cancel := context.WithTimeout(ctx, s.settings.StopTimeout)
	defer cancel()
	if err := s.proc.Stop(stopCtx); err != nil && err != domain.ErrProcessNotRunning {
		s.log.Warn("server did not stop cleanly", logging.Fields{
			"run_id": runID,
			"error":  err.Error(),
		})
	}
	s.proc = nil
	s.warned = nil
}

// maybeWarn broadcasts a countdown into the server console when a warn
// threshold is reached. Each threshold fires once per run. Callers hold s.mu.
func (s *SupervisorService) maybeWarn(now time.Time) {
	minutesLeft := int(s.settings.Window.UntilClose(now).Minutes())
	for _, m := range s.settings.WarnMinutes {
		if minutesLeft != m || s.warned[m] {
			continue
		}
		// Marked even if the send fails. The server console missed its
		// moment; repeating the same countdown later only confuses players.
		s.warned[m] = true
		if err := s.proc.Send(warnMessage(m)); err != nil {
			s.log.Warn("failed to send shutdown warning", logging.Fields{
				"minutes": m,
				"error":   err.Error(),
			})
			continue
		}
		s.log.Info("shutdown warning sent", logging.Fields{"minutes": m})
	}
}

// shutdown stops a still-running server before the supervisor exits.
func (s *SupervisorService) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proc != nil && s.proc.Alive() {
		s.log.Info("supervisor stopping, shutting down server", logging.Fields{
			"run_id": s.proc.Run().ID,
		})
		// The run context is already canceled; the stop gets its own.
		ctx, cancel := context.WithTimeout(context.Background(), s.settings.StopTimeout)
		defer cancel()
		if err := s.proc.Stop(ctx); err != nil && err != domain.ErrProcessNotRunning {
			s.log.Warn("server did not stop cleanly", logging.Fields{"error": err.Error()})
		}
		s.proc = nil
	}
	s.log.Info("supervisor stopped")
}

// notify delivers a webhook message. Failures are logged and swallowed:
// notifications never drive supervision decisions.
func (s *SupervisorService) notify(ctx context.Context, message string) {
	if err := s.notifier.Notify(ctx, message); err != nil {
		s.log.Warn("notification failed", logging.Fields{"error": err.Error()})
	}
}

func (s *SupervisorService) currentSettings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func warnMessage(minutes int) string {
	if minutes == 1 {
		return "say Server will stop in 1 minute!"
	}
	return fmt.Sprintf("say Server will stop in %d minutes!", minutes)
}
