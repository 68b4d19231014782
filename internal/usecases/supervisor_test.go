package usecases

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/infrastructure/logging"
)

// Test mocks

// MockNotifier is a mock for the domain.Notifier interface
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, message string) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

// fakeProcess is a controllable stand-in for a running server process.
type fakeProcess struct {
	run  domain.Run
	done chan struct{}

	exitErr      error
	sent         []string
	sendAttempts int
	sendErr      error
	stopped      int
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{
		run:  domain.NewRun(time.Now()),
		done: make(chan struct{}),
	}
}

func (p *fakeProcess) Run() domain.Run { return p.run }

func (p *fakeProcess) Send(command string) error {
	p.sendAttempts++
	if p.sendErr != nil {
		return p.sendErr
	}
	p.sent = append(p.sent, command)
	return nil
}

func (p *fakeProcess) Stop(ctx context.Context) error {
	p.stopped++
	p.kill(nil)
	return nil
}

func (p *fakeProcess) Done() <-chan struct{} { return p.done }

func (p *fakeProcess) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *fakeProcess) ExitError() error { return p.exitErr }

// kill marks the process dead, as if it exited with the given error.
func (p *fakeProcess) kill(err error) {
	p.exitErr = err
	select {
	case <-p.done:
	default:
		close(p.done)
	}
}

// fakeLauncher hands out fake processes and records launch calls.
type fakeLauncher struct {
	mu        sync.Mutex
	procs     []*fakeProcess
	launches  int
	launchErr error
	lastSpec  domain.LaunchSpec
}

func (l *fakeLauncher) Launch(spec domain.LaunchSpec) (domain.Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches++
	l.lastSpec = spec
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	p := newFakeProcess()
	l.procs = append(l.procs, p)
	return p, nil
}

func (l *fakeLauncher) launchCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

func (l *fakeLauncher) current() *fakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.procs) == 0 {
		return nil
	}
	return l.procs[len(l.procs)-1]
}

func testSettings() Settings {
	window, err := domain.NewWindow("08:00", "22:00")
	if err != nil {
		panic(err)
	}
	return Settings{
		Launch:       domain.LaunchSpec{Command: "./server.sh", StopCommand: "stop"},
		Window:       window,
		PollInterval: 10 * time.Second,
		WarnMinutes:  []int{10, 5, 1},
		StopTimeout:  time.Second,
		MaxStarts:    3,
		CrashWindow:  5 * time.Minute,
		Backoff:      time.Minute,
	}
}

func newTestSupervisor(settings Settings) (*SupervisorService, *fakeLauncher, *MockNotifier) {
	launcher := &fakeLauncher{}
	notifier := &MockNotifier{}
	sup := NewSupervisorService(SupervisorConfig{
		Settings: settings,
		Launcher: launcher,
		Notifier: notifier,
		Logger:   logging.NewNop(),
	})
	return sup, launcher, notifier
}

// clock builds an instant on a fixed date; the supervisor only reads the
// wall-clock portion.
func clock(hour, min int) time.Time {
	return time.Date(2026, time.June, 1, hour, min, 0, 0, time.UTC)
}

func TestReconcileStartsServerInsideWindow(t *testing.T) {
	sup, launcher, notifier := newTestSupervisor(testSettings())
	notifier.On("Notify", mock.Anything, "Starting server...").Return(nil)

	sup.ReconcileOnce(context.Background(), clock(12, 0))

	require.Equal(t, 1, launcher.launchCount())
	assert.Equal(t, "./server.sh", launcher.lastSpec.Command)
	assert.True(t, launcher.current().Alive())
	notifier.AssertExpectations(t)

	// A healthy server is left alone on the next tick.
	sup.ReconcileOnce(context.Background(), clock(12, 0).Add(10*time.Second))
	assert.Equal(t, 1, launcher.launchCount())
}

func TestReconcileDoesNotStartOutsideWindow(t *testing.T) {
	sup, launcher, _ := newTestSupervisor(testSettings())

	sup.ReconcileOnce(context.Background(), clock(7, 0))
	sup.ReconcileOnce(context.Background(), clock(23, 0))

	assert.Zero(t, launcher.launchCount())
}

func TestReconcileStopsServerAfterClose(t *testing.T) {
	sup, launcher, notifier := newTestSupervisor(testSettings())
	notifier.On("Notify", mock.Anything, "Starting server...").Return(nil)
	notifier.On("Notify", mock.Anything, "Stopping server on schedule.").Return(nil)

	sup.ReconcileOnce(context.Background(), clock(21, 0))
	proc := launcher.current()
	require.NotNil(t, proc)

	sup.ReconcileOnce(context.Background(), clock(22, 0))

	assert.Equal(t, 1, proc.stopped)
	assert.False(t, proc.Alive())
	notifier.AssertExpectations(t)

	// Nothing left to stop on the tick after.
	sup.ReconcileOnce(context.Background(), clock(22, 0).Add(10*time.Second))
	assert.Equal(t, 1, proc.stopped)
}

func TestShutdownWarnings(t *testing.T) {
	sup, launcher, notifier := newTestSupervisor(testSettings())
	notifier.On("Notify", mock.Anything, "Starting server...").Return(nil)

	sup.ReconcileOnce(context.Background(), clock(12, 0))
	proc := launcher.current()
	require.NotNil(t, proc)

	// Each threshold fires once, even across repeated ticks in the same
	// minute, and the one-minute warning is singular.
	sup.ReconcileOnce(context.Background(), clock(21, 50))
	sup.ReconcileOnce(context.Background(), clock(21, 50))
	sup.ReconcileOnce(context.Background(), clock(21, 55))
	sup.ReconcileOnce(context.Background(), clock(21, 59))

	assert.Equal(t, []string{
		"say Server will stop in 10 minutes!",
		"say Server will stop in 5 minutes!",
		"say Server will stop in 1 minute!",
	}, proc.sent)
}

func TestWarningsResetOnRelaunch(t *testing.T) {
	sup, launcher, notifier := newTestSupervisor(testSettings())
	notifier.On("Notify", mock.Anything, "Starting server...").Return(nil).Twice()

	sup.ReconcileOnce(context.Background(), clock(12, 0))
	first := launcher.current()
	require.NotNil(t, first)

	sup.ReconcileOnce(context.Background(), clock(21, 50))
	assert.Equal(t, []string{"say Server will stop in 10 minutes!"}, first.sent)

	first.kill(errors.New("boom"))
	sup.ReconcileOnce(context.Background(), clock(21, 52))
	second := launcher.current()
	require.NotSame(t, first, second)

	sup.ReconcileOnce(context.Background(), clock(21, 55))
	assert.Equal(t, []string{"say Server will stop in 5 minutes!"}, second.sent)
	notifier.AssertExpectations(t)
}

func TestWarningNotRepeatedWhenSendFails(t *testing.T) {
	sup, launcher, notifier := newTestSupervisor(testSettings())
	notifier.On("Notify", mock.Anything, "Starting server...").Return(nil)

	sup.ReconcileOnce(context.Background(), clock(12, 0))
	proc := launcher.current()
	require.NotNil(t, proc)
	proc.sendErr = errors.New("pipe closed")

	sup.ReconcileOnce(context.Background(), clock(21, 50))
	sup.ReconcileOnce(context.Background(), clock(21, 50))

	assert.Equal(t, 1, proc.sendAttempts)
	assert.Empty(t, proc.sent)
}

func TestWatchdogThrottlesCrashLoop(t *testing.T) {
	sup, launcher, notifier := newTestSupervisor(testSettings())
	notifier.On("Notify", mock.Anything, "Starting server...").Return(nil).Times(4)
	notifier.On("Notify", mock.Anything, "Server keeps crashing, holding off on restarts.").Return(nil).Once()

	start := clock(12, 0)
	for i := 0; i < 3; i++ {
		sup.ReconcileOnce(context.Background(), start.Add(time.Duration(i)*30*time.Second))
		launcher.current().kill(errors.New("boom"))
	}
	require.Equal(t, 3, launcher.launchCount())

	// The limit is reached: no launch, exactly one backoff notification.
	sup.ReconcileOnce(context.Background(), start.Add(2*time.Minute))
	assert.Equal(t, 3, launcher.launchCount())

	// Staying throttled stays quiet.
	sup.ReconcileOnce(context.Background(), start.Add(3*time.Minute))
	assert.Equal(t, 3, launcher.launchCount())

	// Once the attempts age out and the backoff has passed, starts resume.
	sup.ReconcileOnce(context.Background(), start.Add(10*time.Minute))
	assert.Equal(t, 4, launcher.launchCount())
	notifier.AssertExpectations(t)
}

func TestLaunchFailureCountsAsAttempt(t *testing.T) {
	sup, launcher, notifier := newTestSupervisor(testSettings())
	launcher.launchErr = errors.New("exec format error")
	notifier.On("Notify", mock.Anything, "Starting server...").Return(nil).Times(3)
	notifier.On("Notify", mock.Anything, "Server keeps crashing, holding off on restarts.").Return(nil).Once()

	start := clock(12, 0)
	for i := 0; i < 3; i++ {
		sup.ReconcileOnce(context.Background(), start.Add(time.Duration(i)*10*time.Second))
	}
	require.Equal(t, 3, launcher.launchCount())

	// Three failed launches hit the restart limit.
	sup.ReconcileOnce(context.Background(), start.Add(time.Minute))
	assert.Equal(t, 3, launcher.launchCount())
	notifier.AssertExpectations(t)
}

func TestCrashOutsideWindowIsNotRestarted(t *testing.T) {
	sup, launcher, notifier := newTestSupervisor(testSettings())
	notifier.On("Notify", mock.Anything, "Starting server...").Return(nil).Once()

	sup.ReconcileOnce(context.Background(), clock(21, 0))
	launcher.current().kill(errors.New("boom"))

	sup.ReconcileOnce(context.Background(), clock(22, 30))
	assert.Equal(t, 1, launcher.launchCount())
	notifier.AssertExpectations(t)
}

func TestNotificationFailureDoesNotBlockLaunch(t *testing.T) {
	sup, launcher, notifier := newTestSupervisor(testSettings())
	notifier.On("Notify", mock.Anything, mock.Anything).Return(errors.New("webhook down"))

	sup.ReconcileOnce(context.Background(), clock(12, 0))
	assert.Equal(t, 1, launcher.launchCount())
}

func TestUpdateSettingsShrinksWindow(t *testing.T) {
	sup, launcher, notifier := newTestSupervisor(testSettings())
	notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

	sup.ReconcileOnce(context.Background(), clock(12, 0))
	require.Equal(t, 1, launcher.launchCount())

	updated := testSettings()
	window, err := domain.NewWindow("18:00", "22:00")
	require.NoError(t, err)
	updated.Window = window
	sup.UpdateSettings(updated)

	// Noon is now out of bounds, so the server is stopped.
	sup.ReconcileOnce(context.Background(), clock(12, 0).Add(10*time.Second))
	assert.Equal(t, 1, launcher.current().stopped)
}

func TestRunStopsChildOnCancel(t *testing.T) {
	settings := testSettings()
	settings.PollInterval = 20 * time.Millisecond
	sup, launcher, notifier := newTestSupervisor(settings)
	notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

	// Freeze the clock inside the window so Run launches immediately.
	sup.now = func() time.Time { return clock(12, 0) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	require.Eventually(t, func() bool {
		return launcher.current() != nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Equal(t, 1, launcher.current().stopped)
	assert.False(t, launcher.current().Alive())
}
