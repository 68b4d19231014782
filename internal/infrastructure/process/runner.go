// Package process launches and controls the supervised server process.
package process

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/infrastructure/logging"
)

// Launcher starts server processes described by launch specs.
type Launcher struct {
	log *logging.Logger
}

// NewLauncher creates a launcher that relays child output to the given logger.
func NewLauncher(log *logging.Logger) *Launcher {
	return &Launcher{log: log}
}

// Launch starts the process described by spec. The child's stdout and stderr
// are relayed line by line into the log; its stdin stays attached so commands
// can be sent to it later.
func (l *Launcher) Launch(spec domain.LaunchSpec) (domain.Process, error) {
	// Not CommandContext: shutdown goes through Stop so the child gets its
	// stop command before any signal.
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "failed to start %s", spec.Command)
	}

	run := domain.NewRun(time.Now())
	log := l.log.With(logging.Fields{"run_id": run.ID})
	log.Info("server process started", logging.Fields{
		"command": spec.Command,
		"pid":     cmd.Process.Pid,
	})

	p := &ServerProcess{
		run:     run,
		cmd:     cmd,
		stdin:   stdin,
		stopCmd: spec.StopCommand,
		done:    make(chan struct{}),
		log:     log,
	}

	go relayOutput(log, "stdout", stdout)
	go relayOutput(log, "stderr", stderr)
	go p.wait()

	return p, nil
}

// relayOutput copies one of the child's output streams into the log, one
// entry per line.
func relayOutput(log *logging.Logger, stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	// Server lines can exceed bufio's default 64KB token limit.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		log.Info(scanner.Text(), logging.Fields{"stream": stream})
	}
}

// ServerProcess is a single running server under warden's control.
type ServerProcess struct {
	run     domain.Run
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stopCmd string
	log     *logging.Logger

	done chan struct{}

	mu      sync.Mutex
	exitErr error
}

// Run identifies this process run.
func (p *ServerProcess) Run() domain.Run {
	return p.run
}

// Done is closed once the process has exited.
func (p *ServerProcess) Done() <-chan struct{} {
	return p.done
}

// Alive reports whether the process is still running.
func (p *ServerProcess) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// ExitError returns the error the process exited with, if any. Only
// meaningful once Done is closed.
func (p *ServerProcess) ExitError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

// Send writes a command line to the process's stdin.
func (p *ServerProcess) Send(command string) error {
	if !p.Alive() {
		return domain.ErrProcessNotRunning
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := fmt.Fprintln(p.stdin, command); err != nil {
		return errors.Wrapf(err, "failed to send %q", command)
	}
	return nil
}

// Stop asks the process to shut down with its stop command and waits for it
// to exit. Once ctx runs out the process is killed instead.
func (p *ServerProcess) Stop(ctx context.Context) error {
	if !p.Alive() {
		return domain.ErrProcessNotRunning
	}

	// Best effort: a wedged server may no longer drain its stdin.
	if err := p.Send(p.stopCmd); err != nil && err != domain.ErrProcessNotRunning {
		p.log.Warn("failed to send stop command", logging.Fields{"error": err.Error()})
	}

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
	}

	p.log.Warn("server process did not stop in time, killing it")
	if err := p.cmd.Process.Kill(); err != nil {
		return errors.Wrap(err, "failed to kill server process")
	}
	<-p.done
	return domain.ErrStopTimeout
}

func (p *ServerProcess) wait() {
	err := p.cmd.Wait()

	p.mu.Lock()
	p.exitErr = err
	p.mu.Unlock()
	close(p.done)

	if err != nil {
		p.log.Warn("server process exited with error", logging.Fields{"error": err.Error()})
	} else {
		p.log.Info("server process exited")
	}
}
