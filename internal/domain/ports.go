package domain

import "context"

// LaunchSpec describes how to start the server process.
type LaunchSpec struct {
	// Command is the executable to run.
	Command string
	// Args are passed to the command verbatim.
	Args []string
	// Dir is the working directory; empty means the warden's own.
	Dir string
	// StopCommand is the console command that asks the server to shut down.
	StopCommand string
}

// Process is a handle to a launched server process.
type Process interface {
	// Run identifies this launch.
	Run() Run

	// Send writes one command line to the process's console input.
	Send(command string) error

	// Stop asks the process to shut down with its stop command and waits
	// for it to exit. When ctx expires first the process is killed and
	// ErrStopTimeout is returned.
	Stop(ctx context.Context) error

	// Done is closed once the process has exited.
	Done() <-chan struct{}

	// Alive reports whether the process has not exited yet.
	Alive() bool

	// ExitError reports how the process exited. It is meaningful only
	// after Done is closed; nil means a clean exit.
	ExitError() error
}

// Launcher starts server processes.
type Launcher interface {
	Launch(spec LaunchSpec) (Process, error)
}

// Notifier delivers lifecycle messages to an external channel, such as a
// chat webhook.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}
