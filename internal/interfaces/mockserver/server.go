// Package mockserver implements a line-oriented stand-in for a real game
// server. It echoes console input and honors the usual stop commands, which
// makes it a predictable target for exercising warden end to end.
package mockserver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	startingMessage = "[Server] Starting mock server..."
	loadedMessage   = "[Server] Done loading."
	receivedPrefix  = "[Server] Received: "
	stoppingMessage = "[Server] Stopping..."

	stopCommand      = "stop"
	slashStopCommand = "/stop"

	defaultStopDelay = 2 * time.Second
)

// Server is a mock game server speaking a plain line protocol on stdio.
type Server struct {
	stopDelay time.Duration
	sleep     func(time.Duration)
}

// New creates a mock server.
func New(opts ...Option) *Server {
	s := &Server{
		stopDelay: defaultStopDelay,
		sleep:     time.Sleep,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Listen runs the console loop on the provided streams until a stop command
// arrives or stdin closes. Every line is echoed before it is interpreted, so
// a stop command is echoed and then acted on. Cancellation is observed
// between lines; a blocked read returns only when input closes.
func (s *Server) Listen(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if err := writeLine(stdout, startingMessage); err != nil {
		return err
	}
	if err := writeLine(stdout, loadedMessage); err != nil {
		return err
	}

	reader := bufio.NewReader(stdin)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			line, err := reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					// Closed input is an implicit stop: no farewell, no
					// delay, and an unterminated trailing line is dropped.
					return nil
				}
				return fmt.Errorf("failed to read input: %w", err)
			}

			payload := strings.TrimSuffix(line, "\n")
			payload = strings.TrimSuffix(payload, "\r")

			if err := writeLine(stdout, receivedPrefix+payload); err != nil {
				return err
			}

			if payload == stopCommand || payload == slashStopCommand {
				if err := writeLine(stdout, stoppingMessage); err != nil {
					return err
				}
				s.sleep(s.stopDelay)
				return nil
			}
		}
	}
}

func writeLine(w io.Writer, line string) error {
	if _, err := fmt.Fprintln(w, line); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
