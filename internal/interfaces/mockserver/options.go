package mockserver

import "time"

// Option defines a function type for configuring a Server
type Option func(*Server)

// WithStopDelay overrides the pause between the stopping message and return.
func WithStopDelay(d time.Duration) Option {
	return func(s *Server) {
		s.stopDelay = d
	}
}

// WithSleepFunc replaces the sleep implementation. Tests use this to avoid
// real delays.
func WithSleepFunc(fn func(time.Duration)) Option {
	return func(s *Server) {
		s.sleep = fn
	}
}
