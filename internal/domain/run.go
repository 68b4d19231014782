package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run identifies a single launch of the supervised server process.
type Run struct {
	ID        string
	StartedAt time.Time
}

// NewRun creates a Run with a unique ID.
func NewRun(startedAt time.Time) Run {
	return Run{
		ID:        uuid.New().String(),
		StartedAt: startedAt,
	}
}
