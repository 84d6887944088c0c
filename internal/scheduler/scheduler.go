// Package scheduler triggers monitoring runs on a cron schedule.
package scheduler

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
)

// Scheduler runs a job on a standard five-field cron expression.
type Scheduler struct {
	cron     *cron.Cron
	entryID  cron.EntryID
	location *time.Location
}

// New creates a scheduler for expr in timezone. Overlapping runs are
// skipped while a previous run is still in progress.
func New(expr, timezone string, job func()) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("job must not be nil")
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone: %w", err)
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	id, err := c.AddFunc(expr, job)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return &Scheduler{cron: c, entryID: id, location: loc}, nil
}

// Start begins cron execution.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Next returns the next activation after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.cron.Entry(s.entryID).Schedule.Next(t.In(s.location))
}

// Location returns the scheduler location.
func (s *Scheduler) Location() *time.Location {
	return s.location
}
