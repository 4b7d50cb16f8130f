package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// Scheduler owns the two cadences: fixed-time daily pushes and the
// short-interval severe-weather poll. Both loops stop with the context, so
// shutdown owns every background task.
type Scheduler struct {
	dispatcher   *Dispatcher
	clock        clockwork.Clock
	pushTimes    []pushTime
	pollInterval time.Duration
	log          *slog.Logger
}

type pushTime struct {
	hour, minute int
}

func NewScheduler(d *Dispatcher, clock clockwork.Clock, pushTimes []string, pollInterval time.Duration, log *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		dispatcher:   d,
		clock:        clock,
		pollInterval: pollInterval,
		log:          log.With("component", "scheduler"),
	}
	for _, t := range pushTimes {
		var pt pushTime
		if _, err := fmt.Sscanf(t, "%d:%d", &pt.hour, &pt.minute); err != nil {
			return nil, fmt.Errorf("scheduler: bad push time %q: %w", t, err)
		}
		if pt.hour < 0 || pt.hour > 23 || pt.minute < 0 || pt.minute > 59 {
			return nil, fmt.Errorf("scheduler: push time %q out of range", t)
		}
		s.pushTimes = append(s.pushTimes, pt)
	}
	if len(s.pushTimes) == 0 {
		return nil, fmt.Errorf("scheduler: at least one push time required")
	}
	return s, nil
}

// Run blocks until ctx is cancelled, driving the push loop, the warning
// poll, and the dispatcher's hub listener.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.pushLoop(ctx) })
	g.Go(func() error { return s.pollLoop(ctx) })
	g.Go(func() error { return s.dispatcher.Run(ctx) })
	return g.Wait()
}

func (s *Scheduler) pushLoop(ctx context.Context) error {
	for {
		delay := s.untilNextPush(s.clock.Now().UTC())
		s.log.Info("next push scheduled", "in", delay.Round(time.Second))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(delay):
		}
		if err := s.dispatcher.PushRun(ctx); err != nil {
			s.log.Error("push run failed", "error", err)
		}
	}
}

func (s *Scheduler) pollLoop(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}
		if err := s.dispatcher.WarningRun(ctx); err != nil {
			s.log.Error("warning poll failed", "error", err)
		}
	}
}

// untilNextPush returns the wait until the soonest configured push time
// after now, rolling to tomorrow when today's times have passed.
func (s *Scheduler) untilNextPush(now time.Time) time.Duration {
	best := time.Duration(-1)
	for _, pt := range s.pushTimes {
		next := time.Date(now.Year(), now.Month(), now.Day(), pt.hour, pt.minute, 0, 0, time.UTC)
		if !next.After(now) {
			next = next.Add(24 * time.Hour)
		}
		if d := next.Sub(now); best < 0 || d < best {
			best = d
		}
	}
	return best
}
