package preview

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
)

// Scheduler runs periodic full rebuilds by queueing them into the loop, so
// scheduled builds are serialized with change-driven ones.
type Scheduler struct {
	scheduler gocron.Scheduler
}

// NewScheduler creates a stopped scheduler.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "creating scheduler").Build()
	}
	return &Scheduler{scheduler: s}, nil
}

// SchedulePeriodicRebuild calls loop.RequestFullRebuild every interval and
// returns the job id.
func (s *Scheduler) SchedulePeriodicRebuild(interval time.Duration, loop *Loop) (string, error) {
	if interval <= 0 {
		return "", ferrors.ValidationError("rebuild interval must be positive").
			WithContext("interval", interval.String()).
			Build()
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			slog.Debug("Queueing scheduled rebuild")
			loop.RequestFullRebuild()
		}),
		gocron.WithName("periodic-rebuild"),
	)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryRuntime, "scheduling periodic rebuild").Build()
	}
	return job.ID().String(), nil
}

// Start begins running jobs.
func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Stop waits for running jobs and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}
