package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/subscout/subreddit-analyzer/internal/config"
)

// Runner is the scheduled job; the analyzer service satisfies it
type Runner interface {
	RunWatched() error
}

// Service handles scheduling of watched community runs
type Service struct {
	config *config.Config
	runner Runner
	cron   *cron.Cron
}

// NewService creates a new scheduler service. Schedules are evaluated in the configured time zone.
func NewService(cfg *config.Config, runner Runner) *Service {
	return &Service{
		config: cfg,
		runner: runner,
		cron:   cron.New(cron.WithSeconds(), cron.WithLocation(cfg.Location())),
	}
}

// cronExpression maps a schedule name to a six-field cron expression
func cronExpression(schedule string) string {
	switch schedule {
	case "daily":
		// Run daily at 9 AM
		return "0 0 9 * * *"
	default:
		// Run weekly on Monday at 9 AM
		return "0 0 9 * * MON"
	}
}

// Start begins the scheduled runs
func (s *Service) Start() error {
	_, err := s.cron.AddFunc(cronExpression(s.config.AnalysisSchedule), func() {
		logrus.Info("Starting scheduled analysis run")
		if err := s.runner.RunWatched(); err != nil {
			logrus.Errorf("Scheduled analysis run failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule analysis run: %w", err)
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with %s schedule in %s (%d watched communities)",
		s.config.AnalysisSchedule, s.config.Location(), len(s.config.WatchedCommunities))
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}
