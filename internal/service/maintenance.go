package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/shanbot/shanbot/internal/biz/domain"
	"github.com/shanbot/shanbot/internal/biz/repo"
)

// MaintenanceService runs the recurring housekeeping jobs: purging old
// terminal review records and flagging stuck scheduled sends so the
// operator notices them.
type MaintenanceService struct {
	reviewRepo repo.ReviewRepo
	retention  time.Duration
	grace      time.Duration
	cron       *cron.Cron
	log        zerolog.Logger
}

// NewMaintenanceService creates a new maintenance service
func NewMaintenanceService(reviewRepo repo.ReviewRepo, retention time.Duration, log zerolog.Logger) *MaintenanceService {
	return &MaintenanceService{
		reviewRepo: reviewRepo,
		retention:  retention,
		grace:      10 * time.Minute,
		cron:       cron.New(),
		log:        log.With().Str("component", "maintenance").Logger(),
	}
}

// Start registers and starts the cron jobs
func (s *MaintenanceService) Start() error {
	if _, err := s.cron.AddFunc("15 4 * * *", s.cleanupReviews); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@hourly", s.sweepStuck); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info().Dur("retention", s.retention).Msg("started")
	return nil
}

// Stop stops the cron scheduler, waiting for running jobs
func (s *MaintenanceService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("stopped")
}

// cleanupReviews purges terminal review records past the retention age
func (s *MaintenanceService) cleanupReviews() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := s.reviewRepo.CleanupTerminal(ctx, time.Now().Add(-s.retention))
	if err != nil {
		s.log.Error().Err(err).Msg("review cleanup failed")
		return
	}
	if count > 0 {
		s.log.Info().Int64("removed", count).Msg("purged old review records")
	}
}

// sweepStuck reports scheduled sends whose fire time passed by more
// than the grace period, and auto-scheduled records that never got a
// send time (scheduling failed mid-flight). They stay queued for manual
// retry; this only makes them visible.
func (s *MaintenanceService) sweepStuck() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pending, err := s.reviewRepo.ListPending(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("stuck sweep failed")
		return
	}

	cutoff := time.Now().Add(-s.grace)
	for _, record := range pending {
		switch {
		case !record.SendAt.IsZero():
			if record.SendAt.After(cutoff) {
				continue
			}
		case record.Status == domain.StatusAutoScheduled:
			if record.CreatedAt.After(cutoff) {
				continue
			}
		default:
			continue
		}
		s.log.Warn().
			Str("review", record.ID).
			Str("identity", string(record.Identity)).
			Str("status", string(record.Status)).
			Time("sendAt", record.SendAt).
			Str("note", record.ErrorNote).
			Msg("scheduled reply overdue, needs manual attention")
	}
}
