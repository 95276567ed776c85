package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/promoreel/promoreel/internal/clock"
	videodomain "github.com/promoreel/promoreel/internal/video/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Repo   videodomain.Repository
	Videos videodomain.Service
	Clock  clock.Clock
	Config Config `optional:"true"`
}

// Scheduler sweeps jobs stuck in processing and reconciles each against
// its provider. It is the safety net under webhook deliveries that never
// arrive and clients that stop polling.
type Scheduler struct {
	db     *gorm.DB
	log    *zap.Logger
	cfg    Config
	repo   videodomain.Repository
	videos videodomain.Service
	clock  clock.Clock
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Repo == nil || p.Videos == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:     p.DB,
		log:    p.Log.Named("scheduler"),
		cfg:    p.Config.withDefaults(),
		repo:   p.Repo,
		videos: p.Videos,
		clock:  p.Clock,
	}, nil
}

// RunOnce reconciles one batch of stale processing jobs. Per-job failures
// are joined and reported but never stop the batch; reconciliation itself
// treats provider outages as "still processing", so a failing provider
// only delays convergence.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	cutoff := s.clock.Now().Add(-s.cfg.StaleAfter)

	jobs, err := s.repo.ListStaleProcessing(ctx, s.db, cutoff, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return nil
	}

	s.log.Info("sweeping stale jobs", zap.Int("count", len(jobs)))

	var sweepErr error
	for _, job := range jobs {
		if ctx.Err() != nil {
			return errors.Join(sweepErr, ctx.Err())
		}
		if _, err := s.videos.Reconcile(ctx, job.UserID, job.ID); err != nil {
			sweepErr = errors.Join(sweepErr, err)
			s.log.Warn("stale job reconcile failed",
				zap.String("job_id", job.ID.String()),
				zap.String("provider", job.Provider),
				zap.Error(err),
			)
		}
	}
	return sweepErr
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
