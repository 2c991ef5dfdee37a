package service

import (
	"context"
	"log/slog"
	"time"
)

// HousekeepingService periodically reconciles state that expires by
// timestamp: pending face requests nobody read after their expiry, and
// in-memory revocation entries whose credential has expired on its own.
type HousekeepingService struct {
	FaceRequests *FaceRequestService
	Revocations  RevocationSweeper // nil when the registry expires entries itself
	Logger       *slog.Logger
	Interval     time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping worker. A non-positive
// interval defaults to 2 minutes.
func NewHousekeepingService(
	faces *FaceRequestService,
	revocations RevocationSweeper,
	logger *slog.Logger,
	interval time.Duration,
) *HousekeepingService {
	if interval <= 0 {
		interval = 2 * time.Minute
	}

	return &HousekeepingService{
		FaceRequests: faces,
		Revocations:  revocations,
		Logger:       logger,
		Interval:     interval,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start runs the worker in the background. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until an in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup runs each step independently so one failure does not stop the others.
func (s *HousekeepingService) cleanup() {
	ctx := context.Background()

	expired, err := s.FaceRequests.SweepExpired(ctx)
	if err != nil {
		s.Logger.Error("failed to expire face requests", "error", err)
	} else if expired > 0 {
		s.Logger.Info("expired face requests", "count", expired)
	}

	if s.Revocations != nil {
		if n := s.Revocations.Sweep(time.Now()); n > 0 {
			s.Logger.Info("evicted revocation entries", "count", n)
		}
	}

	s.Logger.Debug("housekeeping cleanup completed")
}
