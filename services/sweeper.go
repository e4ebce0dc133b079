package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/krshsl/mockprep/backend/models"
	"github.com/krshsl/mockprep/backend/repository"
	"github.com/robfig/cron/v3"
)

const (
	DefaultAbandonAfter  = 24 * time.Hour
	DefaultSweepSchedule = "@every 15m"
)

// SessionSweeper abandons sessions left InProgress for longer than abandonAfter
type SessionSweeper struct {
	store        repository.Store
	interviews   *InterviewService
	abandonAfter time.Duration
	schedule     string
	cron         *cron.Cron
	now          func() time.Time
}

func NewSessionSweeper(store repository.Store, interviews *InterviewService, cfg SessionConfig) *SessionSweeper {
	abandonAfter := cfg.AbandonAfter
	if abandonAfter <= 0 {
		abandonAfter = DefaultAbandonAfter
	}
	schedule := cfg.SweepSchedule
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &SessionSweeper{
		store:        store,
		interviews:   interviews,
		abandonAfter: abandonAfter,
		schedule:     schedule,
		cron:         cron.New(),
		now:          time.Now,
	}
}

// Start schedules the sweep
func (s *SessionSweeper) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			slog.Error("Session sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}

	s.cron.Start()
	slog.Info("Session sweeper started", "schedule", s.schedule, "abandon_after", s.abandonAfter)
	return nil
}

// Stop waits for a running sweep to finish
func (s *SessionSweeper) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("Session sweeper stopped")
}

// Sweep analyses any pending answers of each stale session, then abandons it. It returns how many
// sessions were abandoned.
func (s *SessionSweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.abandonAfter)
	stale, err := s.store.ListSessionsStartedBefore(ctx, models.SessionStatusInProgress, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale sessions: %w", err)
	}

	abandoned := 0
	for _, session := range stale {
		if _, _, err := s.interviews.ReanalyzePending(ctx, session.ID); err != nil {
			slog.Warn("Failed to analyse pending answers before abandoning", "error", err, "session_id", session.ID)
		}
		if _, err := s.interviews.AbandonSession(ctx, session.ID); err != nil {
			// completed concurrently, or already gone
			slog.Warn("Failed to abandon session", "error", err, "session_id", session.ID)
			continue
		}
		abandoned++
	}

	if abandoned > 0 {
		slog.Info("Stale sessions abandoned", "count", abandoned, "cutoff", cutoff)
	}
	return abandoned, nil
}
