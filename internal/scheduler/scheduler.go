// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/evinav/internal/types"
)

// Scheduler runs periodic maintenance: sessions idle longer than the
// configured window are archived so channel keys resolve to fresh sessions.
type Scheduler struct {
	sessions     types.SessionStore
	schedule     string
	archiveAfter time.Duration
	cron         *cron.Cron
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates a Scheduler that archives sessions idle for longer than
// archiveAfter, on the given cron schedule.
func New(sessions types.SessionStore, schedule string, archiveAfter time.Duration) *Scheduler {
	return &Scheduler{
		sessions:     sessions,
		schedule:     schedule,
		archiveAfter: archiveAfter,
		cron:         cron.New(cron.WithParser(cronParser)),
	}
}

// Start registers the maintenance job and starts the cron ticker.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.Sweep(context.Background()); err != nil {
			slog.Error("maintenance sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	slog.Info("maintenance scheduled", "schedule", s.schedule, "archive_after", s.archiveAfter)
	return nil
}

// Stop stops the cron ticker.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// Sweep archives every active session whose last update is older than the
// idle window. It is safe to run concurrently with live traffic: archiving
// only changes which session a channel key resolves to next.
func (s *Scheduler) Sweep(ctx context.Context) error {
	infos, err := s.sessions.List(ctx)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-s.archiveAfter)
	for _, info := range infos {
		if info.Status != types.StatusActive || info.UpdatedAt.After(cutoff) {
			continue
		}
		sess, err := s.sessions.Load(ctx, info.ID)
		if err != nil || sess == nil {
			continue
		}
		sess.Status = types.StatusArchived
		if err := s.sessions.Save(ctx, sess); err != nil {
			slog.Error("archive session failed", "session_id", info.ID, "error", err)
			continue
		}
		slog.Info("archived idle session", "session_id", info.ID, "idle_since", info.UpdatedAt)
	}
	return nil
}
