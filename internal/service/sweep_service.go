package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"listkeeper/internal/model"
	"listkeeper/internal/notify"
	"listkeeper/internal/repository"
)

// SweepService runs the periodic notification pass over every channel. The
// decision logic lives in the notify package; the sweep only acts on true
// results and persists the idempotency markers before touching the next
// task, so a crash mid-sweep never re-alerts on restart.
type SweepService struct {
	tasks     *repository.TaskRepository
	metadata  *repository.MetadataStore
	messenger Messenger
	loc       *time.Location
}

func NewSweepService(tasks *repository.TaskRepository, metadata *repository.MetadataStore, messenger Messenger, loc *time.Location) *SweepService {
	return &SweepService{tasks: tasks, metadata: metadata, messenger: messenger, loc: loc}
}

// Sweep evaluates every task of every channel against now. Per-task failures
// are logged and skipped; the error reports channels that could not be swept
// at all.
func (s *SweepService) Sweep(ctx context.Context, now time.Time) error {
	channels, err := s.metadata.List(ctx)
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}

	var failed int
	for _, meta := range channels {
		if err := s.sweepChannel(ctx, meta.ChannelID, now); err != nil {
			log.Printf("[warn] sweep channel %s: %v", meta.ChannelID, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("sweep: %d of %d channels failed", failed, len(channels))
	}
	return nil
}

func (s *SweepService) sweepChannel(ctx context.Context, channelID string, now time.Time) error {
	tasks, err := s.tasks.List(ctx, channelID)
	if err != nil {
		return err
	}

	for _, task := range tasks {
		if err := s.sweepTask(ctx, channelID, task, now); err != nil {
			log.Printf("[warn] sweep task %s in %s: %v", task.ID, channelID, err)
		}
	}
	return nil
}

func (s *SweepService) sweepTask(ctx context.Context, channelID string, task *model.RecurringTask, now time.Time) error {
	if notify.ShouldSendPreReminder(task, now) {
		if err := s.messenger.SendPreReminder(ctx, channelID, viewOf(task)); err != nil {
			return fmt.Errorf("send pre-reminder: %w", err)
		}
		due := task.NextDueAt
		task.LastRemindDueAt = &due
		task.UpdatedAt = now
		if err := s.tasks.Update(ctx, channelID, task); err != nil {
			return fmt.Errorf("persist reminder marker: %w", err)
		}
	}

	if notify.ShouldSendOverdue(task, now, s.loc) {
		if err := s.messenger.SendOverdueAlert(ctx, channelID, viewOf(task)); err != nil {
			return fmt.Errorf("send overdue alert: %w", err)
		}
		notified := now
		task.LastOverdueNotifiedAt = &notified
		task.OverdueNotifyCount++
		task.UpdatedAt = now
		if err := s.tasks.Update(ctx, channelID, task); err != nil {
			return fmt.Errorf("persist overdue marker: %w", err)
		}
	}
	return nil
}
