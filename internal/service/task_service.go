package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"listkeeper/internal/model"
	"listkeeper/internal/repository"
	"listkeeper/internal/schedule"
)

// StageError reports which orchestration stage failed, carrying a message
// the interaction layer can show as-is. Side effects of earlier stages are
// not rolled back; the stage tells the caller what already happened.
type StageError struct {
	Stage   string
	Message string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// UserMessage returns the human-readable failure text.
func (e *StageError) UserMessage() string { return e.Message }

func stageErr(stage, message string, err error) *StageError {
	return &StageError{Stage: stage, Message: message, Err: err}
}

// AddTaskResult reports a successful AddTask, including whether the call had
// to initialize the channel's metadata.
type AddTaskResult struct {
	Task *model.RecurringTask

	// MetadataOutcome is zero when metadata already existed and was left
	// untouched.
	MetadataOutcome repository.UpsertOutcome
}

// TaskEdit carries the mutable fields of a task edit; nil means unchanged.
type TaskEdit struct {
	Title               *string
	Description         *string
	IntervalDays        *int
	TimeOfDay           *string
	RemindBeforeMinutes *int
	OverdueNotifyLimit  *int
}

// TaskService orchestrates task creation and lifecycle against the
// repository, the metadata store and the messaging collaborator.
type TaskService struct {
	tasks     *repository.TaskRepository
	metadata  *repository.MetadataStore
	messenger Messenger
	loc       *time.Location
}

func NewTaskService(tasks *repository.TaskRepository, metadata *repository.MetadataStore, messenger Messenger, loc *time.Location) *TaskService {
	return &TaskService{tasks: tasks, metadata: metadata, messenger: messenger, loc: loc}
}

// AddTask creates a recurring task in the channel: ensures the channel table,
// computes the schedule, persists the task, sends its initial message, writes
// the message reference back, and initializes channel metadata when absent.
func (s *TaskService) AddTask(ctx context.Context, channelID string, input model.TaskInput, now time.Time) (*AddTaskResult, error) {
	if err := s.tasks.EnsureTable(ctx, channelID); err != nil {
		return nil, stageErr("ensure table", "could not prepare the channel's task list", err)
	}

	timeOfDay, err := schedule.NormalizeTimeOfDay(input.TimeOfDay)
	if err != nil {
		return nil, stageErr("validate input", err.Error(), err)
	}
	input.TimeOfDay = timeOfDay

	task, err := model.NewRecurringTask(input, now)
	if err != nil {
		return nil, stageErr("validate input", err.Error(), err)
	}
	task.StartAt = schedule.StartAt(now, timeOfDay, s.loc)
	task.NextDueAt = schedule.NextDueAt(task.IntervalDays, timeOfDay, task.StartAt, now, s.loc)

	if err := s.tasks.Append(ctx, channelID, task); err != nil {
		return nil, stageErr("persist task", "could not save the task", err)
	}

	messageRef, err := s.messenger.SendTaskMessage(ctx, channelID, viewOf(task))
	if err != nil {
		return nil, stageErr("send message", "task was saved but its message could not be sent", err)
	}

	task.MessageID = messageRef
	task.UpdatedAt = now
	if err := s.tasks.Update(ctx, channelID, task); err != nil {
		return nil, stageErr("link message", "task was saved but could not be linked to its message", err)
	}

	result := &AddTaskResult{Task: task}
	if _, err := s.metadata.Get(ctx, channelID); err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			return nil, stageErr("reconcile metadata", "task was saved but channel settings could not be read", err)
		}
		outcome, err := s.metadata.Create(ctx, defaultMetadata(channelID, now))
		if err != nil {
			return nil, stageErr("reconcile metadata", "task was saved but channel settings could not be initialized", err)
		}
		result.MetadataOutcome = outcome
	}
	return result, nil
}

// CompleteTask advances the task to its next occurrence after now and resets
// the overdue alert state for the new occurrence.
func (s *TaskService) CompleteTask(ctx context.Context, channelID, taskID string, now time.Time) (*model.RecurringTask, error) {
	task, err := s.getTask(ctx, channelID, taskID)
	if err != nil {
		return nil, err
	}

	task.NextDueAt = schedule.NextDueAt(task.IntervalDays, task.TimeOfDay, task.StartAt, now, s.loc)
	task.OverdueNotifyCount = 0
	task.LastOverdueNotifiedAt = nil
	task.UpdatedAt = now

	for i := range task.InventoryItems {
		item := &task.InventoryItems[i]
		if item.Consume <= 0 {
			continue
		}
		item.Stock -= item.Consume
		if item.Stock < 0 {
			item.Stock = 0
		}
	}

	if err := s.tasks.Update(ctx, channelID, task); err != nil {
		return nil, err
	}
	s.refreshMessage(ctx, channelID, task)
	return task, nil
}

// SetPaused toggles overdue alerting for the task.
func (s *TaskService) SetPaused(ctx context.Context, channelID, taskID string, paused bool, now time.Time) (*model.RecurringTask, error) {
	task, err := s.getTask(ctx, channelID, taskID)
	if err != nil {
		return nil, err
	}
	task.IsPaused = paused
	task.UpdatedAt = now
	if err := s.tasks.Update(ctx, channelID, task); err != nil {
		return nil, err
	}
	s.refreshMessage(ctx, channelID, task)
	return task, nil
}

// EditTask applies the given field changes. Changing the cadence or the
// time-of-day recomputes the next occurrence from the original anchor.
func (s *TaskService) EditTask(ctx context.Context, channelID, taskID string, edit TaskEdit, now time.Time) (*model.RecurringTask, error) {
	task, err := s.getTask(ctx, channelID, taskID)
	if err != nil {
		return nil, err
	}

	if edit.Title != nil {
		if *edit.Title == "" {
			return nil, &model.ValidationError{Field: "title", Reason: "title is required"}
		}
		task.Title = *edit.Title
	}
	if edit.Description != nil {
		task.Description = *edit.Description
	}
	if edit.RemindBeforeMinutes != nil {
		if *edit.RemindBeforeMinutes < 0 {
			return nil, &model.ValidationError{Field: "remindBeforeMinutes", Reason: "lead window must not be negative"}
		}
		task.RemindBeforeMinutes = *edit.RemindBeforeMinutes
	}
	if edit.OverdueNotifyLimit != nil {
		if *edit.OverdueNotifyLimit < 0 {
			return nil, &model.ValidationError{Field: "overdueNotifyLimit", Reason: "limit must not be negative"}
		}
		task.OverdueNotifyLimit = *edit.OverdueNotifyLimit
	}

	rescheduled := false
	if edit.IntervalDays != nil {
		if *edit.IntervalDays < 1 {
			return nil, &model.ValidationError{Field: "intervalDays", Reason: "interval must be at least 1 day"}
		}
		task.IntervalDays = *edit.IntervalDays
		rescheduled = true
	}
	if edit.TimeOfDay != nil {
		normalized, err := schedule.NormalizeTimeOfDay(*edit.TimeOfDay)
		if err != nil {
			return nil, err
		}
		task.TimeOfDay = normalized
		rescheduled = true
	}
	if rescheduled {
		task.NextDueAt = schedule.NextDueAt(task.IntervalDays, task.TimeOfDay, task.StartAt, now, s.loc)
	}

	task.UpdatedAt = now
	if err := s.tasks.Update(ctx, channelID, task); err != nil {
		return nil, err
	}
	s.refreshMessage(ctx, channelID, task)
	return task, nil
}

// ConsumeInventory decrements the named item's stock by its consume amount.
func (s *TaskService) ConsumeInventory(ctx context.Context, channelID, taskID, itemName string, now time.Time) (*model.RecurringTask, error) {
	task, err := s.getTask(ctx, channelID, taskID)
	if err != nil {
		return nil, err
	}

	found := false
	for i := range task.InventoryItems {
		item := &task.InventoryItems[i]
		if item.Name != itemName {
			continue
		}
		item.Stock -= item.Consume
		if item.Stock < 0 {
			item.Stock = 0
		}
		found = true
		break
	}
	if !found {
		return nil, fmt.Errorf("inventory item %q: %w", itemName, model.ErrNotFound)
	}

	task.UpdatedAt = now
	if err := s.tasks.Update(ctx, channelID, task); err != nil {
		return nil, err
	}
	s.refreshMessage(ctx, channelID, task)
	return task, nil
}

// ListTasks returns the channel's tasks.
func (s *TaskService) ListTasks(ctx context.Context, channelID string) ([]*model.RecurringTask, error) {
	return s.tasks.List(ctx, channelID)
}

// FindTaskByMessageID resolves a chat message back to its task.
func (s *TaskService) FindTaskByMessageID(ctx context.Context, channelID, messageID string) (*model.RecurringTask, error) {
	return s.tasks.FindByMessageID(ctx, channelID, messageID)
}

func (s *TaskService) getTask(ctx context.Context, channelID, taskID string) (*model.RecurringTask, error) {
	tasks, err := s.tasks.List(ctx, channelID)
	if err != nil {
		return nil, err
	}
	for _, task := range tasks {
		if task.ID == taskID {
			return task, nil
		}
	}
	return nil, fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
}

// refreshMessage best-effort re-renders the task's chat message; a render
// failure must not fail the state change that already persisted.
func (s *TaskService) refreshMessage(ctx context.Context, channelID string, task *model.RecurringTask) {
	if task.MessageID == "" {
		return
	}
	if err := s.messenger.UpdateTaskMessage(ctx, channelID, task.MessageID, viewOf(task)); err != nil {
		// The state change already persisted; the message catches up on
		// the next mutation.
		log.Printf("[warn] refresh message for task %s: %v", task.ID, err)
	}
}

func defaultMetadata(channelID string, now time.Time) *model.ChannelMetadata {
	return &model.ChannelMetadata{
		ChannelID:    channelID,
		ListTitle:    "Task list",
		LastSyncTime: now,
	}
}
