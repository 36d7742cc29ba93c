package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"listkeeper/internal/model"
	"listkeeper/internal/repository"
	"listkeeper/internal/store"
)

var jst = time.FixedZone("JST", 9*3600)

type fakeMessenger struct {
	nextRef   int
	sendErr   error
	sent      []TaskView
	updated   []TaskView
	reminders []string
	overdues  []string
}

func (f *fakeMessenger) SendTaskMessage(ctx context.Context, channelID string, view TaskView) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.nextRef++
	f.sent = append(f.sent, view)
	return strconv.Itoa(f.nextRef), nil
}

func (f *fakeMessenger) UpdateTaskMessage(ctx context.Context, channelID, messageRef string, view TaskView) error {
	f.updated = append(f.updated, view)
	return nil
}

func (f *fakeMessenger) SendPreReminder(ctx context.Context, channelID string, view TaskView) error {
	f.reminders = append(f.reminders, view.ID)
	return nil
}

func (f *fakeMessenger) SendOverdueAlert(ctx context.Context, channelID string, view TaskView) error {
	f.overdues = append(f.overdues, view.ID)
	return nil
}

type fixture struct {
	tasks     *repository.TaskRepository
	metadata  *repository.MetadataStore
	messenger *fakeMessenger
	svc       *TaskService
	sweep     *SweepService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	tasks := repository.NewTaskRepository(mem)
	metadata := repository.NewMetadataStore(mem, time.Hour)
	messenger := &fakeMessenger{}
	return &fixture{
		tasks:     tasks,
		metadata:  metadata,
		messenger: messenger,
		svc:       NewTaskService(tasks, metadata, messenger, jst),
		sweep:     NewSweepService(tasks, metadata, messenger, jst),
	}
}

func TestAddTask(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	now := time.Date(2026, 1, 5, 14, 0, 0, 0, jst)

	result, err := fx.svc.AddTask(ctx, "chan-1", model.TaskInput{
		Title:        "water plants",
		IntervalDays: 7,
		TimeOfDay:    "9",
	}, now)
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	task := result.Task
	if task.TimeOfDay != "09:00" {
		t.Errorf("TimeOfDay = %q, want normalized 09:00", task.TimeOfDay)
	}
	if !task.NextDueAt.After(now) {
		t.Errorf("NextDueAt = %v, want after now %v", task.NextDueAt, now)
	}
	wantStart := time.Date(2026, 1, 5, 9, 0, 0, 0, jst)
	if !task.StartAt.Equal(wantStart) {
		t.Errorf("StartAt = %v, want %v", task.StartAt, wantStart)
	}
	if task.MessageID == "" {
		t.Error("message reference not written back")
	}
	if result.MetadataOutcome != repository.UpsertCreated {
		t.Errorf("MetadataOutcome = %v, want UpsertCreated", result.MetadataOutcome)
	}

	// The persisted copy carries the message reference.
	stored, err := fx.tasks.FindByMessageID(ctx, "chan-1", task.MessageID)
	if err != nil {
		t.Fatalf("FindByMessageID: %v", err)
	}
	if stored.ID != task.ID {
		t.Errorf("stored id = %s, want %s", stored.ID, task.ID)
	}
}

func TestAddTaskLeavesExistingMetadataUntouched(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	now := time.Date(2026, 1, 5, 14, 0, 0, 0, jst)

	if _, err := fx.svc.AddTask(ctx, "chan-1", model.TaskInput{Title: "a", IntervalDays: 1}, now); err != nil {
		t.Fatalf("first AddTask: %v", err)
	}
	if err := fx.metadata.Update(ctx, "chan-1", func(meta *model.ChannelMetadata) {
		meta.ListTitle = "Custom title"
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	result, err := fx.svc.AddTask(ctx, "chan-1", model.TaskInput{Title: "b", IntervalDays: 1}, now)
	if err != nil {
		t.Fatalf("second AddTask: %v", err)
	}
	if result.MetadataOutcome != 0 {
		t.Errorf("MetadataOutcome = %v, want zero (untouched)", result.MetadataOutcome)
	}

	meta, err := fx.metadata.Get(ctx, "chan-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if meta.ListTitle != "Custom title" {
		t.Errorf("ListTitle = %q, existing metadata was overwritten", meta.ListTitle)
	}
}

func TestAddTaskSendFailureSurfacesButKeepsTask(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.messenger.sendErr = errors.New("platform down")
	now := time.Date(2026, 1, 5, 14, 0, 0, 0, jst)

	_, err := fx.svc.AddTask(ctx, "chan-1", model.TaskInput{Title: "a", IntervalDays: 1}, now)
	var stage *StageError
	if !errors.As(err, &stage) {
		t.Fatalf("AddTask = %v, want StageError", err)
	}
	if stage.Stage != "send message" {
		t.Errorf("Stage = %q, want send message", stage.Stage)
	}
	if stage.UserMessage() == "" {
		t.Error("expected a human-readable message")
	}

	// Partial success is surfaced, not rolled back: the append stays.
	tasks, listErr := fx.tasks.List(ctx, "chan-1")
	if listErr != nil {
		t.Fatalf("List: %v", listErr)
	}
	if len(tasks) != 1 {
		t.Fatalf("len(tasks) = %d, want appended task kept", len(tasks))
	}
}

func TestAddTaskValidation(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	now := time.Now().In(jst)

	if _, err := fx.svc.AddTask(ctx, "chan-1", model.TaskInput{Title: "a", IntervalDays: 0}, now); !model.IsValidation(err) {
		t.Errorf("zero interval: err = %v, want validation error", err)
	}
	if _, err := fx.svc.AddTask(ctx, "chan-1", model.TaskInput{Title: "a", IntervalDays: 1, TimeOfDay: "25:00"}, now); !model.IsValidation(err) {
		t.Errorf("bad time of day: err = %v, want validation error", err)
	}
}

func TestCompleteTaskAdvancesAndResets(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	created := time.Date(2026, 1, 5, 8, 0, 0, 0, jst)

	result, err := fx.svc.AddTask(ctx, "chan-1", model.TaskInput{
		Title:        "change water filter",
		IntervalDays: 7,
		TimeOfDay:    "09:00",
		InventoryItems: []model.InventoryItem{
			{Name: "filter", Stock: 4, Consume: 1},
		},
	}, created)
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	// Simulate an overdue phase before completion.
	taskID := result.Task.ID
	overdueAt := time.Date(2026, 1, 12, 20, 0, 0, 0, jst)
	result.Task.OverdueNotifyCount = 2
	result.Task.LastOverdueNotifiedAt = &overdueAt
	if err := fx.tasks.Update(ctx, "chan-1", result.Task); err != nil {
		t.Fatalf("Update: %v", err)
	}

	done, err := fx.svc.CompleteTask(ctx, "chan-1", taskID, overdueAt)
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if !done.NextDueAt.After(overdueAt) {
		t.Errorf("NextDueAt = %v, want after completion time", done.NextDueAt)
	}
	if done.OverdueNotifyCount != 0 || done.LastOverdueNotifiedAt != nil {
		t.Error("overdue alert state not reset on completion")
	}
	if done.InventoryItems[0].Stock != 3 {
		t.Errorf("Stock = %d, want consumed to 3", done.InventoryItems[0].Stock)
	}
	if len(fx.messenger.updated) == 0 {
		t.Error("task message not refreshed after completion")
	}
}

func TestEditTaskReschedules(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	created := time.Date(2026, 1, 5, 8, 0, 0, 0, jst)

	result, err := fx.svc.AddTask(ctx, "chan-1", model.TaskInput{
		Title: "deep clean", IntervalDays: 30, TimeOfDay: "09:00",
	}, created)
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	interval := 7
	tod := "18:00"
	now := time.Date(2026, 1, 6, 12, 0, 0, 0, jst)
	edited, err := fx.svc.EditTask(ctx, "chan-1", result.Task.ID, TaskEdit{
		IntervalDays: &interval,
		TimeOfDay:    &tod,
	}, now)
	if err != nil {
		t.Fatalf("EditTask: %v", err)
	}
	if edited.IntervalDays != 7 || edited.TimeOfDay != "18:00" {
		t.Errorf("edit not applied: %+v", edited)
	}
	if !edited.NextDueAt.After(now) {
		t.Errorf("NextDueAt = %v, want recomputed after now", edited.NextDueAt)
	}
	if edited.NextDueAt.Hour() != 18 {
		t.Errorf("NextDueAt hour = %d, want new time of day", edited.NextDueAt.Hour())
	}

	bad := 0
	if _, err := fx.svc.EditTask(ctx, "chan-1", result.Task.ID, TaskEdit{IntervalDays: &bad}, now); !model.IsValidation(err) {
		t.Errorf("zero interval edit: err = %v, want validation error", err)
	}
}

func TestConsumeInventory(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	created := time.Date(2026, 1, 5, 8, 0, 0, 0, jst)

	result, err := fx.svc.AddTask(ctx, "chan-1", model.TaskInput{
		Title: "coffee", IntervalDays: 1,
		InventoryItems: []model.InventoryItem{{Name: "beans", Stock: 1, Consume: 2}},
	}, created)
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	task, err := fx.svc.ConsumeInventory(ctx, "chan-1", result.Task.ID, "beans", created.Add(time.Hour))
	if err != nil {
		t.Fatalf("ConsumeInventory: %v", err)
	}
	if task.InventoryItems[0].Stock != 0 {
		t.Errorf("Stock = %d, want clamped to 0", task.InventoryItems[0].Stock)
	}

	if _, err := fx.svc.ConsumeInventory(ctx, "chan-1", result.Task.ID, "sugar", created); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("unknown item: err = %v, want ErrNotFound", err)
	}
}
