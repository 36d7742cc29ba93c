package service

import (
	"context"
	"time"

	"listkeeper/internal/model"
)

// TaskView is the render-ready projection of a task handed to the messaging
// collaborator. The core never produces chat markup itself.
type TaskView struct {
	ID                  string
	Title               string
	Description         string
	IntervalDays        int
	TimeOfDay           string
	NextDueAt           time.Time
	RemindBeforeMinutes int
	IsPaused            bool
	OverdueNotifyCount  int
	Inventory           []model.InventoryItem
}

// Messenger is the chat-platform collaborator. Implementations own all
// rendering and delivery concerns.
type Messenger interface {
	// SendTaskMessage renders the task's initial message and returns a
	// reference usable for later updates.
	SendTaskMessage(ctx context.Context, channelID string, view TaskView) (string, error)

	// UpdateTaskMessage re-renders an existing task message.
	UpdateTaskMessage(ctx context.Context, channelID, messageRef string, view TaskView) error

	SendPreReminder(ctx context.Context, channelID string, view TaskView) error
	SendOverdueAlert(ctx context.Context, channelID string, view TaskView) error
}

func viewOf(task *model.RecurringTask) TaskView {
	return TaskView{
		ID:                  task.ID,
		Title:               task.Title,
		Description:         task.Description,
		IntervalDays:        task.IntervalDays,
		TimeOfDay:           task.TimeOfDay,
		NextDueAt:           task.NextDueAt,
		RemindBeforeMinutes: task.RemindBeforeMinutes,
		IsPaused:            task.IsPaused,
		OverdueNotifyCount:  task.OverdueNotifyCount,
		Inventory:           task.InventoryItems,
	}
}
