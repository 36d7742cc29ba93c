package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultRemindBeforeMinutes is the pre-reminder lead window used when the
// caller does not specify one (one day).
const DefaultRemindBeforeMinutes = 1440

// InventoryItem is a consumable attached to a task, e.g. a supply that gets
// used up each time the task is done.
type InventoryItem struct {
	Name    string `json:"name"`
	Stock   int    `json:"stock"`
	Consume int    `json:"consume"`
}

// RecurringTask represents a single recurring reminder in a channel list.
type RecurringTask struct {
	ID          string
	Title       string
	Description string

	IntervalDays        int
	TimeOfDay           string // "HH:mm" in the channel's local civil time
	RemindBeforeMinutes int

	StartAt   time.Time
	NextDueAt time.Time

	// Idempotency markers for the notification sweep.
	LastRemindDueAt       *time.Time
	LastOverdueNotifiedAt *time.Time

	OverdueNotifyCount int
	OverdueNotifyLimit int // 0 means unbounded
	IsPaused           bool

	InventoryItems []InventoryItem

	// MessageID is a weak back-reference to the rendered chat message.
	MessageID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TaskInput carries the caller-supplied fields for creating a task.
type TaskInput struct {
	Title               string
	Description         string
	IntervalDays        int
	TimeOfDay           string
	RemindBeforeMinutes *int
	OverdueNotifyLimit  int
	InventoryItems      []InventoryItem
}

// NewRecurringTask builds a task from input, filling omitted optional fields
// with defaults. It performs no date arithmetic; StartAt and NextDueAt are
// derived by the schedule package and set by the caller.
func NewRecurringTask(input TaskInput, createdAt time.Time) (*RecurringTask, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, &ValidationError{Field: "title", Reason: "title is required"}
	}
	if input.IntervalDays < 1 {
		return nil, &ValidationError{Field: "intervalDays", Reason: "interval must be at least 1 day"}
	}
	if input.OverdueNotifyLimit < 0 {
		return nil, &ValidationError{Field: "overdueNotifyLimit", Reason: "limit must not be negative"}
	}

	remindBefore := DefaultRemindBeforeMinutes
	if input.RemindBeforeMinutes != nil {
		if *input.RemindBeforeMinutes < 0 {
			return nil, &ValidationError{Field: "remindBeforeMinutes", Reason: "lead window must not be negative"}
		}
		remindBefore = *input.RemindBeforeMinutes
	}

	timeOfDay := input.TimeOfDay
	if timeOfDay == "" {
		timeOfDay = "00:00"
	}

	return &RecurringTask{
		ID:                  uuid.NewString(),
		Title:               title,
		Description:         strings.TrimSpace(input.Description),
		IntervalDays:        input.IntervalDays,
		TimeOfDay:           timeOfDay,
		RemindBeforeMinutes: remindBefore,
		OverdueNotifyLimit:  input.OverdueNotifyLimit,
		InventoryItems:      input.InventoryItems,
		CreatedAt:           createdAt,
		UpdatedAt:           createdAt,
	}, nil
}
