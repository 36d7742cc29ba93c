package repository

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"listkeeper/internal/model"
)

// Column positions are the single source of truth for the row layout; no
// other file indexes into raw rows. Appending columns is safe, reordering is
// not — the metadata store's header self-healing only covers additions.
const (
	taskColID = iota
	taskColTitle
	taskColDescription
	taskColIntervalDays
	taskColTimeOfDay
	taskColRemindBefore
	taskColStartAt
	taskColNextDueAt
	taskColLastRemindDueAt
	taskColLastOverdueNotifiedAt
	taskColOverdueCount
	taskColOverdueLimit
	taskColIsPaused
	taskColInventory
	taskColMessageID
	taskColCreatedAt
	taskColUpdatedAt
	taskColumnCount
)

const (
	metaColChannelID = iota
	metaColMessageID
	metaColListTitle
	metaColLastSyncTime
	metaColDefaultCategory
	metaColLogThreadID
	metaColumnCount
)

var taskHeader = []string{
	"id", "title", "description", "interval_days", "time_of_day",
	"remind_before_minutes", "start_at", "next_due_at", "last_remind_due_at",
	"last_overdue_notified_at", "overdue_notify_count", "overdue_notify_limit",
	"is_paused", "inventory_items", "message_id", "created_at", "updated_at",
}

var metadataHeader = []string{
	"channel_id", "message_id", "list_title", "last_sync_time",
	"default_category", "operation_log_thread_id",
}

func encodeTask(task *model.RecurringTask) ([]string, error) {
	inventory, err := json.Marshal(task.InventoryItems)
	if err != nil {
		return nil, fmt.Errorf("encode inventory: %w", err)
	}

	row := make([]string, taskColumnCount)
	row[taskColID] = task.ID
	row[taskColTitle] = task.Title
	row[taskColDescription] = task.Description
	row[taskColIntervalDays] = strconv.Itoa(task.IntervalDays)
	row[taskColTimeOfDay] = task.TimeOfDay
	row[taskColRemindBefore] = strconv.Itoa(task.RemindBeforeMinutes)
	row[taskColStartAt] = encodeTime(task.StartAt)
	row[taskColNextDueAt] = encodeTime(task.NextDueAt)
	row[taskColLastRemindDueAt] = encodeOptionalTime(task.LastRemindDueAt)
	row[taskColLastOverdueNotifiedAt] = encodeOptionalTime(task.LastOverdueNotifiedAt)
	row[taskColOverdueCount] = strconv.Itoa(task.OverdueNotifyCount)
	row[taskColOverdueLimit] = strconv.Itoa(task.OverdueNotifyLimit)
	row[taskColIsPaused] = strconv.FormatBool(task.IsPaused)
	row[taskColInventory] = string(inventory)
	row[taskColMessageID] = task.MessageID
	row[taskColCreatedAt] = encodeTime(task.CreatedAt)
	row[taskColUpdatedAt] = encodeTime(task.UpdatedAt)
	return row, nil
}

func decodeTask(row []string) (*model.RecurringTask, error) {
	// Rows written by older versions may be short; missing columns decode
	// to their zero values.
	cells := padRow(row, taskColumnCount)

	task := &model.RecurringTask{
		ID:          cells[taskColID],
		Title:       cells[taskColTitle],
		Description: cells[taskColDescription],
		TimeOfDay:   cells[taskColTimeOfDay],
		MessageID:   cells[taskColMessageID],
	}
	if task.ID == "" {
		return nil, fmt.Errorf("task row without id")
	}

	var err error
	if task.IntervalDays, err = decodeInt(cells[taskColIntervalDays]); err != nil {
		return nil, fmt.Errorf("task %s: interval: %w", task.ID, err)
	}
	if task.RemindBeforeMinutes, err = decodeInt(cells[taskColRemindBefore]); err != nil {
		return nil, fmt.Errorf("task %s: remind lead: %w", task.ID, err)
	}
	if task.StartAt, err = decodeTime(cells[taskColStartAt]); err != nil {
		return nil, fmt.Errorf("task %s: start_at: %w", task.ID, err)
	}
	if task.NextDueAt, err = decodeTime(cells[taskColNextDueAt]); err != nil {
		return nil, fmt.Errorf("task %s: next_due_at: %w", task.ID, err)
	}
	if task.LastRemindDueAt, err = decodeOptionalTime(cells[taskColLastRemindDueAt]); err != nil {
		return nil, fmt.Errorf("task %s: last_remind_due_at: %w", task.ID, err)
	}
	if task.LastOverdueNotifiedAt, err = decodeOptionalTime(cells[taskColLastOverdueNotifiedAt]); err != nil {
		return nil, fmt.Errorf("task %s: last_overdue_notified_at: %w", task.ID, err)
	}
	if task.OverdueNotifyCount, err = decodeInt(cells[taskColOverdueCount]); err != nil {
		return nil, fmt.Errorf("task %s: overdue count: %w", task.ID, err)
	}
	if task.OverdueNotifyLimit, err = decodeInt(cells[taskColOverdueLimit]); err != nil {
		return nil, fmt.Errorf("task %s: overdue limit: %w", task.ID, err)
	}
	task.IsPaused = cells[taskColIsPaused] == "true"

	if raw := cells[taskColInventory]; raw != "" && raw != "[]" {
		if err := json.Unmarshal([]byte(raw), &task.InventoryItems); err != nil {
			return nil, fmt.Errorf("task %s: inventory: %w", task.ID, err)
		}
	}

	if task.CreatedAt, err = decodeTime(cells[taskColCreatedAt]); err != nil {
		return nil, fmt.Errorf("task %s: created_at: %w", task.ID, err)
	}
	if task.UpdatedAt, err = decodeTime(cells[taskColUpdatedAt]); err != nil {
		return nil, fmt.Errorf("task %s: updated_at: %w", task.ID, err)
	}
	return task, nil
}

func encodeMetadata(meta *model.ChannelMetadata) []string {
	row := make([]string, metaColumnCount)
	row[metaColChannelID] = meta.ChannelID
	row[metaColMessageID] = meta.MessageID
	row[metaColListTitle] = meta.ListTitle
	row[metaColLastSyncTime] = encodeOptionalTimeValue(meta.LastSyncTime)
	row[metaColDefaultCategory] = meta.DefaultCategory
	row[metaColLogThreadID] = meta.OperationLogThreadID
	return row
}

func decodeMetadata(row []string) (*model.ChannelMetadata, error) {
	cells := padRow(row, metaColumnCount)
	meta := &model.ChannelMetadata{
		ChannelID:            cells[metaColChannelID],
		MessageID:            cells[metaColMessageID],
		ListTitle:            cells[metaColListTitle],
		DefaultCategory:      cells[metaColDefaultCategory],
		OperationLogThreadID: cells[metaColLogThreadID],
	}
	if meta.ChannelID == "" {
		return nil, fmt.Errorf("metadata row without channel id")
	}
	if raw := cells[metaColLastSyncTime]; raw != "" {
		t, err := decodeTime(raw)
		if err != nil {
			return nil, fmt.Errorf("metadata %s: last_sync_time: %w", meta.ChannelID, err)
		}
		meta.LastSyncTime = t
	}
	return meta, nil
}

func encodeTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func encodeOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return encodeTime(*t)
}

func encodeOptionalTimeValue(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return encodeTime(t)
}

func decodeTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func decodeOptionalTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func decodeInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}
