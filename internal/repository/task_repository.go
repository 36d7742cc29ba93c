package repository

import (
	"context"
	"fmt"
	"log"

	"listkeeper/internal/model"
	"listkeeper/internal/store"
)

// TaskRepository persists recurring tasks, one table per channel. Tables are
// created lazily with a header row on first write.
type TaskRepository struct {
	store store.TabularStore
}

func NewTaskRepository(st store.TabularStore) *TaskRepository {
	return &TaskRepository{store: st}
}

func taskTable(channelID string) string {
	return "tasks_" + channelID
}

// EnsureTable creates the channel's task table and header if missing, and
// heals an incomplete header left by an older version.
func (r *TaskRepository) EnsureTable(ctx context.Context, channelID string) error {
	table := taskTable(channelID)
	if err := r.store.CreateTable(ctx, table); err != nil {
		return fmt.Errorf("ensure task table: %w", err)
	}
	return ensureHeader(ctx, r.store, table, taskHeader)
}

func (r *TaskRepository) Append(ctx context.Context, channelID string, task *model.RecurringTask) error {
	row, err := encodeTask(task)
	if err != nil {
		return err
	}
	if err := r.store.AppendRows(ctx, taskTable(channelID), [][]string{row}); err != nil {
		return fmt.Errorf("append task: %w", err)
	}
	return nil
}

// Update rewrites the row holding task.ID. Returns model.ErrNotFound when
// the task is no longer in the table.
func (r *TaskRepository) Update(ctx context.Context, channelID string, task *model.RecurringTask) error {
	table := taskTable(channelID)
	rows, err := r.store.GetRows(ctx, table)
	if err != nil {
		return fmt.Errorf("read tasks: %w", err)
	}

	for i, raw := range rows {
		if i == 0 {
			continue
		}
		if cellAt(raw, taskColID) == task.ID {
			row, err := encodeTask(task)
			if err != nil {
				return err
			}
			if err := r.store.UpdateRange(ctx, table, i, [][]string{row}); err != nil {
				return fmt.Errorf("update task %s: %w", task.ID, err)
			}
			return nil
		}
	}
	return fmt.Errorf("task %s: %w", task.ID, model.ErrNotFound)
}

// FindByMessageID resolves the back-reference from a rendered chat message
// to its task.
func (r *TaskRepository) FindByMessageID(ctx context.Context, channelID, messageID string) (*model.RecurringTask, error) {
	tasks, err := r.List(ctx, channelID)
	if err != nil {
		return nil, err
	}
	for _, task := range tasks {
		if task.MessageID == messageID {
			return task, nil
		}
	}
	return nil, fmt.Errorf("task for message %s: %w", messageID, model.ErrNotFound)
}

// List returns every decodable task in the channel. Undecodable rows are
// skipped with a warning so one corrupt row cannot stall a sweep.
func (r *TaskRepository) List(ctx context.Context, channelID string) ([]*model.RecurringTask, error) {
	rows, err := r.store.GetRows(ctx, taskTable(channelID))
	if err != nil {
		return nil, fmt.Errorf("read tasks: %w", err)
	}

	tasks := make([]*model.RecurringTask, 0, len(rows))
	for i, raw := range rows {
		if i == 0 {
			continue
		}
		task, err := decodeTask(raw)
		if err != nil {
			log.Printf("[warn] skip task row %d in %s: %v", i, channelID, err)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func cellAt(row []string, col int) string {
	if col >= len(row) {
		return ""
	}
	return row[col]
}

// ensureHeader writes the header row when absent, or rewrites it in place
// when an older version left fewer or different columns. Data rows are not
// touched, which makes additive schema evolution a no-migration operation.
func ensureHeader(ctx context.Context, st store.TabularStore, table string, header []string) error {
	rows, err := st.GetRows(ctx, table)
	if err != nil {
		return fmt.Errorf("read header of %q: %w", table, err)
	}

	if len(rows) == 0 {
		if err := st.AppendRows(ctx, table, [][]string{header}); err != nil {
			return fmt.Errorf("write header of %q: %w", table, err)
		}
		return nil
	}

	if headerMatches(rows[0], header) {
		return nil
	}
	if err := st.UpdateRange(ctx, table, 0, [][]string{header}); err != nil {
		return fmt.Errorf("heal header of %q: %w", table, err)
	}
	return nil
}

func headerMatches(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}
	for i := range expected {
		if actual[i] != expected[i] {
			return false
		}
	}
	return true
}
