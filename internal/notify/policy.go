// Package notify holds the pure decision functions of the notification
// sweep. Neither predicate mutates the task: the caller persists the
// idempotency markers after acting on a true result, and must do so before
// evaluating the next task.
package notify

import (
	"time"

	"listkeeper/internal/model"
)

// ShouldSendPreReminder reports whether a pre-reminder for the task's current
// due instant should fire at now. It is true at most once per occurrence:
// LastRemindDueAt records the NextDueAt a reminder was already issued for.
func ShouldSendPreReminder(task *model.RecurringTask, now time.Time) bool {
	if task.RemindBeforeMinutes <= 0 {
		return false
	}
	windowStart := task.NextDueAt.Add(-time.Duration(task.RemindBeforeMinutes) * time.Minute)
	if now.Before(windowStart) || !now.Before(task.NextDueAt) {
		return false
	}
	return task.LastRemindDueAt == nil || !task.LastRemindDueAt.Equal(task.NextDueAt)
}

// ShouldSendOverdue reports whether an overdue alert should fire at now.
// Alerts are throttled to one per calendar day in loc and capped by
// OverdueNotifyLimit when set (zero means unbounded). Paused tasks never
// alert.
func ShouldSendOverdue(task *model.RecurringTask, now time.Time, loc *time.Location) bool {
	if task.IsPaused {
		return false
	}
	if now.Before(task.NextDueAt) {
		return false
	}
	if task.OverdueNotifyLimit > 0 && task.OverdueNotifyCount >= task.OverdueNotifyLimit {
		return false
	}
	if task.LastOverdueNotifiedAt != nil && sameDay(*task.LastOverdueNotifiedAt, now, loc) {
		return false
	}
	return true
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
