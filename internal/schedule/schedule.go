// Package schedule computes occurrence timestamps for recurring tasks. All
// functions are pure: the reference instant is always an explicit parameter
// and results depend only on inputs.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"listkeeper/internal/model"
)

// NormalizeTimeOfDay parses "HH:mm" or a bare hour into canonical "HH:mm".
// A missing minute component defaults to 00.
func NormalizeTimeOfDay(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "00:00", nil
	}

	parts := strings.Split(trimmed, ":")
	if len(parts) > 2 {
		return "", &model.ValidationError{Field: "timeOfDay", Reason: fmt.Sprintf("expected HH:mm, got %q", raw)}
	}

	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || hour < 0 || hour > 23 {
		return "", &model.ValidationError{Field: "timeOfDay", Reason: fmt.Sprintf("hour out of range in %q", raw)}
	}

	minute := 0
	if len(parts) == 2 {
		minute, err = strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || minute < 0 || minute > 59 {
			return "", &model.ValidationError{Field: "timeOfDay", Reason: fmt.Sprintf("minute out of range in %q", raw)}
		}
	}

	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

// StartAt anchors the first occurrence to the calendar day of createdAt at
// timeOfDay in loc. The result may be before createdAt; the next occurrence
// is computed separately by NextDueAt.
func StartAt(createdAt time.Time, timeOfDay string, loc *time.Location) time.Time {
	hour, minute := splitTimeOfDay(timeOfDay)
	local := createdAt.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
}

// NextDueAt returns the earliest occurrence strictly after now, advancing
// from startAt in multiples of intervalDays at timeOfDay. When now is before
// startAt it returns startAt. Occurrences keep the civil time-of-day across
// DST and leap-day boundaries (wall-clock semantics).
func NextDueAt(intervalDays int, timeOfDay string, startAt, now time.Time, loc *time.Location) time.Time {
	if intervalDays < 1 {
		intervalDays = 1
	}
	if now.Before(startAt) {
		return startAt
	}

	hour, minute := splitTimeOfDay(timeOfDay)
	anchor := startAt.In(loc)

	// Estimate the occurrence index from the elapsed span, then step forward.
	// The estimate can be off by one around DST shifts, never more.
	elapsedDays := int(now.Sub(startAt).Hours() / 24)
	k := elapsedDays / intervalDays
	if k < 0 {
		k = 0
	}

	candidate := occurrence(anchor, k*intervalDays, hour, minute, loc)
	for !candidate.After(now) {
		k++
		candidate = occurrence(anchor, k*intervalDays, hour, minute, loc)
	}
	// Guard against an overshooting estimate.
	for k > 0 {
		prev := occurrence(anchor, (k-1)*intervalDays, hour, minute, loc)
		if !prev.After(now) {
			break
		}
		k--
		candidate = prev
	}
	return candidate
}

func occurrence(anchor time.Time, days, hour, minute int, loc *time.Location) time.Time {
	d := anchor.AddDate(0, 0, days)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, loc)
}

// splitTimeOfDay assumes a normalized "HH:mm" value; malformed input is
// treated as midnight rather than propagating an error through pure math.
func splitTimeOfDay(timeOfDay string) (hour, minute int) {
	parts := strings.Split(timeOfDay, ":")
	if len(parts) != 2 {
		return 0, 0
	}
	hour, _ = strconv.Atoi(parts[0])
	minute, _ = strconv.Atoi(parts[1])
	return hour, minute
}
