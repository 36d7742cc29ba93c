package schedule

import (
	"testing"
	"time"
	_ "time/tzdata"

	"listkeeper/internal/model"
)

var jst = time.FixedZone("JST", 9*3600)

func TestNormalizeTimeOfDay(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"canonical", "09:00", "09:00"},
		{"bare hour", "9", "09:00"},
		{"single digit minute", "9:5", "09:05"},
		{"empty defaults to midnight", "", "00:00"},
		{"padded input", " 18:30 ", "18:30"},
		{"midnight", "0:0", "00:00"},
		{"last minute", "23:59", "23:59"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeTimeOfDay(tc.raw)
			if err != nil {
				t.Fatalf("NormalizeTimeOfDay(%q) error: %v", tc.raw, err)
			}
			if got != tc.want {
				t.Errorf("NormalizeTimeOfDay(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestNormalizeTimeOfDayRejectsOutOfRange(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"hour too large", "24:00"},
		{"minute too large", "10:60"},
		{"negative hour", "-1:00"},
		{"not a number", "a:b"},
		{"too many parts", "1:2:3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NormalizeTimeOfDay(tc.raw); !model.IsValidation(err) {
				t.Errorf("NormalizeTimeOfDay(%q) = %v, want validation error", tc.raw, err)
			}
		})
	}
}

func TestStartAtAnchorsToCreationDay(t *testing.T) {
	createdAt := time.Date(2026, 1, 5, 14, 30, 0, 0, jst)
	got := StartAt(createdAt, "09:00", jst)
	want := time.Date(2026, 1, 5, 9, 0, 0, 0, jst)
	if !got.Equal(want) {
		t.Fatalf("StartAt = %v, want %v", got, want)
	}
	// The anchor being before createdAt is intentional; NextDueAt handles
	// the advance.
	if !got.Before(createdAt) {
		t.Fatalf("expected anchor before creation instant")
	}
}

func TestNextDueAtWeeklyWindow(t *testing.T) {
	startAt := time.Date(2025, 12, 29, 9, 0, 0, 0, jst)
	now := time.Date(2026, 1, 5, 8, 30, 0, 0, jst)

	got := NextDueAt(7, "09:00", startAt, now, jst)
	want := time.Date(2026, 1, 5, 9, 0, 0, 0, jst)
	if !got.Equal(want) {
		t.Fatalf("NextDueAt = %v, want %v", got, want)
	}
}

func TestNextDueAtBeforeStartReturnsStart(t *testing.T) {
	startAt := time.Date(2026, 3, 1, 9, 0, 0, 0, jst)
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, jst)
	if got := NextDueAt(3, "09:00", startAt, now, jst); !got.Equal(startAt) {
		t.Fatalf("NextDueAt = %v, want startAt %v", got, startAt)
	}
}

func TestNextDueAtStrictlyAfterNow(t *testing.T) {
	startAt := time.Date(2025, 12, 29, 9, 0, 0, 0, jst)
	cases := []struct {
		name string
		now  time.Time
	}{
		{"exactly at occurrence", time.Date(2026, 1, 5, 9, 0, 0, 0, jst)},
		{"just past occurrence", time.Date(2026, 1, 5, 9, 0, 1, 0, jst)},
		{"long after start", time.Date(2027, 6, 1, 0, 0, 0, 0, jst)},
		{"equal to start", startAt},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextDueAt(7, "09:00", startAt, tc.now, jst)
			if !got.After(tc.now) {
				t.Fatalf("NextDueAt = %v, not after now %v", got, tc.now)
			}
			diffDays := int(got.Sub(startAt).Hours() / 24)
			if diffDays%7 != 0 {
				t.Fatalf("NextDueAt = %v is not a whole number of intervals from startAt", got)
			}
		})
	}
}

func TestNextDueAtStable(t *testing.T) {
	startAt := time.Date(2025, 12, 29, 9, 0, 0, 0, jst)
	now := time.Date(2026, 1, 10, 15, 0, 0, 0, jst)
	first := NextDueAt(7, "09:00", startAt, now, jst)
	for i := 0; i < 5; i++ {
		if got := NextDueAt(7, "09:00", startAt, now, jst); !got.Equal(first) {
			t.Fatalf("call %d returned %v, first call returned %v", i+2, got, first)
		}
	}
}

func TestNextDueAtPreservesWallClockAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	// US DST starts 2026-03-08; the 09:00 civil time must survive the
	// shift even though the elapsed duration is not 24h.
	startAt := time.Date(2026, 3, 7, 9, 0, 0, 0, loc)
	now := time.Date(2026, 3, 7, 12, 0, 0, 0, loc)

	got := NextDueAt(1, "09:00", startAt, now, loc)
	want := time.Date(2026, 3, 8, 9, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("NextDueAt = %v, want %v", got, want)
	}
	if got.Hour() != 9 || got.Minute() != 0 {
		t.Fatalf("civil time not preserved: %v", got)
	}
}

func TestNextDueAtPreservesWallClockAcrossLeapDay(t *testing.T) {
	startAt := time.Date(2028, 2, 27, 10, 30, 0, 0, jst)
	now := time.Date(2028, 2, 28, 12, 0, 0, 0, jst)

	got := NextDueAt(2, "10:30", startAt, now, jst)
	want := time.Date(2028, 2, 29, 10, 30, 0, 0, jst)
	if !got.Equal(want) {
		t.Fatalf("NextDueAt = %v, want leap day %v", got, want)
	}
}
