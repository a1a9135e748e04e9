package hawl

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCompletionDate(t *testing.T) {
	start := date(2025, time.January, 1)
	want := date(2025, time.December, 21)
	if got := CompletionDate(start); !got.Equal(want) {
		t.Errorf("CompletionDate(%v) = %v, want %v", start, got, want)
	}
}

func TestDaysElapsed(t *testing.T) {
	start := date(2025, time.January, 1)

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"at start", start, 0},
		{"one day in", date(2025, time.January, 2), 1},
		{"mid window", date(2025, time.July, 1), 181},
		{"before start clamps to zero", date(2024, time.December, 1), 0},
		{"past completion", date(2026, time.January, 1), 365},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysElapsed(tt.now, start); got != tt.want {
				t.Errorf("DaysElapsed = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDaysRemaining(t *testing.T) {
	start := date(2025, time.January, 1)

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"at start", start, Days},
		{"one day in", date(2025, time.January, 2), Days - 1},
		{"past completion never negative", date(2026, time.June, 1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysRemaining(tt.now, start); got != tt.want {
				t.Errorf("DaysRemaining = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDaysElapsedIgnoresTimeOfDay(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 1, 0, 0, time.UTC)

	if got := DaysElapsed(time.Date(2025, time.January, 1, 23, 59, 0, 0, time.UTC), start); got != 0 {
		t.Errorf("same calendar day: DaysElapsed = %d, want 0", got)
	}
	if got := DaysElapsed(time.Date(2025, time.January, 2, 0, 1, 0, 0, time.UTC), start); got != 1 {
		t.Errorf("next calendar day: DaysElapsed = %d, want 1", got)
	}
}

func TestCompletionAndCountdownAgreeAcrossZones(t *testing.T) {
	zones := []*time.Location{
		time.UTC,
		time.FixedZone("UTC+14", 14*3600),
		time.FixedZone("UTC-11", -11*3600),
	}
	for _, loc := range zones {
		start := time.Date(2025, time.March, 8, 23, 30, 0, 0, loc)
		completion := CompletionDate(start)
		for _, offset := range []int{Days - 1, Days, Days + 1} {
			now := start.AddDate(0, 0, offset)
			remaining := DaysRemaining(now, start)
			complete := IsComplete(now, completion)
			if (remaining == 0) != complete {
				t.Errorf("zone %v, day %d: DaysRemaining = %d but IsComplete = %v",
					loc, offset, remaining, complete)
			}
		}
	}
}

func TestIsComplete(t *testing.T) {
	completion := date(2025, time.December, 21)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"day before", date(2025, time.December, 20), false},
		{"exact completion date", completion, true},
		{"day after", date(2025, time.December, 22), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsComplete(tt.now, completion); got != tt.want {
				t.Errorf("IsComplete(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}
