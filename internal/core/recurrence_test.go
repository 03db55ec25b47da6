package core

import (
	"testing"
	"time"
)

func TestNextOccurrence(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name     string
		date     time.Time
		interval Interval
		want     time.Time
	}{
		{"daily", day(2024, 1, 5), Daily, day(2024, 1, 6)},
		{"daily crosses month", day(2024, 1, 31), Daily, day(2024, 2, 1)},
		{"weekly", day(2024, 1, 5), Weekly, day(2024, 1, 12)},
		{"monthly", day(2024, 1, 5), Monthly, day(2024, 2, 5)},
		{"monthly rolls over short month", day(2024, 1, 31), Monthly, day(2024, 3, 2)},
		{"monthly december", day(2024, 12, 15), Monthly, day(2025, 1, 15)},
		{"yearly", day(2024, 6, 1), Yearly, day(2025, 6, 1)},
		{"yearly leap day", day(2024, 2, 29), Yearly, day(2025, 3, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextOccurrence(tt.date, tt.interval)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("NextOccurrence() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := NextOccurrence(day(2024, 1, 1), "HOURLY"); err == nil {
		t.Error("expected error for unknown interval")
	}
}

func TestScheduleNext(t *testing.T) {
	tx := Transaction{Date: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), IsRecurring: true, Interval: Weekly}
	if err := tx.ScheduleNext(); err != nil {
		t.Fatal(err)
	}
	if tx.NextRecurringDate == nil || tx.NextRecurringDate.Day() != 12 {
		t.Fatalf("next = %v", tx.NextRecurringDate)
	}

	tx.IsRecurring = false
	if err := tx.ScheduleNext(); err != nil {
		t.Fatal(err)
	}
	if tx.NextRecurringDate != nil || tx.Interval != "" {
		t.Fatalf("expected cleared recurrence, got %v %q", tx.NextRecurringDate, tx.Interval)
	}
}
