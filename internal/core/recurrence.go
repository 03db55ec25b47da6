package core

import "time"

// recurrenceSteps maps each interval to its calendar step. MONTHLY and YEARLY
// rely on time.AddDate rollover: Jan 31 + 1 month lands in early March.
var recurrenceSteps = map[Interval]func(time.Time) time.Time{
	Daily:   func(t time.Time) time.Time { return t.AddDate(0, 0, 1) },
	Weekly:  func(t time.Time) time.Time { return t.AddDate(0, 0, 7) },
	Monthly: func(t time.Time) time.Time { return t.AddDate(0, 1, 0) },
	Yearly:  func(t time.Time) time.Time { return t.AddDate(1, 0, 0) },
}

// NextOccurrence returns the date one interval after date.
func NextOccurrence(date time.Time, interval Interval) (time.Time, error) {
	step, ok := recurrenceSteps[interval]
	if !ok {
		return time.Time{}, interval.Validate()
	}
	return step(date), nil
}

// ScheduleNext recomputes NextRecurringDate from the transaction date, or clears
// it when the transaction is not recurring.
func (t *Transaction) ScheduleNext() error {
	if !t.IsRecurring {
		t.Interval = ""
		t.NextRecurringDate = nil
		return nil
	}
	next, err := NextOccurrence(t.Date, t.Interval)
	if err != nil {
		return err
	}
	t.NextRecurringDate = &next
	return nil
}
