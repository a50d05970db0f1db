package schedule

import "time"

// Clock abstracts time so triggers can be driven by tests.
type Clock interface {
	Now() time.Time

	// Timer returns a channel that receives once after d, and a function that
	// stops the timer.
	Timer(d time.Duration) (<-chan time.Time, func() bool)
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Timer(d time.Duration) (<-chan time.Time, func() bool) {
	t := time.NewTimer(d)
	return t.C, t.Stop
}

// Trigger fires once a day at Hour:Minute in the clock's location.
type Trigger struct {
	Name   string
	Hour   int
	Minute int
}

// Next returns the first firing time strictly after now.
func (t Trigger) Next(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), t.Hour, t.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// EndTime returns the end of the window starting at startHour:00 on now's
// day and lasting durationMinutes.
func EndTime(startHour, durationMinutes int, now time.Time) time.Time {
	start := time.Date(now.Year(), now.Month(), now.Day(), startHour, 0, 0, 0, now.Location())
	return start.Add(time.Duration(durationMinutes) * time.Minute)
}

// WindowActive reports whether now lies strictly inside today's window.
func WindowActive(startHour, durationMinutes int, now time.Time) bool {
	start := time.Date(now.Year(), now.Month(), now.Day(), startHour, 0, 0, 0, now.Location())
	end := EndTime(startHour, durationMinutes, now)
	return start.Before(now) && now.Before(end)
}
