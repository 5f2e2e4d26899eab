package domain

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock offset from local midnight.
type TimeOfDay time.Duration

// ParseTimeOfDay accepts "HH:MM" in 24-hour form.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, fmt.Errorf("%w: time of day %q: %v", ErrInvalidSchedule, raw, err)
	}
	return TimeOfDay(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute), nil
}

// MustTimeOfDay is ParseTimeOfDay for constants.
func MustTimeOfDay(raw string) TimeOfDay {
	t, err := ParseTimeOfDay(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// On returns the instant this time of day falls on day's calendar date in loc.
func (t TimeOfDay) On(day time.Time, loc *time.Location) time.Time {
	d := time.Duration(t)
	y, m, dd := day.In(loc).Date()
	return time.Date(y, m, dd, int(d/time.Hour), int(d%time.Hour/time.Minute), 0, 0, loc)
}

func (t TimeOfDay) String() string {
	d := time.Duration(t)
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute))
}

// ScheduleConfig is the per-business input to slot generation. Treated as validated.
type ScheduleConfig struct {
	OpeningTime     TimeOfDay
	ClosingTime     TimeOfDay
	PrepMinutes     int
	IntervalMinutes int
	// CapacityPerSlot limits orders per slot; zero disables capacity tracking.
	CapacityPerSlot int
	// Location is the business time zone. Nil means the zone of the "now" passed in.
	Location *time.Location
}

func (c ScheduleConfig) Prep() time.Duration {
	return time.Duration(c.PrepMinutes) * time.Minute
}

func (c ScheduleConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

func (c ScheduleConfig) location(now time.Time) *time.Location {
	if c.Location != nil {
		return c.Location
	}
	return now.Location()
}

// Validate rejects configurations the scheduler cannot work with.
func (c ScheduleConfig) Validate() error {
	if c.ClosingTime <= c.OpeningTime {
		return fmt.Errorf("%w: closing time %s must be after opening time %s", ErrInvalidSchedule, c.ClosingTime, c.OpeningTime)
	}
	if time.Duration(c.ClosingTime) > 24*time.Hour {
		return fmt.Errorf("%w: closing time must be within the day", ErrInvalidSchedule)
	}
	if c.PrepMinutes < 0 {
		return fmt.Errorf("%w: prep minutes must not be negative", ErrInvalidSchedule)
	}
	if c.IntervalMinutes <= 0 {
		return fmt.Errorf("%w: interval minutes must be positive", ErrInvalidSchedule)
	}
	if c.CapacityPerSlot < 0 {
		return fmt.Errorf("%w: capacity per slot must not be negative", ErrInvalidSchedule)
	}
	return nil
}

// TimeSlot is a candidate pickup instant.
type TimeSlot struct {
	Time      time.Time
	Label     string
	Available bool
}

// Occupancy counts booked orders per pickup instant.
type Occupancy map[int64]int

func (o Occupancy) Add(t time.Time) {
	o[t.Unix()]++
}

func (o Occupancy) Count(t time.Time) int {
	return o[t.Unix()]
}
