package domain

import (
	"fmt"
	"iter"
	"slices"
	"time"
)

// LastPickupBuffer keeps the final slot away from closing time. It is fixed policy.
const LastPickupBuffer = 15 * time.Minute

const slotLabelLayout = "3:04 PM"

type slotOptions struct {
	occupancy Occupancy
}

type SlotOption func(*slotOptions)

// WithOccupancy marks slots unavailable once their bookings reach CapacityPerSlot.
func WithOccupancy(o Occupancy) SlotOption {
	return func(opts *slotOptions) {
		opts.occupancy = o
	}
}

// Slots returns the pickup slots still offerable on now's calendar day.
// The sequence is finite, does no I/O and yields the same values every time it is ranged over.
func Slots(cfg ScheduleConfig, now time.Time, opts ...SlotOption) iter.Seq[TimeSlot] {
	var o slotOptions
	for _, opt := range opts {
		opt(&o)
	}

	interval := cfg.Interval()
	day, first, lastPickup := slotWindow(cfg, now)

	return func(yield func(TimeSlot) bool) {
		if interval <= 0 {
			return
		}
		for offset := first; ; offset += interval {
			t := day.at(offset)
			if t.After(lastPickup) {
				return
			}
			// wall-clock times skipped by a daylight saving change are not offered
			if sinceMidnight(t) != offset {
				continue
			}
			slot := TimeSlot{
				Time:      t,
				Label:     t.Format(slotLabelLayout),
				Available: true,
			}
			if cfg.CapacityPerSlot > 0 && o.occupancy != nil && o.occupancy.Count(t) >= cfg.CapacityPerSlot {
				slot.Available = false
			}
			if !yield(slot) {
				return
			}
		}
	}
}

// GenerateSlots collects Slots into a slice. An empty result means nothing is left today.
func GenerateSlots(cfg ScheduleConfig, now time.Time, opts ...SlotOption) []TimeSlot {
	return slices.Collect(Slots(cfg, now, opts...))
}

// wallDay places slot offsets on the wall clock of one calendar day, so the grid
// keeps its minutes across a daylight saving change.
type wallDay struct {
	year  int
	month time.Month
	day   int
	loc   *time.Location
}

func (d wallDay) at(offset time.Duration) time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, int(offset/time.Second), int(offset%time.Second), d.loc)
}

func (d wallDay) contains(t time.Time) bool {
	y, m, dd := t.In(d.loc).Date()
	return y == d.year && m == d.month && dd == d.day
}

func sinceMidnight(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second + time.Duration(t.Nanosecond())
}

// slotWindow returns now's business day, the first aligned slot as a wall-clock
// offset from midnight, and the last allowed pickup.
func slotWindow(cfg ScheduleConfig, now time.Time) (day wallDay, first time.Duration, lastPickup time.Time) {
	loc := cfg.location(now)
	local := now.In(loc)
	y, m, d := local.Date()
	day = wallDay{year: y, month: m, day: d, loc: loc}
	lastPickup = cfg.ClosingTime.On(local, loc).Add(-LastPickupBuffer)

	first = time.Duration(cfg.OpeningTime)
	minTime := local.Add(cfg.Prep())
	switch {
	case !day.contains(minTime):
		// lead time runs past midnight; nothing is left today
		return day, 24 * time.Hour, lastPickup
	case minTime.After(day.at(first)):
		first = sinceMidnight(minTime)
	}

	if interval := cfg.Interval(); interval > 0 {
		if rem := first % interval; rem != 0 {
			first += interval - rem
		}
	}

	return day, first, lastPickup
}

// ValidateRequestedTime checks a manually entered pickup time. It is looser than Slots:
// the time need not sit on an interval boundary, only respect lead time and business hours.
func ValidateRequestedTime(cfg ScheduleConfig, now, requested time.Time) error {
	loc := cfg.location(now)

	earliest := now.Add(cfg.Prep())
	if requested.Before(earliest) {
		return fmt.Errorf("%w: earliest pickup is %s", ErrBeforeMinimumLeadTime, earliest.In(loc).Format(slotLabelLayout))
	}

	local := requested.In(loc)
	opening := cfg.OpeningTime.On(local, loc)
	closing := cfg.ClosingTime.On(local, loc)
	if local.Before(opening) || local.After(closing) {
		return fmt.Errorf("%w: open %s-%s", ErrOutsideBusinessHours, cfg.OpeningTime, cfg.ClosingTime)
	}

	return nil
}
