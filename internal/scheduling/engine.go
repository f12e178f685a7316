package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ErrNoSlotAvailable is the negative result of an exhausted slot search. It
// is ordinary feedback for the caller, not a fault.
var ErrNoSlotAvailable = errors.New("no available slot within the search horizon")

// conflictFetchPadding widens the busy-interval fetch around a candidate
// slot. The pairwise overlap test below is the authoritative check; the
// padding only bounds the fetch.
const conflictFetchPadding = time.Hour

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps applies the open-interval test: touching endpoints do not count.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// ScheduleSource supplies the busy intervals of one doctor's non-cancelled
// appointments. Implementations may over-return rows outside [from, to); the
// engine re-tests every candidate exactly. excludeID, when set, removes one
// appointment from consideration so an edit never collides with itself.
type ScheduleSource interface {
	BusyIntervals(ctx context.Context, doctorID uuid.UUID, from, to time.Time, excludeID *uuid.UUID) ([]Interval, error)
}

// Engine answers interval-overlap questions for a single doctor's schedule
// and searches forward for open slots. It is read-only: no call mutates
// anything.
type Engine struct {
	cfg    Config
	source ScheduleSource
}

// NewEngine validates the working window up front; a bad window is a
// deployment error, not something to limp along with.
func NewEngine(cfg Config, source ScheduleSource) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scheduling config: %w", err)
	}
	if source == nil {
		return nil, fmt.Errorf("schedule source is required")
	}
	return &Engine{cfg: cfg, source: source}, nil
}

// Config returns the engine's working window.
func (e *Engine) Config() Config {
	return e.cfg
}

// WithSource returns a copy of the engine reading from src. Booking flows
// use this to run conflict checks against an open transaction's snapshot
// instead of the pooled connection.
func (e *Engine) WithSource(src ScheduleSource) *Engine {
	clone := *e
	clone.source = src
	return &clone
}

// HasConflict reports whether [start, end) intersects any non-cancelled
// appointment of the doctor. Appointments that merely touch the boundary
// (one ending exactly when the slot starts, or starting exactly when it
// ends) do not conflict.
func (e *Engine) HasConflict(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	if !end.After(start) {
		return false, fmt.Errorf("invalid slot interval: end %s is not after start %s", end, start)
	}

	busy, err := e.source.BusyIntervals(ctx, doctorID, start.Add(-conflictFetchPadding), end.Add(conflictFetchPadding), excludeID)
	if err != nil {
		return false, fmt.Errorf("failed to fetch busy intervals: %w", err)
	}

	slot := Interval{Start: start, End: end}
	for _, b := range busy {
		if slot.Overlaps(b) {
			return true, nil
		}
	}
	return false, nil
}

// NextAvailableSlot walks forward from searchFrom, day by day within the
// configured working window, and returns the earliest candidate start whose
// [candidate, candidate+duration) interval is clear. Candidates always sit
// on whole minutes. Exhausting the horizon returns ErrNoSlotAvailable.
func (e *Engine) NextAvailableSlot(ctx context.Context, doctorID uuid.UUID, durationMinutes int, searchFrom time.Time) (time.Time, error) {
	if durationMinutes <= 0 {
		return time.Time{}, fmt.Errorf("duration must be positive, got %d minutes", durationMinutes)
	}

	duration := time.Duration(durationMinutes) * time.Minute
	cursor := ceilToMinute(searchFrom.In(e.cfg.Location))

	for dayOffset := 0; dayOffset <= e.cfg.SearchDaysAhead; dayOffset++ {
		day := cursor.AddDate(0, 0, dayOffset)
		if !e.cfg.WorkDays[day.Weekday()] {
			continue
		}

		y, m, d := day.Date()
		dayStart := time.Date(y, m, d, e.cfg.WorkStartHour, 0, 0, 0, e.cfg.Location)
		dayEnd := time.Date(y, m, d, e.cfg.WorkEndHour, 0, 0, 0, e.cfg.Location)

		candidate := dayStart
		if dayOffset == 0 && cursor.After(dayStart) {
			candidate = cursor
		}

		busy, err := e.busyWithinDay(ctx, doctorID, dayStart, dayEnd)
		if err != nil {
			return time.Time{}, err
		}

		for !candidate.Add(duration).After(dayEnd) {
			slotEnd := candidate.Add(duration)

			jumped := false
			for _, b := range busy {
				if (Interval{Start: candidate, End: slotEnd}).Overlaps(b) {
					candidate = ceilToMinute(b.End)
					jumped = true
					break
				}
			}
			if jumped {
				continue
			}

			// The day walk only saw this day's clipped intervals; confirm
			// against the full schedule before committing to the answer.
			clash, err := e.HasConflict(ctx, doctorID, candidate, slotEnd, nil)
			if err != nil {
				return time.Time{}, err
			}
			if !clash {
				return candidate, nil
			}
			candidate = candidate.Add(time.Minute)
		}
	}

	return time.Time{}, ErrNoSlotAvailable
}

// busyWithinDay fetches the doctor's busy intervals, clips them to the
// working window and sorts them by start.
func (e *Engine) busyWithinDay(ctx context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time) ([]Interval, error) {
	raw, err := e.source.BusyIntervals(ctx, doctorID, dayStart, dayEnd, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch busy intervals: %w", err)
	}

	busy := make([]Interval, 0, len(raw))
	for _, b := range raw {
		if !b.End.After(dayStart) || !dayEnd.After(b.Start) {
			continue
		}
		clipped := b
		if clipped.Start.Before(dayStart) {
			clipped.Start = dayStart
		}
		if clipped.End.After(dayEnd) {
			clipped.End = dayEnd
		}
		busy = append(busy, clipped)
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })
	return busy, nil
}

// ceilToMinute rounds t up to the next whole minute unless it already sits
// on one.
func ceilToMinute(t time.Time) time.Time {
	if t.Second() == 0 && t.Nanosecond() == 0 {
		return t
	}
	t = t.Add(time.Minute)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}
