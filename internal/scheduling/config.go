package scheduling

import (
	"fmt"
	"time"
)

// Defaults for the clinic working window.
const (
	DefaultSlotMinutes     = 30
	DefaultWorkStartHour   = 9
	DefaultWorkEndHour     = 17
	DefaultSearchDaysAhead = 30
)

// Config carries the working-window settings consumed by the engine. It is
// built once at process start and passed by reference; nothing mutates it
// afterwards.
type Config struct {
	// SlotMinutes is the default appointment length used when a row stores
	// no explicit duration.
	SlotMinutes int
	// WorkStartHour and WorkEndHour bound the daily window [start:00, end:00)
	// in Location's wall clock.
	WorkStartHour int
	WorkEndHour   int
	// WorkDays marks the weekdays on which slots may be offered.
	WorkDays map[time.Weekday]bool
	// SearchDaysAhead is the slot-search horizon in days.
	SearchDaysAhead int
	// Location is the clinic timezone; every comparison happens in it.
	Location *time.Location
}

// DefaultConfig returns the stock working window: 30-minute slots, 09-17,
// Monday through Friday, 30-day horizon.
func DefaultConfig(loc *time.Location) Config {
	return Config{
		SlotMinutes:   DefaultSlotMinutes,
		WorkStartHour: DefaultWorkStartHour,
		WorkEndHour:   DefaultWorkEndHour,
		WorkDays: map[time.Weekday]bool{
			time.Monday:    true,
			time.Tuesday:   true,
			time.Wednesday: true,
			time.Thursday:  true,
			time.Friday:    true,
		},
		SearchDaysAhead: DefaultSearchDaysAhead,
		Location:        loc,
	}
}

// Validate fails fast on a window no slot could ever fit.
func (c Config) Validate() error {
	if c.SlotMinutes <= 0 {
		return fmt.Errorf("slot minutes must be positive, got %d", c.SlotMinutes)
	}
	if c.WorkStartHour < 0 || c.WorkStartHour > 23 {
		return fmt.Errorf("work start hour out of range: %d", c.WorkStartHour)
	}
	if c.WorkEndHour < 1 || c.WorkEndHour > 24 {
		return fmt.Errorf("work end hour out of range: %d", c.WorkEndHour)
	}
	if c.WorkEndHour <= c.WorkStartHour {
		return fmt.Errorf("work end hour %d must be after start hour %d", c.WorkEndHour, c.WorkStartHour)
	}
	if len(c.WorkDays) == 0 {
		return fmt.Errorf("at least one work day is required")
	}
	workable := false
	for _, ok := range c.WorkDays {
		if ok {
			workable = true
			break
		}
	}
	if !workable {
		return fmt.Errorf("at least one work day is required")
	}
	if c.SearchDaysAhead < 0 {
		return fmt.Errorf("search days ahead must not be negative, got %d", c.SearchDaysAhead)
	}
	if c.Location == nil {
		return fmt.Errorf("location is required")
	}
	return nil
}
