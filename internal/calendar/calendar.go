// Package calendar answers whether a wall-clock instant falls inside the
// feed's online hours, the post-session closing windows, or a product's
// trading session. All times are local exchange time; no zone conversion is
// applied.
package calendar

import (
	"fmt"
	"sort"
	"time"

	"futuresflow/models"
)

// TimeOfDay is the offset from local midnight.
type TimeOfDay time.Duration

const endOfDay = TimeOfDay(24 * time.Hour)

// At builds a TimeOfDay from hour and minute.
func At(hour, minute int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// OfTime returns the time-of-day component of t in t's own location.
func OfTime(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second + time.Duration(t.Nanosecond()))
}

func (d TimeOfDay) String() string {
	total := time.Duration(d)
	return fmt.Sprintf("%02d:%02d", int(total.Hours()), int(total.Minutes())%60)
}

// Frame is a half-open interval [Begin, End) within one day.
type Frame struct {
	Begin TimeOfDay
	End   TimeOfDay
}

func (f Frame) Contains(d TimeOfDay) bool {
	return d >= f.Begin && d < f.End
}

func (f Frame) String() string {
	return f.Begin.String() + "-" + f.End.String()
}

// Table maps a weekday to its frames. Ranges crossing midnight are stored as
// two same-day frames on consecutive weekdays.
type Table map[time.Weekday][]Frame

// Contains reports whether t falls inside any frame of t's weekday.
func (tb Table) Contains(t time.Time) bool {
	d := OfTime(t)
	for _, f := range tb[t.Weekday()] {
		if f.Contains(d) {
			return true
		}
	}
	return false
}

// Validate checks that every frame is non-empty, within the day and that
// frames of the same weekday do not overlap.
func (tb Table) Validate() error {
	for day, frames := range tb {
		sorted := append([]Frame(nil), frames...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Begin < sorted[j].Begin })
		for i, f := range sorted {
			if f.Begin < 0 || f.End > endOfDay || f.Begin >= f.End {
				return fmt.Errorf("%s: invalid frame %s", day, f)
			}
			if i > 0 && sorted[i-1].End > f.Begin {
				return fmt.Errorf("%s: frame %s overlaps %s", day, sorted[i-1], f)
			}
		}
	}
	return nil
}

// Calendar bundles the online, closing and per-product session tables. It is
// immutable after construction and safe for concurrent use.
type Calendar struct {
	Online   Table
	Closing  Table
	Sessions map[models.TradingTimeFrameType]Table
}

// IsOnlineTime reports whether the feed is expected to be connected at t.
func (c *Calendar) IsOnlineTime(t time.Time) bool {
	return c.Online.Contains(t)
}

// IsClosingWindow reports whether buffered ticks should be persisted at t.
func (c *Calendar) IsClosingWindow(t time.Time) bool {
	return c.Closing.Contains(t)
}

// IsTradingTime reports whether a product of the given frame type is in a
// continuous trading session at t.
func (c *Calendar) IsTradingTime(frameType models.TradingTimeFrameType, t time.Time) bool {
	tb, ok := c.Sessions[frameType]
	if !ok {
		return false
	}
	return tb.Contains(t)
}

// Validate checks every table of the calendar and that no closing frame
// overlaps an online frame of the same weekday.
func (c *Calendar) Validate() error {
	if err := c.Online.Validate(); err != nil {
		return fmt.Errorf("online table: %w", err)
	}
	if err := c.Closing.Validate(); err != nil {
		return fmt.Errorf("closing table: %w", err)
	}
	for day, frames := range c.Closing {
		for _, cf := range frames {
			for _, of := range c.Online[day] {
				if cf.Begin < of.End && of.Begin < cf.End {
					return fmt.Errorf("%s: closing frame %s overlaps online frame %s", day, cf, of)
				}
			}
		}
	}
	for ft, tb := range c.Sessions {
		if err := tb.Validate(); err != nil {
			return fmt.Errorf("%s sessions: %w", ft, err)
		}
	}
	return nil
}
