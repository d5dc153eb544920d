package program

import (
	"fmt"
	"time"
)

func EveryMinutes(n int) *TimeCondition {
	return &TimeCondition{Kind: EveryNMinutes, Minutes: n}
}

func EveryHours(n int) *TimeCondition {
	return EveryMinutes(60 * n)
}

func At(hour, minute int) *TimeCondition {
	return &TimeCondition{Kind: AtFixedTime, Hour: hour, Minute: minute}
}

// Valid reports whether the condition can ever match. An AtFixedTime outside
// of 00:00-23:59 is accepted by the parser but never fires.
func (c TimeCondition) Valid() bool {
	switch c.Kind {
	case EveryNMinutes:
		return c.Minutes > 0
	case AtFixedTime:
		return c.Hour >= 0 && c.Hour <= 23 && c.Minute >= 0 && c.Minute <= 59
	default:
		return false
	}
}

func (c TimeCondition) String() string {
	switch c.Kind {
	case EveryNMinutes:
		switch {
		case c.Minutes == 1:
			return "every minute"
		case c.Minutes == 60:
			return "every hour"
		case c.Minutes > 0 && c.Minutes%60 == 0:
			return fmt.Sprintf("every %d hours", c.Minutes/60)
		default:
			return fmt.Sprintf("every %d minutes", c.Minutes)
		}
	case AtFixedTime:
		return fmt.Sprintf("at %02d:%02d", c.Hour, c.Minute)
	default:
		return fmt.Sprintf("unknown condition %d", c.Kind)
	}
}

// Matches decides whether cond is satisfied at now for a task registered at
// createdAt. Recurrences are anchored to createdAt, fixed times to the wall
// clock of now.
func Matches(cond TimeCondition, createdAt time.Time, now time.Time) bool {
	switch cond.Kind {
	case EveryNMinutes:
		if cond.Minutes <= 0 {
			return false
		}
		elapsedMinutes := int64(now.Sub(createdAt) / time.Minute)
		return elapsedMinutes%int64(cond.Minutes) == 0
	case AtFixedTime:
		return now.Hour() == cond.Hour && now.Minute() == cond.Minute
	default:
		return false
	}
}
