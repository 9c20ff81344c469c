package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Clock is a 12-hour wall-clock time as written in a label. Meridiem is
// "AM", "PM", or empty when the label omitted it; the empty case is
// resolved by NextOccurrence, not guessed here.
type Clock struct {
	Hour     int
	Minute   int
	Meridiem string
}

// DefaultClock is applied by callers when a label carries no time-of-day.
var DefaultClock = Clock{Hour: 10, Minute: 0, Meridiem: "AM"}

func (c Clock) String() string {
	if c.Meridiem == "" {
		return fmt.Sprintf("%d:%02d", c.Hour, c.Minute)
	}
	return fmt.Sprintf("%d:%02d %s", c.Hour, c.Minute, c.Meridiem)
}

// Resolution is the outcome of resolving a free-text label. HasWeekday
// false means the label named no weekday and cannot be scheduled from.
type Resolution struct {
	Weekday    time.Weekday
	HasWeekday bool
	Clock      *Clock
}

var weekdayPrefixes = []struct {
	prefix string
	day    time.Weekday
}{
	{"sun", time.Sunday},
	{"mon", time.Monday},
	{"tue", time.Tuesday},
	{"wed", time.Wednesday},
	{"thu", time.Thursday},
	{"fri", time.Friday},
	{"sat", time.Saturday},
}

// clockRe matches an hour 1-12, optional :MM, optional am/pm suffix at the
// start of the text that follows the weekday token.
var clockRe = regexp.MustCompile(`^(1[0-2]|0?[1-9])(?::([0-5][0-9]))?\s*(am|pm)?`)

// Resolve extracts a weekday and an optional clock time from a free-text
// label like "Wednesday afternoon" or "tue 11am". It is case-insensitive,
// whitespace-tolerant, and deterministic: it never reads the current time.
//
// Time-of-day precedence: a day-part word (afternoon, morning) wins over
// an explicit clock time anywhere in the label. A label with neither
// yields a nil Clock; callers apply DefaultClock.
func Resolve(label string) Resolution {
	lower := strings.ToLower(strings.TrimSpace(label))
	fields := strings.Fields(lower)

	var res Resolution
	rest := ""
	for i, tok := range fields {
		tok = strings.Trim(tok, ",.;:!?")
		for _, w := range weekdayPrefixes {
			if strings.HasPrefix(tok, w.prefix) {
				res.Weekday = w.day
				res.HasWeekday = true
				rest = strings.TrimSpace(strings.Join(fields[i+1:], " "))
				break
			}
		}
		if res.HasWeekday {
			break
		}
	}

	switch {
	case strings.Contains(lower, "afternoon"):
		res.Clock = &Clock{Hour: 3, Minute: 0, Meridiem: "PM"}
	case strings.Contains(lower, "morning"):
		res.Clock = &Clock{Hour: 10, Minute: 0, Meridiem: "AM"}
	case res.HasWeekday && rest != "":
		if m := clockRe.FindStringSubmatch(rest); m != nil {
			hour, _ := strconv.Atoi(m[1])
			minute := 0
			if m[2] != "" {
				minute, _ = strconv.Atoi(m[2])
			}
			res.Clock = &Clock{Hour: hour, Minute: minute, Meridiem: strings.ToUpper(m[3])}
		}
	}
	return res
}

// NextOccurrence returns the next instant strictly after now's date that
// falls on weekday at the given clock time, in now's location. When now
// already falls on the target weekday the occurrence is one week out,
// never today: same-day slots must be requested with a concrete start
// time instead of a label. Seconds are zeroed.
//
// A Clock with an empty meridiem is read as AM (12 with no suffix is
// midnight, matching the 12 AM rule).
func NextOccurrence(weekday time.Weekday, c Clock, now time.Time) time.Time {
	days := (int(weekday) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	hour := c.Hour % 12
	if c.Meridiem == "PM" {
		hour += 12
	}
	d := now.AddDate(0, 0, days)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, c.Minute, 0, 0, now.Location())
}
