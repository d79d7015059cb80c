package model

import (
	"fmt"
	"time"
)

// ParseClock parses a backend time-of-day string ("15:04" or "15:04:05")
// and returns the offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("invalid time %q", s)
}
