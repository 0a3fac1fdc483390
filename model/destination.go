package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type BusinessHours struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether hour falls in [Start, End).
func (b BusinessHours) Contains(hour int) bool {
	return hour >= b.Start && hour < b.End
}

// DefaultBusinessHours applies when a destination is not in the registry.
var DefaultBusinessHours = BusinessHours{Start: 9, End: 17}

type Destination struct {
	Key                       string        `json:"key"`
	Name                      string        `json:"name"`
	Number                    string        `json:"number"`
	Category                  Type          `json:"category"`
	Timezone                  string        `json:"timezone"`
	BusinessHours             BusinessHours `json:"business_hours"`
	HistoricalSuccessRateSeed float64       `json:"historical_success_rate_seed"`
	BestSendTime              string        `json:"best_send_time,omitempty"`
}

// Location resolves the destination time zone, falling back to fallback when unset or unknown.
func (d *Destination) Location(fallback *time.Location) *time.Location {
	if d == nil || d.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}

// Hours returns the destination business hours or the default window.
func (d *Destination) Hours() BusinessHours {
	if d == nil || d.BusinessHours.End <= d.BusinessHours.Start {
		return DefaultBusinessHours
	}
	return d.BusinessHours
}

// ParseClock splits an "HH:MM" string.
func ParseClock(clock string) (hour, minute int, err error) {
	parts := strings.Split(clock, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock value %q", clock)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", clock)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", clock)
	}
	return hour, minute, nil
}
