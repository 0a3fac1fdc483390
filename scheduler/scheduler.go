/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package scheduler decides whether a fax goes out immediately or waits for
// the destination's next business-hours window.
package scheduler

import (
	"fmt"
	"time"

	"github.com/jerry-enebeli/faxline/model"
)

// Clock abstracts time so decisions can be tested at fixed instants.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the wall clock.
var SystemClock Clock = systemClock{}

// Decision is the outcome of scheduling one job.
type Decision struct {
	Now    bool      `json:"now"`
	When   time.Time `json:"when"`
	Reason string    `json:"reason"`
}

// RecommendedTime renders the decision for API callers.
func (d Decision) RecommendedTime() string {
	if d.Now {
		return "now"
	}
	return d.When.Format(time.RFC3339)
}

type Scheduler struct {
	clock           Clock
	defaultLocation *time.Location
}

// New returns a scheduler that falls back to defaultLocation for destinations
// without a usable time zone.
func New(clock Clock, defaultLocation *time.Location) *Scheduler {
	if clock == nil {
		clock = SystemClock
	}
	if defaultLocation == nil {
		defaultLocation = time.UTC
	}
	return &Scheduler{clock: clock, defaultLocation: defaultLocation}
}

// Clock exposes the scheduler's time source so callers stamp jobs consistently.
func (s *Scheduler) Clock() Clock {
	return s.clock
}

// Schedule decides for job against destination, which may be nil.
func (s *Scheduler) Schedule(job model.FaxJob, destination *model.Destination) Decision {
	return s.ScheduleAt(job, destination, s.clock.Now())
}

func (s *Scheduler) ScheduleAt(job model.FaxJob, destination *model.Destination, now time.Time) Decision {
	if job.Priority == model.PriorityUrgent {
		return Decision{Now: true, When: now, Reason: "Urgent priority - send now"}
	}

	loc := destination.Location(s.defaultLocation)
	hours := destination.Hours()
	local := now.In(loc)

	weekday := !isWeekend(local.Weekday())
	if weekday && hours.Contains(local.Hour()) {
		return Decision{Now: true, When: now, Reason: "Currently within business hours"}
	}

	day := local
	switch {
	case !weekday:
		day = nextMonday(local)
	case local.Hour() >= hours.End:
		day = local.AddDate(0, 0, 1)
		if isWeekend(day.Weekday()) {
			day = nextMonday(day)
		}
	}

	hour, minute := hours.Start+1, 0
	if destination != nil && destination.BestSendTime != "" {
		if h, m, err := model.ParseClock(destination.BestSendTime); err == nil {
			hour, minute = h, m
		}
	}
	when := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)

	name := "recipient"
	if destination != nil && destination.Name != "" {
		name = destination.Name
	}
	return Decision{
		When:   when,
		Reason: fmt.Sprintf("Scheduled for optimal delivery time at %s", name),
	}
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

func nextMonday(t time.Time) time.Time {
	days := (8 - int(t.Weekday())) % 7
	if days == 0 {
		days = 7
	}
	return t.AddDate(0, 0, days)
}
