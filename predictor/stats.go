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

package predictor

import (
	"github.com/jerry-enebeli/faxline/model"
)

// recentWindow is how many of the newest sends are inspected for a failure streak.
const recentWindow = 5

// Stats summarises the send history of one destination number.
type Stats struct {
	TotalSent      int `json:"total_sent"`
	Successful     int `json:"successful"`
	Failed         int `json:"failed"`
	RecentFailures int `json:"recent_failures"`
}

// SuccessRate is Successful/TotalSent, or 0 with no sends.
func (s Stats) SuccessRate() float64 {
	if s.TotalSent == 0 {
		return 0
	}
	return float64(s.Successful) / float64(s.TotalSent)
}

// StatsFromHistory reduces raw history records to per-destination statistics.
// Only the latest snapshot of each job counts, and jobs that never reached the
// transport are ignored.
func StatsFromHistory(records []model.HistoryRecord) Stats {
	var stats Stats
	for _, rec := range model.LatestPerJob(records) {
		status := rec.Job.Status
		if !reachedTransport(status) {
			continue
		}
		stats.TotalSent++
		switch {
		case status == model.StatusDelivered:
			stats.Successful++
		case status.CountsAsFailure():
			stats.Failed++
			if stats.TotalSent <= recentWindow {
				stats.RecentFailures++
			}
		}
	}
	return stats
}

func reachedTransport(status model.Status) bool {
	switch status {
	case model.StatusScheduled, model.StatusQueued, model.StatusCancelled:
		return false
	}
	return true
}
