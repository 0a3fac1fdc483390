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
	"fmt"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jerry-enebeli/faxline/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newYork(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func bureau() *model.Destination {
	return &model.Destination{
		Key:                       "EXPERIAN",
		Name:                      "Experian",
		Number:                    "+18883973742",
		Category:                  model.TypeBureau,
		Timezone:                  "America/New_York",
		BusinessHours:             model.BusinessHours{Start: 8, End: 17},
		HistoricalSuccessRateSeed: 0.94,
		BestSendTime:              "09:00",
	}
}

func TestPredict_SeedDuringBusinessHours(t *testing.T) {
	loc := newYork(t)
	p := New(Options{DefaultLocation: loc})
	// Wednesday noon
	now := time.Date(2024, time.January, 10, 12, 0, 0, 0, loc)

	pred := p.Predict(model.FaxJob{PageCount: 2, Priority: model.PriorityNormal}, bureau(), Stats{}, now)

	assert.InDelta(t, 0.94, pred.Probability, 1e-9)
	assert.Equal(t, ConfidenceMedium, pred.Confidence)
	assert.Equal(t, Version, pred.Version)
	assert.True(t, pred.Factors.BusinessHours)
	assert.False(t, pred.Factors.Weekend)
	assert.Empty(t, pred.Factors.Applied)
	assert.Contains(t, pred.Explanation, "registry seed")
	assert.Contains(t, pred.Recommendation, "Excellent")
}

func TestPredict_CompoundsPenalties(t *testing.T) {
	loc := newYork(t)
	p := New(Options{DefaultLocation: loc})
	// Saturday 22:00, outside hours and a weekend
	now := time.Date(2024, time.January, 13, 22, 0, 0, 0, loc)
	stats := Stats{TotalSent: 20, Successful: 16, Failed: 4, RecentFailures: 3}

	pred := p.Predict(model.FaxJob{PageCount: 25, Priority: model.PriorityUrgent}, bureau(), stats, now)

	expected := 0.8 * 0.95 * 0.90 * 0.92 * 0.85 * 0.97 * 0.88
	assert.InDelta(t, expected, pred.Probability, 1e-9)
	assert.Equal(t, ConfidenceHigh, pred.Confidence)
	assert.Len(t, pred.Factors.Applied, 6)
	assert.Contains(t, pred.Recommendation, "Challenging")
}

func TestPredict_UsesDestinationTimezone(t *testing.T) {
	loc := newYork(t)
	p := New(Options{DefaultLocation: loc})
	dest := bureau()
	dest.Timezone = "America/Los_Angeles"

	// 8:30 in New York is 5:30 in Los Angeles
	now := time.Date(2024, time.January, 10, 8, 30, 0, 0, loc)
	pred := p.Predict(model.FaxJob{PageCount: 1}, dest, Stats{}, now)

	assert.False(t, pred.Factors.BusinessHours)
	assert.InDelta(t, 0.94*0.92, pred.Probability, 1e-9)
}

func TestPredict_UnknownDestinationUsesFallback(t *testing.T) {
	loc := newYork(t)
	p := New(Options{DefaultLocation: loc})
	now := time.Date(2024, time.January, 10, 12, 0, 0, 0, loc)

	pred := p.Predict(model.FaxJob{PageCount: 1}, nil, Stats{}, now)
	assert.InDelta(t, 0.85, pred.Probability, 1e-9)
	assert.Contains(t, pred.Explanation, "default rate")
}

func TestPredict_ClampsToCeiling(t *testing.T) {
	loc := newYork(t)
	p := New(Options{DefaultLocation: loc})
	now := time.Date(2024, time.January, 10, 12, 0, 0, 0, loc)

	pred := p.Predict(model.FaxJob{PageCount: 1}, bureau(), Stats{TotalSent: 50, Successful: 50}, now)
	assert.Equal(t, MaxProbability, pred.Probability)
}

func TestPredict_ProbabilityBound(t *testing.T) {
	p := New(Options{})
	for i := 0; i < 200; i++ {
		total := gofakeit.Number(0, 100)
		successful := gofakeit.Number(0, total)
		stats := Stats{
			TotalSent:      total,
			Successful:     successful,
			Failed:         total - successful,
			RecentFailures: gofakeit.Number(0, 5),
		}
		job := model.FaxJob{
			PageCount: gofakeit.Number(1, 200),
			Priority:  model.Priorities[gofakeit.Number(0, len(model.Priorities)-1)].(model.Priority),
		}
		dest := bureau()
		dest.HistoricalSuccessRateSeed = gofakeit.Float64Range(0, 1)
		now := gofakeit.DateRange(time.Now().AddDate(-1, 0, 0), time.Now())

		pred := p.Predict(job, dest, stats, now)
		assert.GreaterOrEqual(t, pred.Probability, 0.0, fmt.Sprintf("stats=%+v job=%+v", stats, job))
		assert.LessOrEqual(t, pred.Probability, MaxProbability, fmt.Sprintf("stats=%+v job=%+v", stats, job))
	}
}

func TestFallback(t *testing.T) {
	p := New(Options{})
	pred := p.Fallback(model.FaxJob{PageCount: 30})

	assert.Equal(t, ConfidenceLow, pred.Confidence)
	assert.InDelta(t, 0.85, pred.Probability, 1e-9)
	assert.Empty(t, pred.Factors.Applied)
}

func TestRecommendBands(t *testing.T) {
	assert.Contains(t, Recommend(0.95), "Excellent")
	assert.Contains(t, Recommend(0.80), "Good")
	assert.Contains(t, Recommend(0.65), "Moderate")
	assert.Contains(t, Recommend(0.10), "Challenging")
}

func TestStatsFromHistory(t *testing.T) {
	base := time.Date(2024, time.January, 10, 12, 0, 0, 0, time.UTC)
	record := func(jobID string, status model.Status, offset time.Duration) model.HistoryRecord {
		job := model.FaxJob{ID: jobID, Status: status}
		return model.NewHistoryRecord(job, nil, "status_changed", base.Add(offset))
	}

	records := []model.HistoryRecord{
		// job a failed, then was delivered on retry: only the delivery counts
		record("a", model.StatusFailed, 0),
		record("a", model.StatusDelivered, time.Hour),
		record("b", model.StatusBusy, 2*time.Hour),
		record("c", model.StatusNoAnswer, 3*time.Hour),
		record("d", model.StatusPermanentFailure, 4*time.Hour),
		record("e", model.StatusQueued, 5*time.Hour),
		record("f", model.StatusCancelled, 6*time.Hour),
	}

	stats := StatsFromHistory(records)
	assert.Equal(t, 4, stats.TotalSent)
	assert.Equal(t, 1, stats.Successful)
	assert.Equal(t, 3, stats.Failed)
	assert.Equal(t, 3, stats.RecentFailures)
	assert.InDelta(t, 0.25, stats.SuccessRate(), 1e-9)

	assert.Equal(t, 0.0, Stats{}.SuccessRate())
}
