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

package faxline

import (
	"context"

	"github.com/jerry-enebeli/faxline/model"
	"github.com/jerry-enebeli/faxline/predictor"
	"github.com/sirupsen/logrus"
)

func statsCacheKey(number string) string {
	return "destination-stats:" + number
}

// destinationStats summarizes recent sends to number, served from the cache
// when possible.
func (f *Faxline) destinationStats(ctx context.Context, number string) (predictor.Stats, error) {
	var stats predictor.Stats
	key := statsCacheKey(number)

	found, err := f.cache.Get(ctx, key, &stats)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("destination stats cache read failed")
	}
	if found {
		return stats, nil
	}

	records, err := f.datasource.QueryByDestination(ctx, number, f.settings.historyLimit)
	if err != nil {
		return stats, err
	}
	stats = predictor.StatsFromHistory(records)

	if err := f.cache.Set(ctx, key, stats, f.settings.statsTTL); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("destination stats cache write failed")
	}
	return stats, nil
}

func (f *Faxline) invalidateStats(ctx context.Context, number string) {
	if err := f.cache.Delete(ctx, statsCacheKey(number)); err != nil {
		logrus.WithError(err).WithField("number", number).Warn("failed to invalidate destination stats")
	}
}

// predict never fails: unreadable history degrades to the low-confidence
// fallback estimate.
func (f *Faxline) predict(ctx context.Context, job model.FaxJob, destination *model.Destination) predictor.Prediction {
	stats, err := f.destinationStats(ctx, job.DestinationNumber)
	if err != nil {
		logrus.WithError(err).WithField("destination", job.DestinationNumber).Warn("history unavailable for prediction")
		return f.predictor.Fallback(job)
	}
	return f.predictor.Predict(job, destination, stats, f.now())
}
