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
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jerry-enebeli/faxline/cost"
	"github.com/jerry-enebeli/faxline/internal/apierror"
	"github.com/jerry-enebeli/faxline/model"
	"github.com/shopspring/decimal"
)

const (
	defaultWindowDays   = 30
	topDestinationLimit = 10
)

type AnalyticsSummary struct {
	Total       int     `json:"total"`
	Delivered   int     `json:"delivered"`
	Failed      int     `json:"failed"`
	Queued      int     `json:"queued"`
	Sending     int     `json:"sending"`
	Cancelled   int     `json:"cancelled"`
	SuccessRate float64 `json:"success_rate"`
}

type AnalyticsCosts struct {
	TotalCost         decimal.Decimal `json:"total_cost"`
	TotalSavings      decimal.Decimal `json:"total_savings"`
	AverageCostPerFax decimal.Decimal `json:"average_cost_per_fax"`
}

type DestinationVolume struct {
	Name   string `json:"name"`
	Number string `json:"number"`
	Count  int    `json:"count"`
}

type AnalyticsReport struct {
	Period          string              `json:"period"`
	Start           time.Time           `json:"start"`
	End             time.Time           `json:"end"`
	Scope           model.ScopeFilter   `json:"scope"`
	Summary         AnalyticsSummary    `json:"summary"`
	Costs           AnalyticsCosts      `json:"costs"`
	ByType          map[model.Type]int  `json:"by_type"`
	TopDestinations []DestinationVolume `json:"top_destinations"`
	Performance     string              `json:"performance"`
	Recommendation  string              `json:"recommendation"`
	Trend           string              `json:"trend"`
}

// GetAnalytics rolls up the jobs touched in the last windowDays days.
func (f *Faxline) GetAnalytics(ctx context.Context, windowDays int, scope model.ScopeFilter) (*AnalyticsReport, error) {
	ctx, span := tracer.Start(ctx, "GetAnalytics")
	defer span.End()

	if windowDays < 0 {
		return nil, apierror.NewAPIError(apierror.ErrValidation, "window_days must not be negative", nil)
	}
	if windowDays == 0 {
		windowDays = defaultWindowDays
	}

	end := f.now()
	start := end.AddDate(0, 0, -windowDays)
	records, err := f.scopedWindow(ctx, start, end, scope)
	if err != nil {
		return nil, err
	}

	report := &AnalyticsReport{
		Period: fmt.Sprintf("Last %d days", windowDays),
		Start:  start,
		End:    end,
		Scope:  scope,
		ByType: map[model.Type]int{
			model.TypeBureau:      0,
			model.TypeCreditor:    0,
			model.TypeCollections: 0,
			model.TypeGeneral:     0,
		},
		TopDestinations: []DestinationVolume{},
	}

	totalCost, totalSavings := decimal.Zero, decimal.Zero
	volumes := make(map[string]*DestinationVolume)
	for _, rec := range records {
		job := rec.Job
		s := &report.Summary
		s.Total++
		switch {
		case job.Status == model.StatusDelivered:
			s.Delivered++
		case job.Status.CountsAsFailure():
			s.Failed++
		case job.Status == model.StatusSending:
			s.Sending++
		case job.Status == model.StatusCancelled:
			s.Cancelled++
		default:
			s.Queued++
		}

		totalCost = totalCost.Add(job.CostEstimate.CarrierTotal)
		totalSavings = totalSavings.Add(job.CostEstimate.SavingsAmount)
		report.ByType[job.Type]++

		v, ok := volumes[job.DestinationNumber]
		if !ok {
			v = &DestinationVolume{Name: job.DestinationName, Number: job.DestinationNumber}
			volumes[job.DestinationNumber] = v
		}
		v.Count++
	}

	s := &report.Summary
	if completed := s.Delivered + s.Failed; completed > 0 {
		s.SuccessRate = math.Round(float64(s.Delivered)/float64(completed)*1000) / 10
	}

	report.Costs = AnalyticsCosts{TotalCost: totalCost, TotalSavings: totalSavings, AverageCostPerFax: decimal.Zero}
	if s.Total > 0 {
		report.Costs.AverageCostPerFax = totalCost.Div(decimal.NewFromInt(int64(s.Total))).Round(4)
	}

	report.TopDestinations = topDestinations(volumes, topDestinationLimit)
	report.Performance, report.Recommendation = performanceTag(s.SuccessRate)
	report.Trend = "No recent activity"
	if s.Total > 0 {
		report.Trend = "Active"
	}
	return report, nil
}

// scopedWindow returns the newest snapshot of each job in the window. When
// the store cannot filter by scope the rows are filtered here.
func (f *Faxline) scopedWindow(ctx context.Context, start, end time.Time, scope model.ScopeFilter) ([]model.HistoryRecord, error) {
	records, err := f.datasource.QueryByWindow(ctx, start, end, scope)
	if err != nil {
		return nil, err
	}
	if !f.datasource.SupportsCompoundFilter() && !scope.IsEmpty() {
		filtered := records[:0]
		for _, rec := range records {
			if scope.Match(rec) {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	return model.LatestPerJob(records), nil
}

func topDestinations(volumes map[string]*DestinationVolume, limit int) []DestinationVolume {
	out := make([]DestinationVolume, 0, len(volumes))
	for _, v := range volumes {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Name < out[j].Name
		}
		return out[i].Count > out[j].Count
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func performanceTag(successRate float64) (performance, recommendation string) {
	switch {
	case successRate >= 90:
		performance = "Excellent"
	case successRate >= 75:
		performance = "Good"
	default:
		performance = "NeedsImprovement"
	}
	if successRate < 75 {
		return performance, "Review failed faxes and consider retrying during business hours"
	}
	return performance, "Performance is strong. Continue current practices."
}

type SavingsReport struct {
	ClientRef    string        `json:"client_ref"`
	TotalFaxes   int           `json:"total_faxes"`
	TotalPages   int           `json:"total_pages"`
	AveragePages int           `json:"average_pages"`
	Estimate     cost.Estimate `json:"estimate"`
	Message      string        `json:"message"`
}

// ClientSavings prices every delivered fax of a client against mailing it.
func (f *Faxline) ClientSavings(ctx context.Context, clientRef string) (*SavingsReport, error) {
	ctx, span := tracer.Start(ctx, "ClientSavings")
	defer span.End()

	if clientRef == "" {
		return nil, apierror.NewAPIError(apierror.ErrValidation, "client_ref is required", nil)
	}

	records, err := f.scopedWindow(ctx, time.Unix(0, 0).UTC(), f.now(), model.ScopeFilter{ClientRef: clientRef})
	if err != nil {
		return nil, err
	}

	report := &SavingsReport{ClientRef: clientRef}
	for _, rec := range records {
		if rec.Job.Status != model.StatusDelivered {
			continue
		}
		report.TotalFaxes++
		report.TotalPages += rec.Job.PageCount
	}

	if report.TotalFaxes == 0 {
		report.Estimate = f.calculator.Estimate(3, 0)
		report.Message = "No faxes sent yet"
		return report, nil
	}

	report.AveragePages = int(math.Round(float64(report.TotalPages) / float64(report.TotalFaxes)))
	report.Estimate = f.calculator.Estimate(report.AveragePages, report.TotalFaxes)
	report.Message = fmt.Sprintf("Saved $%s across %d faxes!", report.Estimate.SavingsAmount.StringFixed(2), report.TotalFaxes)
	return report, nil
}
