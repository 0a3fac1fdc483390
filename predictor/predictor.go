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

// Package predictor estimates how likely a fax is to be delivered.
//
// The estimate is a fixed, versioned set of multiplicative rules applied to a
// base success rate. There is no trained model behind it. Results are
// advisory: they shape recommendation text and reports but never block a send.
package predictor

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jerry-enebeli/faxline/model"
)

// Version identifies the rule set that produced a prediction.
const Version = "rules-v1"

// MaxProbability caps every estimate; the engine never reports certainty.
const MaxProbability = 0.99

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Multipliers are the penalty factors of rules-v1.
type Multipliers struct {
	LongDocument     float64 // pages > 10
	VeryLongDocument float64 // pages > 20, stacks with LongDocument
	OutsideHours     float64
	Weekend          float64
	UrgentPriority   float64
	RecentFailures   float64 // more than 2 of the last 5 attempts failed
}

func DefaultMultipliers() Multipliers {
	return Multipliers{
		LongDocument:     0.95,
		VeryLongDocument: 0.90,
		OutsideHours:     0.92,
		Weekend:          0.85,
		UrgentPriority:   0.97,
		RecentFailures:   0.88,
	}
}

type Options struct {
	Multipliers Multipliers
	// FallbackRate is the base rate for destinations outside the registry and
	// the probability reported when history could not be read.
	FallbackRate float64
	// HighConfidenceSends is the number of historical sends above which
	// confidence is reported as high.
	HighConfidenceSends int
	DefaultLocation     *time.Location
}

// Factors records the inputs that went into a prediction.
type Factors struct {
	BaseRate        float64  `json:"base_rate"`
	PageCount       int      `json:"page_count"`
	BusinessHours   bool     `json:"is_business_hours"`
	Weekend         bool     `json:"is_weekend"`
	RecentFailures  int      `json:"recent_failures"`
	HistoricalSends int      `json:"historical_sends"`
	Applied         []string `json:"applied,omitempty"`
}

type Prediction struct {
	Probability    float64    `json:"probability"`
	Confidence     Confidence `json:"confidence"`
	Explanation    string     `json:"explanation"`
	Recommendation string     `json:"recommendation"`
	Factors        Factors    `json:"factors"`
	Version        string     `json:"version"`
}

type Predictor struct {
	opts Options
}

func New(opts Options) *Predictor {
	if opts.Multipliers == (Multipliers{}) {
		opts.Multipliers = DefaultMultipliers()
	}
	if opts.FallbackRate <= 0 {
		opts.FallbackRate = 0.85
	}
	if opts.HighConfidenceSends <= 0 {
		opts.HighConfidenceSends = 10
	}
	if opts.DefaultLocation == nil {
		opts.DefaultLocation = time.UTC
	}
	return &Predictor{opts: opts}
}

// Predict scores job against destination (nil when unknown) given the
// destination's send statistics and the current instant.
func (p *Predictor) Predict(job model.FaxJob, destination *model.Destination, stats Stats, now time.Time) Prediction {
	m := p.opts.Multipliers

	base, source := p.opts.FallbackRate, "default rate"
	if destination != nil && destination.HistoricalSuccessRateSeed > 0 {
		base, source = destination.HistoricalSuccessRateSeed, "registry seed"
	}
	if stats.TotalSent > 0 {
		base, source = stats.SuccessRate(), fmt.Sprintf("%d historical sends", stats.TotalSent)
	}

	local := now.In(destination.Location(p.opts.DefaultLocation))
	factors := Factors{
		BaseRate:        base,
		PageCount:       job.PageCount,
		BusinessHours:   destination.Hours().Contains(local.Hour()),
		Weekend:         isWeekend(local),
		RecentFailures:  stats.RecentFailures,
		HistoricalSends: stats.TotalSent,
	}

	probability := base
	apply := func(name string, multiplier float64) {
		probability *= multiplier
		factors.Applied = append(factors.Applied, fmt.Sprintf("%s x%.2f", name, multiplier))
	}
	if job.PageCount > 10 {
		apply("long document", m.LongDocument)
	}
	if job.PageCount > 20 {
		apply("very long document", m.VeryLongDocument)
	}
	if !factors.BusinessHours {
		apply("outside business hours", m.OutsideHours)
	}
	if factors.Weekend {
		apply("weekend", m.Weekend)
	}
	if job.Priority == model.PriorityUrgent {
		apply("urgent priority", m.UrgentPriority)
	}
	if stats.RecentFailures > 2 {
		apply("recent failures", m.RecentFailures)
	}
	probability = math.Min(probability, MaxProbability)

	confidence := ConfidenceMedium
	if stats.TotalSent > p.opts.HighConfidenceSends {
		confidence = ConfidenceHigh
	}

	return Prediction{
		Probability:    probability,
		Confidence:     confidence,
		Explanation:    explain(source, factors),
		Recommendation: Recommend(probability),
		Factors:        factors,
		Version:        Version,
	}
}

// Fallback is reported when destination history could not be read.
func (p *Predictor) Fallback(job model.FaxJob) Prediction {
	return Prediction{
		Probability:    p.opts.FallbackRate,
		Confidence:     ConfidenceLow,
		Explanation:    "history unavailable, using the conservative default rate",
		Recommendation: "Using conservative estimate. Send during business hours for best results.",
		Factors:        Factors{BaseRate: p.opts.FallbackRate, PageCount: job.PageCount},
		Version:        Version,
	}
}

// Recommend maps a probability onto the advice bands.
func Recommend(probability float64) string {
	switch {
	case probability >= 0.90:
		return "Excellent conditions for sending. High probability of success."
	case probability >= 0.75:
		return "Good conditions. Send now or schedule for optimal time."
	case probability >= 0.60:
		return "Moderate conditions. Consider scheduling for business hours."
	default:
		return "Challenging conditions. Strongly recommend scheduling for optimal time."
	}
}

func explain(source string, f Factors) string {
	msg := fmt.Sprintf("base rate %.2f from %s", f.BaseRate, source)
	if len(f.Applied) == 0 {
		return msg + ", no penalties applied"
	}
	return msg + ", applied " + strings.Join(f.Applied, ", ")
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}
