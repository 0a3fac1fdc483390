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

// Package cost compares mailing a document through the postal service with
// sending it through the fax carrier.
package cost

import (
	"github.com/shopspring/decimal"
)

// Fees holds the per-unit business constants. They are policy values and are
// loaded from configuration.
type Fees struct {
	PostageFirstPage      decimal.Decimal
	PostageAdditionalPage decimal.Decimal
	Envelope              decimal.Decimal
	PrintingPerPage       decimal.Decimal
	LaborPerMailing       decimal.Decimal
	CarrierBase           decimal.Decimal
	CarrierPerPage        decimal.Decimal
}

// DefaultFees are the published USPS and carrier rates the engine ships with.
func DefaultFees() Fees {
	return Fees{
		PostageFirstPage:      decimal.RequireFromString("1.55"),
		PostageAdditionalPage: decimal.RequireFromString("0.28"),
		Envelope:              decimal.RequireFromString("0.12"),
		PrintingPerPage:       decimal.RequireFromString("0.18"),
		LaborPerMailing:       decimal.RequireFromString("0.50"),
		CarrierBase:           decimal.RequireFromString("0.05"),
		CarrierPerPage:        decimal.RequireFromString("0.015"),
	}
}

type Estimate struct {
	PageCount      int             `json:"page_count"`
	JobCount       int             `json:"job_count"`
	LegacyPerUnit  decimal.Decimal `json:"legacy_per_unit"`
	LegacyTotal    decimal.Decimal `json:"legacy_total"`
	CarrierPerUnit decimal.Decimal `json:"carrier_per_unit"`
	CarrierTotal   decimal.Decimal `json:"carrier_total"`
	SavingsAmount  decimal.Decimal `json:"savings_amount"`
	SavingsPercent decimal.Decimal `json:"savings_percent"`
}

type Calculator struct {
	fees Fees
}

func NewCalculator(fees Fees) *Calculator {
	return &Calculator{fees: fees}
}

// FirstPageCost bundles postage, envelope, printing and labor for the first sheet.
func (c *Calculator) FirstPageCost() decimal.Decimal {
	f := c.fees
	return f.PostageFirstPage.Add(f.Envelope).Add(f.PrintingPerPage).Add(f.LaborPerMailing)
}

// AdditionalPageCost is postage plus printing for every sheet after the first.
func (c *Calculator) AdditionalPageCost() decimal.Decimal {
	return c.fees.PostageAdditionalPage.Add(c.fees.PrintingPerPage)
}

// Estimate prices pageCount pages sent to jobCount recipients under both models.
// Inputs are trusted; negative counts are rejected upstream.
func (c *Calculator) Estimate(pageCount, jobCount int) Estimate {
	extraPages := pageCount - 1
	if extraPages < 0 {
		extraPages = 0
	}
	jobs := decimal.NewFromInt(int64(jobCount))

	legacyUnit := c.FirstPageCost().Add(c.AdditionalPageCost().Mul(decimal.NewFromInt(int64(extraPages))))
	carrierUnit := c.fees.CarrierBase.Add(c.fees.CarrierPerPage.Mul(decimal.NewFromInt(int64(pageCount))))

	legacyTotal := legacyUnit.Mul(jobs)
	carrierTotal := carrierUnit.Mul(jobs)
	savings := legacyTotal.Sub(carrierTotal)

	percent := decimal.Zero
	if !legacyTotal.IsZero() {
		percent = savings.Div(legacyTotal).Mul(decimal.NewFromInt(100)).Round(2)
	}

	return Estimate{
		PageCount:      pageCount,
		JobCount:       jobCount,
		LegacyPerUnit:  legacyUnit,
		LegacyTotal:    legacyTotal,
		CarrierPerUnit: carrierUnit,
		CarrierTotal:   carrierTotal,
		SavingsAmount:  savings,
		SavingsPercent: percent,
	}
}
