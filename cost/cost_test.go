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

package cost

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEstimate_SinglePage(t *testing.T) {
	c := NewCalculator(DefaultFees())
	est := c.Estimate(1, 1)

	assert.Equal(t, "2.35", est.LegacyTotal.StringFixed(2))
	assert.Equal(t, "0.065", est.CarrierTotal.String())
	assert.Equal(t, "2.285", est.SavingsAmount.String())
	assert.Equal(t, "97.23", est.SavingsPercent.StringFixed(2))
}

func TestEstimate_MultiPageMultiJob(t *testing.T) {
	c := NewCalculator(DefaultFees())
	est := c.Estimate(3, 3)

	// 2.35 + 2*0.46 = 3.27 per mailing
	assert.True(t, est.LegacyPerUnit.Equal(decimal.RequireFromString("3.27")))
	assert.True(t, est.LegacyTotal.Equal(decimal.RequireFromString("9.81")))
	// 0.05 + 3*0.015 = 0.095 per fax
	assert.True(t, est.CarrierPerUnit.Equal(decimal.RequireFromString("0.095")))
	assert.True(t, est.CarrierTotal.Equal(decimal.RequireFromString("0.285")))
	assert.Equal(t, 3, est.JobCount)
}

func TestEstimate_ZeroJobs(t *testing.T) {
	c := NewCalculator(DefaultFees())
	est := c.Estimate(1, 0)

	assert.True(t, est.LegacyTotal.IsZero())
	assert.True(t, est.SavingsPercent.IsZero())
}

func TestEstimate_CarrierAlwaysCheaper(t *testing.T) {
	c := NewCalculator(DefaultFees())
	for i := 0; i < 200; i++ {
		pages := gofakeit.Number(1, 50)
		jobs := gofakeit.Number(1, 25)
		est := c.Estimate(pages, jobs)

		assert.True(t, est.CarrierTotal.LessThan(est.LegacyTotal), "pages=%d jobs=%d", pages, jobs)
		assert.False(t, est.CarrierTotal.IsNegative())
		assert.False(t, est.LegacyTotal.IsNegative())
	}
}

func TestEstimate_Deterministic(t *testing.T) {
	c := NewCalculator(DefaultFees())
	a := c.Estimate(7, 4)
	b := c.Estimate(7, 4)
	assert.Equal(t, a, b)
}
