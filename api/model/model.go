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
package model

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jerry-enebeli/faxline/model"
)

// maxWindowDays bounds analytics queries to what the history index serves well.
const maxWindowDays = 365

// CarrierReceipt is the delivery receipt the carrier posts once a send ends.
type CarrierReceipt struct {
	ProviderID string `json:"provider_id"`
	Status     string `json:"status"`
	Reason     string `json:"reason"`
}

func (r *CarrierReceipt) ValidateCarrierReceipt() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ProviderID, validation.Required),
		validation.Field(&r.Status, validation.Required),
	)
}

type AnalyticsQuery struct {
	WindowDays int    `form:"window_days"`
	ClientRef  string `form:"client_ref"`
	Type       string `form:"type"`
}

func (q *AnalyticsQuery) ValidateAnalyticsQuery() error {
	return validation.ValidateStruct(q,
		validation.Field(&q.WindowDays, validation.Min(0), validation.Max(maxWindowDays)),
		validation.Field(&q.Type, validation.In(
			string(model.TypeBureau), string(model.TypeCreditor), string(model.TypeCollections), string(model.TypeGeneral),
		)),
	)
}

func (q *AnalyticsQuery) ToScope() model.ScopeFilter {
	return model.ScopeFilter{ClientRef: q.ClientRef, Type: model.Type(q.Type)}
}

// maxListLimit matches the largest page the engine serves.
const maxListLimit = 500

// ListFaxesQuery pages through a client's faxes, or every fax when client_ref
// is empty.
type ListFaxesQuery struct {
	ClientRef string `form:"client_ref"`
	Type      string `form:"type"`
	Limit     int    `form:"limit"`
}

func (q *ListFaxesQuery) ValidateListFaxesQuery() error {
	return validation.ValidateStruct(q,
		validation.Field(&q.Limit, validation.Min(0), validation.Max(maxListLimit)),
		validation.Field(&q.Type, validation.In(
			string(model.TypeBureau), string(model.TypeCreditor), string(model.TypeCollections), string(model.TypeGeneral),
		)),
	)
}

func (q *ListFaxesQuery) ToScope() model.ScopeFilter {
	return model.ScopeFilter{ClientRef: q.ClientRef, Type: model.Type(q.Type)}
}

type CostEstimateQuery struct {
	Pages int `form:"pages"`
	Count int `form:"count"`
}

func (q *CostEstimateQuery) ValidateCostEstimateQuery() error {
	if q.Count == 0 {
		q.Count = 1
	}
	return validation.ValidateStruct(q,
		validation.Field(&q.Pages, validation.Required, validation.Min(1), validation.Max(500)),
		validation.Field(&q.Count, validation.Min(1), validation.Max(10000)),
	)
}

type SearchQuery struct {
	Q string `form:"q"`
}

func (q *SearchQuery) ValidateSearchQuery() error {
	return validation.ValidateStruct(q,
		validation.Field(&q.Q, validation.Required, validation.Length(2, 100)),
	)
}

// RecoverQuery triggers an immediate stuck job recovery pass.
type RecoverQuery struct {
	ThresholdMinutes int `form:"threshold_minutes"`
}

func (q *RecoverQuery) Threshold() time.Duration {
	if q.ThresholdMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(q.ThresholdMinutes) * time.Minute
}
