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
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	model2 "github.com/jerry-enebeli/faxline/api/model"
	"github.com/sirupsen/logrus"
)

// GetAnalytics reports on jobs touched in the last window_days days,
// optionally narrowed to one client_ref and/or one destination type.
//
// Responses:
// - 400 Bad Request: If the query does not bind or is out of range.
// - 200 OK: With the analytics report.
func (a Api) GetAnalytics(c *gin.Context) {
	var query model2.AnalyticsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}
	if err := query.ValidateAnalyticsQuery(); err != nil {
		invalidInput(c, err)
		return
	}

	report, err := a.faxline.GetAnalytics(c.Request.Context(), query.WindowDays, query.ToScope())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (a Api) GetClientSavings(c *gin.Context) {
	report, err := a.faxline.ClientSavings(c.Request.Context(), c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
