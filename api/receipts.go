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

// CarrierReceipt applies the carrier's final outcome for a send. Receipts for
// jobs that already left SENDING are acknowledged and ignored so the carrier
// stops redelivering them.
//
// Responses:
// - 400 Bad Request: If the receipt does not bind or is incomplete.
// - 404 Not Found: If no job carries the provider id.
// - 200 OK: With the job after the receipt was applied.
func (a Api) CarrierReceipt(c *gin.Context) {
	var receipt model2.CarrierReceipt
	if err := c.ShouldBindJSON(&receipt); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	if err := receipt.ValidateCarrierReceipt(); err != nil {
		invalidInput(c, err)
		return
	}

	job, err := a.faxline.ReportOutcome(c.Request.Context(), receipt.ProviderID, receipt.Status, receipt.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}
