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
	"github.com/jerry-enebeli/faxline/model"
	"github.com/sirupsen/logrus"
)

// Broadcast sends one document to several registry destinations. The request
// stays open for the whole broadcast since sends are spaced apart.
//
// Responses:
// - 400 Bad Request: If the body does not bind or fails validation.
// - 200 OK: With per destination results and the aggregate cost, also when
//   some destinations failed.
func (a Api) Broadcast(c *gin.Context) {
	var req model.BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	resp, err := a.faxline.BroadcastToAll(c.Request.Context(), req)
	if err != nil && resp == nil {
		respondError(c, err)
		return
	}
	if err != nil {
		// interrupted part way; resp holds the destinations already attempted
		logrus.WithError(err).WithField("attempted", len(resp.Results)).Warn("broadcast interrupted")
	}

	c.JSON(http.StatusOK, resp)
}
