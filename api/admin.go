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
)

// RecoverStuckJobs runs one recovery pass right away instead of waiting for
// the background processor.
func (a Api) RecoverStuckJobs(c *gin.Context) {
	var query model2.RecoverQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}

	recovered, err := a.faxline.RecoverStuckJobs(c.Request.Context(), query.Threshold())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recovered": recovered, "threshold": query.Threshold().String()})
}
